package httpclient

import (
	"net/http"
	"time"
)

// Shared HTTP client with timeout and connection reuse.
var Default = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// UserAgent is sent on every upstream request; SEC-style feeds reject
// anonymous clients.
const UserAgent = "insider-vibes/1.0 (+https://github.com/bighogz/insider-vibes)"

// NewRequest builds a GET request bound to the shared user agent.
func NewRequest(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	return req
}
