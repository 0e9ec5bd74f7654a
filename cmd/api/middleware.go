package main

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/bighogz/insider-vibes/internal/logger"
)

// securityHeaders adds security-related HTTP headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; connect-src 'self'; img-src 'self' data:;")
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request through zap.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Infow("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

const rateLimiterMaxSize = 10000
const rateLimiterEvictAge = time.Hour

var (
	errRateLimited  = errors.New("rate limit: try again in a few seconds")
	errInvalidAdmin = errors.New("invalid admin key")
)

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// rateLimiter allows one request per interval per key. Map size is capped.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	every    rate.Limit
	now      func() time.Time
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		every:    rate.Every(interval),
		now:      time.Now,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	if len(rl.visitors) >= rateLimiterMaxSize {
		for k, v := range rl.visitors {
			if now.Sub(v.seen) > rateLimiterEvictAge {
				delete(rl.visitors, k)
			}
		}
	}
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(rl.every, 1)}
		rl.visitors[key] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}

// clientIP is the peer address without its port. Proxy headers are
// honored only through middleware.RealIP, which the server installs
// when TRUST_PROXY is set.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// admit lets requests carrying adminKey through unthrottled; everyone
// else gets one request per limiter interval per IP.
func admit(adminKey string, rl *rateLimiter, r *http.Request) error {
	if adminKey != "" {
		key := r.Header.Get("X-Admin-Key")
		if key == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if key != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
				return errInvalidAdmin
			}
			return nil
		}
	}
	if !rl.allow(clientIP(r)) {
		return errRateLimited
	}
	return nil
}

func adminOrRateLimit(adminKey string, rl *rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := admit(adminKey, rl, r); err != nil {
				writeError(w, statusFor(err), err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// safeStaticPath prevents path traversal. Returns clean path under staticDir or empty.
func safeStaticPath(staticDir, requestPath string) string {
	base := filepath.Clean(staticDir)
	joined := filepath.Join(base, filepath.Clean("/"+requestPath))
	if !strings.HasPrefix(joined, base+string(filepath.Separator)) && joined != base {
		return ""
	}
	return joined
}
