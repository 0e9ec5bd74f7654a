package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bighogz/insider-vibes/internal/httpclient"
	"github.com/bighogz/insider-vibes/internal/models"
	"github.com/bighogz/insider-vibes/internal/normalize"
)

const defaultBaseURL = "https://financialmodelingprep.com/stable"

var (
	ErrNotConfigured = errors.New("fmp: API key not configured")
	ErrRateLimited   = errors.New("fmp: rate limited")
)

type Client struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
	limiter *rate.Limiter
}

// New builds a client allowing requestsPerMinute upstream calls.
func New(apiKey string, requestsPerMinute int) *Client {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 300
	}
	burst := max(1, requestsPerMinute/10)
	return &Client{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		HTTP:    httpclient.Default,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), burst),
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (interface{}, error) {
	if c.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fmp rate limiter: %w", err)
	}
	params.Set("apikey", c.APIKey)
	u := c.BaseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(httpclient.NewRequest(req))
	if err != nil {
		return nil, fmt.Errorf("fmp %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fmp %s: status %d", path, resp.StatusCode)
	}
	var data interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("fmp %s: decode: %w", path, err)
	}
	if m, ok := data.(map[string]interface{}); ok {
		if msg, ok := m["Error Message"].(string); ok && msg != "" {
			return nil, fmt.Errorf("fmp %s: %s", path, msg)
		}
	}
	return data, nil
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	s = s[:min(10, len(s))]
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Filings returns insider filings for ticker between from and to
// (inclusive, by filing date). One FMP row is one line item; rows sharing
// owner and filing date are merged into a single filing.
func (c *Client) Filings(ctx context.Context, ticker string, from, to time.Time, limit int) ([]models.Filing, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("page", "0")
	params.Set("limit", strconv.Itoa(limit))
	data, err := c.get(ctx, "/insider-trading/search", params)
	if err != nil {
		return nil, err
	}
	var items []interface{}
	switch v := data.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		if d, ok := v["data"].([]interface{}); ok {
			items = d
		}
	}

	byKey := make(map[string]int)
	filings := make([]models.Filing, 0)
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		filingDate, ok := parseDate(strOr(m["filingDate"], m["filedAt"], m["transactionDate"]))
		if !ok {
			continue
		}
		if !from.IsZero() && filingDate.Before(from) {
			continue
		}
		if !to.IsZero() && filingDate.After(to) {
			continue
		}
		txType := normalize.ParseTransactionType(str(m["transactionType"]), strOr(m["acquisitionOrDisposition"], m["acquiredDisposedCode"]))
		shares := toFloat(m["securitiesTransacted"], m["numberOfShares"], m["shares"])
		price := toFloat(m["price"])
		total := toFloat(m["value"], m["valueUsd"])
		if total == 0 {
			total, _ = normalize.LineValue(shares, price).Float64()
		}
		item := models.NonDerivativeTransaction{
			TransactionType: txType,
			Shares:          shares,
			PricePerShare:   price,
			TotalValue:      total,
		}

		sym := strings.ToUpper(strings.TrimSpace(strOr(m["symbol"], m["ticker"])))
		if sym == "" {
			sym = strings.ToUpper(ticker)
		}
		owner := strOr(m["reportingName"], m["reportingOwner"])
		key := sym + "|" + filingDate.Format("2006-01-02") + "|" + owner
		if idx, ok := byKey[key]; ok {
			filings[idx].NonDerivativeTransactions = append(filings[idx].NonDerivativeTransactions, item)
			continue
		}
		txDate, ok := parseDate(str(m["transactionDate"]))
		if !ok {
			txDate = filingDate
		}
		byKey[key] = len(filings)
		filings = append(filings, models.Filing{
			Ticker:          sym,
			CompanyName:     str(m["companyName"]),
			FilingDate:      filingDate,
			TransactionDate: txDate,
			ReportingOwner: models.ReportingOwner{
				Name:           owner,
				Classification: normalize.ClassifyRole(str(m["typeOfOwner"])),
			},
			NonDerivativeTransactions: []models.NonDerivativeTransaction{item},
			Source:                    "fmp",
		})
	}
	return filings, nil
}

// SP500Tickers lists index constituents from the FMP endpoint.
func (c *Client) SP500Tickers(ctx context.Context) ([]string, error) {
	data, err := c.get(ctx, "/sp500-constituent", url.Values{})
	if err != nil {
		return nil, err
	}
	arr, _ := data.([]interface{})
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]interface{}); ok {
			if sym := str(m["symbol"]); sym != "" {
				out = append(out, sym)
			}
		}
	}
	return out, nil
}

func str(v interface{}) string {
	if v == nil {
		return ""
	}
	if m, ok := v.(map[string]interface{}); ok {
		if n, ok := m["name"].(string); ok {
			return n
		}
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func strOr(vals ...interface{}) string {
	for _, v := range vals {
		if s := str(v); s != "" {
			return s
		}
	}
	return ""
}

func toFloat(vals ...interface{}) float64 {
	for _, v := range vals {
		if v == nil {
			continue
		}
		switch x := v.(type) {
		case float64:
			if x != 0 {
				return x
			}
		case int:
			if x != 0 {
				return float64(x)
			}
		case string:
			if f, err := strconv.ParseFloat(strings.ReplaceAll(x, ",", ""), 64); err == nil && f != 0 {
				return f
			}
		}
	}
	return 0
}
