// Package sp500 loads the S&P 500 constituent list used as a default
// comparison universe.
package sp500

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bighogz/insider-vibes/internal/httpclient"
)

const csvURL = "https://raw.githubusercontent.com/datasets/s-and-p-500-companies/master/data/constituents.csv"

var ErrNoSymbolColumn = errors.New("sp500: constituents csv has no Symbol column")

type Company struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

// Load downloads and parses the public constituents CSV.
func Load(ctx context.Context) ([]Company, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, csvURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Default.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sp500: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sp500: status %d", resp.StatusCode)
	}
	return Parse(resp.Body)
}

// Parse reads a constituents CSV with at least a Symbol column.
// Duplicate symbols are dropped; order is preserved.
func Parse(r io.Reader) ([]Company, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("sp500: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoSymbolColumn
	}
	symIdx, nameIdx, sectorIdx := -1, -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "symbol":
			symIdx = i
		case "security":
			nameIdx = i
		case "gics sector":
			sectorIdx = i
		}
	}
	if symIdx < 0 {
		return nil, ErrNoSymbolColumn
	}
	seen := make(map[string]bool)
	out := make([]Company, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if symIdx >= len(row) {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(row[symIdx]))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		c := Company{Symbol: sym, Sector: "Unknown"}
		if nameIdx >= 0 && nameIdx < len(row) {
			c.Name = strings.TrimSpace(row[nameIdx])
		}
		if sectorIdx >= 0 && sectorIdx < len(row) {
			if s := strings.TrimSpace(row[sectorIdx]); s != "" {
				c.Sector = s
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// Symbols returns the first n symbols (all when n <= 0).
func Symbols(companies []Company, n int) []string {
	if n <= 0 || n > len(companies) {
		n = len(companies)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = companies[i].Symbol
	}
	return out
}
