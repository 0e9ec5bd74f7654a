// Package normalize turns raw insider filings into signed net-value
// transactions.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bighogz/insider-vibes/internal/models"
)

// Transactions converts filings into transactions ordered by recency
// (newest filing first). Filings whose net value is zero and exact
// duplicates are dropped.
func Transactions(filings []models.Filing) []models.Transaction {
	seen := make(map[string]bool)
	out := make([]models.Transaction, 0, len(filings))
	for _, f := range filings {
		net := NetValue(f.NonDerivativeTransactions)
		if net == 0 {
			continue
		}
		if f.ReportingOwner.Name == "" {
			f.ReportingOwner.Name = models.UnknownInsider
		}
		if f.ReportingOwner.Classification == "" {
			f.ReportingOwner.Classification = models.RoleUnknown
		}
		f.Ticker = strings.ToUpper(strings.TrimSpace(f.Ticker))
		key := keyFor(f, net)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.Transaction{Filing: f, NetValue: net})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FilingDate.After(out[j].FilingDate)
	})
	return out
}

// NetValue sums purchase totals minus sale totals. Line items without a
// total fall back to shares × price.
func NetValue(items []models.NonDerivativeTransaction) float64 {
	net := decimal.Zero
	for _, it := range items {
		v := decimal.NewFromFloat(it.TotalValue)
		if it.TotalValue == 0 {
			v = LineValue(it.Shares, it.PricePerShare)
		}
		switch it.TransactionType {
		case models.Purchase:
			net = net.Add(v.Abs())
		case models.Sale:
			net = net.Sub(v.Abs())
		}
	}
	f, _ := net.Round(2).Float64()
	return f
}

// LineValue is shares × price in decimal arithmetic.
func LineValue(shares, price float64) decimal.Decimal {
	return decimal.NewFromFloat(shares).Mul(decimal.NewFromFloat(price))
}

// ClassifyRole maps a free-text owner type ("officer: CFO",
// "director", "10 percent owner") to a fixed classification.
func ClassifyRole(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return models.RoleUnknown
	case strings.Contains(s, "director"):
		return models.RoleDirector
	case strings.Contains(s, "officer"),
		strings.Contains(s, "ceo"),
		strings.Contains(s, "cfo"),
		strings.Contains(s, "coo"),
		strings.Contains(s, "president"),
		strings.Contains(s, "chief"),
		strings.Contains(s, "vp"),
		strings.Contains(s, "vice"):
		return models.RoleOfficer
	case strings.Contains(s, "10%"),
		strings.Contains(s, "10 percent"),
		strings.Contains(s, "ten percent"):
		return models.RoleTenPct
	default:
		return models.RoleOther
	}
}

// ParseTransactionType reads FMP/SEC style codes: "P-Purchase",
// "S-Sale", "P", "S", "A"/"D" acquisition/disposition.
func ParseTransactionType(transactionType, acqDisp string) models.TransactionType {
	t := strings.ToUpper(strings.TrimSpace(transactionType))
	switch {
	case strings.HasPrefix(t, "P"), strings.Contains(t, "PURCHASE"), strings.Contains(t, "BUY"):
		return models.Purchase
	case strings.HasPrefix(t, "S-"), t == "S", strings.Contains(t, "SALE"), strings.Contains(t, "SELL"):
		return models.Sale
	}
	if t == "" {
		switch strings.ToUpper(strings.TrimSpace(acqDisp)) {
		case "A":
			return models.Purchase
		case "D":
			return models.Sale
		}
	}
	return models.Other
}

func keyFor(f models.Filing, net float64) string {
	return f.Ticker + "|" + f.FilingDate.Format("2006-01-02") + "|" + f.ReportingOwner.Name + "|" + fmt.Sprintf("%.0f", net)
}
