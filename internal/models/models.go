package models

import "time"

// TransactionType is the direction of a non-derivative line item.
type TransactionType string

const (
	Purchase TransactionType = "Purchase"
	Sale     TransactionType = "Sale"
	Other    TransactionType = "Other"
)

// Owner classifications produced by normalize.ClassifyRole.
const (
	RoleDirector   = "Director"
	RoleOfficer    = "Officer"
	RoleTenPct     = "10% Owner"
	RoleOther      = "Other"
	RoleUnknown    = "Unknown"
	UnknownInsider = "Unknown"
)

type ReportingOwner struct {
	Name           string `json:"name"`
	Classification string `json:"classification"`
}

type NonDerivativeTransaction struct {
	TransactionType TransactionType `json:"transaction_type"`
	Shares          float64         `json:"shares"`
	PricePerShare   float64         `json:"price_per_share"`
	TotalValue      float64         `json:"total_value"`
}

// Filing is one raw insider filing as delivered by a feed.
type Filing struct {
	Ticker                    string                     `json:"ticker"`
	CompanyName               string                     `json:"company_name,omitempty"`
	FilingDate                time.Time                  `json:"filing_date"`
	TransactionDate           time.Time                  `json:"transaction_date"`
	ReportingOwner            ReportingOwner             `json:"reporting_owner"`
	NonDerivativeTransactions []NonDerivativeTransaction `json:"non_derivative_transactions"`
	Source                    string                     `json:"source"`
}

// Transaction is a normalized filing with its signed net value
// (purchases positive, sales negative).
type Transaction struct {
	Filing
	NetValue float64 `json:"net_value"`
}

// IsPurchase reports whether the net effect of the filing is a purchase.
func (t Transaction) IsPurchase() bool { return t.NetValue > 0 }

// IsSale reports whether the net effect of the filing is a sale.
func (t Transaction) IsSale() bool { return t.NetValue < 0 }
