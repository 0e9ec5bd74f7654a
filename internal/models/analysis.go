package models

import "time"

type ClusterDirection string

const (
	Buying  ClusterDirection = "Buying"
	Selling ClusterDirection = "Selling"
)

// Cluster is a group of distinct insiders transacting in the same
// direction within a short window.
type Cluster struct {
	Direction              ClusterDirection `json:"direction"`
	StartDate              time.Time        `json:"start_date"`
	EndDate                time.Time        `json:"end_date"`
	InsiderCount           int              `json:"insider_count"`
	TransactionCount       int              `json:"transaction_count"`
	TotalValue             float64          `json:"total_value"`
	AverageValuePerInsider float64          `json:"average_value_per_insider"`
	InsiderRoles           []string         `json:"insider_roles"`
	Insiders               []string         `json:"insiders"`
	Confidence             float64          `json:"confidence"`
}

type ClusterResult struct {
	Detected bool      `json:"detected"`
	Count    int       `json:"count"`
	Clusters []Cluster `json:"clusters"`
}

type Momentum struct {
	Detected  bool    `json:"detected"`
	Direction string  `json:"direction,omitempty"`
	Strength  float64 `json:"strength"`
	Window    int     `json:"window"`
	BuyRatio  float64 `json:"buy_ratio"`
	SellRatio float64 `json:"sell_ratio"`
}

type Acceleration struct {
	Detected       bool    `json:"detected"`
	Trend          string  `json:"trend,omitempty"`
	RecentVelocity float64 `json:"recent_velocity"`
	OlderVelocity  float64 `json:"older_velocity"`
	Change         float64 `json:"change"`
}

type Anomaly struct {
	Insider    string    `json:"insider"`
	FilingDate time.Time `json:"filing_date"`
	NetValue   float64   `json:"net_value"`
}

type Unusual struct {
	Detected  bool      `json:"detected"`
	Anomalies int       `json:"anomalies"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	Threshold float64   `json:"threshold"`
	Largest   []Anomaly `json:"largest,omitempty"`
}

type Seasonality struct {
	Detected    bool    `json:"detected"`
	PeakMonth   string  `json:"peak_month,omitempty"`
	PeakCount   int     `json:"peak_count"`
	Average     float64 `json:"average"`
	MonthCounts [12]int `json:"month_counts"`
}

type RoleConcentration struct {
	Detected     bool    `json:"detected"`
	DominantRole string  `json:"dominant_role,omitempty"`
	Percentage   float64 `json:"percentage"`
}

// Patterns holds the independent detector outputs for one run.
type Patterns struct {
	Momentum          Momentum          `json:"momentum"`
	Acceleration      Acceleration      `json:"acceleration"`
	Unusual           Unusual           `json:"unusual"`
	Seasonality       Seasonality       `json:"seasonality"`
	RoleConcentration RoleConcentration `json:"role_concentration"`
}

type Sentiment struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}

type Totals struct {
	Purchases     int     `json:"purchases"`
	Sales         int     `json:"sales"`
	PurchaseValue float64 `json:"purchase_value"`
	SaleValue     float64 `json:"sale_value"`
	NetValue      float64 `json:"net_value"`
	Insiders      int     `json:"insiders"`
}

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

type Alert struct {
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Analysis is the result of analyzing one ticker over one period.
type Analysis struct {
	Ticker         string        `json:"ticker"`
	From           time.Time     `json:"from"`
	To             time.Time     `json:"to"`
	Transactions   []Transaction `json:"transactions"`
	Clusters       ClusterResult `json:"clusters"`
	Patterns       Patterns      `json:"patterns"`
	Sentiment      Sentiment     `json:"sentiment"`
	Totals         Totals        `json:"totals"`
	Alerts         []Alert       `json:"alerts"`
	Recommendation string        `json:"recommendation"`
	OverallScore   int           `json:"overall_score"`
	GeneratedAt    time.Time     `json:"generated_at"`
}
