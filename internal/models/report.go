package models

import "time"

type SummaryRow struct {
	Ticker           string `json:"ticker"`
	SentimentScore   int    `json:"sentiment_score"`
	SentimentLabel   string `json:"sentiment_label"`
	TransactionCount int    `json:"transaction_count"`
	ClusterCount     int    `json:"cluster_count"`
	Recommendation   string `json:"recommendation"`
	OverallScore     int    `json:"overall_score"`
}

type RankEntry struct {
	Rank   int     `json:"rank"`
	Ticker string  `json:"ticker"`
	Value  float64 `json:"value"`
}

type Rankings struct {
	BySentiment []RankEntry `json:"by_sentiment"`
	ByActivity  []RankEntry `json:"by_activity"`
	ByClusters  []RankEntry `json:"by_clusters"`
}

// Visualizations are chart-ready arrays aligned with Labels.
type Visualizations struct {
	Labels    []string `json:"labels"`
	Sentiment []int    `json:"sentiment"`
	Activity  []int    `json:"activity"`
	Clusters  []int    `json:"clusters"`
}

type TickerFailure struct {
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}

// ComparisonReport is read-only once built.
type ComparisonReport struct {
	ID             string          `json:"id"`
	Tickers        []string        `json:"tickers"`
	Failed         []TickerFailure `json:"failed,omitempty"`
	Summary        []SummaryRow    `json:"summary"`
	Rankings       Rankings        `json:"rankings"`
	Visualizations Visualizations  `json:"visualizations"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

type NodeKind string

const (
	NodeCompany NodeKind = "company"
	NodeInsider NodeKind = "insider"
)

type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Kind     NodeKind `json:"kind"`
	Role     string   `json:"role,omitempty"`
	NetValue float64  `json:"net_value"`
	Color    string   `json:"color"`
	Size     float64  `json:"size"`
}

type Edge struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Weight   float64 `json:"weight"`
	Dashed   bool    `json:"dashed"`
	Directed bool    `json:"directed"`
}

// Graph is an insider network for one company.
type Graph struct {
	Ticker      string `json:"ticker"`
	Empty       bool   `json:"empty"`
	Placeholder string `json:"placeholder,omitempty"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
}
