package analytics

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/bighogz/insider-vibes/internal/models"
	"github.com/bighogz/insider-vibes/internal/patterns"
)

// Sentiment labels, most bullish first.
const (
	VeryBullish = "Very Bullish"
	Bullish     = "Bullish"
	Neutral     = "Neutral"
	Bearish     = "Bearish"
	VeryBearish = "Very Bearish"
)

// Recommendations, strongest first.
const (
	StrongBuy = "Strong Buy Signal"
	Buy       = "Buy Signal"
	Hold      = "Hold / Monitor"
	Caution   = "Caution"
	Sell      = "Sell Signal"
)

const highConfidence = 70

// Totals sums purchase and sale activity. Sale value is reported as a
// positive magnitude.
func Totals(txs []models.Transaction) models.Totals {
	var t models.Totals
	buy, sell := decimal.Zero, decimal.Zero
	insiders := make(map[string]struct{})
	for _, tx := range txs {
		insiders[tx.ReportingOwner.Name] = struct{}{}
		v := decimal.NewFromFloat(tx.NetValue)
		switch {
		case tx.NetValue > 0:
			t.Purchases++
			buy = buy.Add(v)
		case tx.NetValue < 0:
			t.Sales++
			sell = sell.Add(v.Abs())
		}
	}
	t.PurchaseValue, _ = buy.Round(2).Float64()
	t.SaleValue, _ = sell.Round(2).Float64()
	t.NetValue, _ = buy.Sub(sell).Round(2).Float64()
	t.Insiders = len(insiders)
	return t
}

// Sentiment blends the purchase share of transaction count and of dollar
// value, equally weighted. No activity scores a neutral 50.
func Sentiment(t models.Totals) models.Sentiment {
	count := t.Purchases + t.Sales
	value := t.PurchaseValue + t.SaleValue
	if count == 0 {
		return models.Sentiment{Score: 50, Label: Label(50)}
	}
	countBias := float64(t.Purchases) / float64(count)
	valueBias := 0.5
	if value > 0 {
		valueBias = t.PurchaseValue / value
	}
	score := int(math.Round(50*countBias + 50*valueBias))
	return models.Sentiment{Score: score, Label: Label(score)}
}

func Label(score int) string {
	switch {
	case score >= 80:
		return VeryBullish
	case score >= 60:
		return Bullish
	case score > 40:
		return Neutral
	case score > 20:
		return Bearish
	default:
		return VeryBearish
	}
}

// OverallScore combines sentiment with cluster and pattern signals,
// clamped to 0-100.
func OverallScore(sentiment int, clusters models.ClusterResult, p models.Patterns) int {
	s := 0.6 * float64(sentiment)
	s += math.Min(20, 5*float64(clusters.Count))
	if p.Momentum.Detected {
		switch p.Momentum.Direction {
		case patterns.Bullish:
			s += 10
		case patterns.Bearish:
			s -= 10
		}
	}
	if p.Unusual.Detected {
		s += 5
	}
	return int(math.Round(math.Max(0, math.Min(100, s))))
}

func Recommendation(score int) string {
	switch {
	case score >= 75:
		return StrongBuy
	case score >= 60:
		return Buy
	case score > 40:
		return Hold
	case score > 25:
		return Caution
	default:
		return Sell
	}
}

// Alerts lists the notable findings, clusters first.
func Alerts(clusters models.ClusterResult, p models.Patterns) []models.Alert {
	alerts := make([]models.Alert, 0)
	for _, c := range clusters.Clusters {
		kind, verb := "cluster_buying", "bought"
		if c.Direction == models.Selling {
			kind, verb = "cluster_selling", "sold"
		}
		sev := models.SeverityMedium
		if c.Confidence >= highConfidence {
			sev = models.SeverityHigh
		}
		alerts = append(alerts, models.Alert{
			Kind:     kind,
			Severity: sev,
			Message: fmt.Sprintf("%d insiders %s %s between %s and %s",
				c.InsiderCount, verb, money(c.TotalValue),
				c.StartDate.Format("Jan 2"), c.EndDate.Format("Jan 2, 2006")),
		})
	}
	if p.Unusual.Detected {
		alerts = append(alerts, models.Alert{
			Kind:     "unusual_activity",
			Severity: models.SeverityMedium,
			Message: fmt.Sprintf("%d %s above %s",
				p.Unusual.Anomalies, plural(p.Unusual.Anomalies, "transaction", "transactions"), money(p.Unusual.Threshold)),
		})
	}
	if p.Momentum.Detected {
		sev := models.SeverityLow
		if p.Momentum.Strength >= 90 {
			sev = models.SeverityMedium
		}
		alerts = append(alerts, models.Alert{
			Kind:     "momentum",
			Severity: sev,
			Message:  fmt.Sprintf("%s momentum: %.0f%% of the last %d transactions", p.Momentum.Direction, p.Momentum.Strength, p.Momentum.Window),
		})
	}
	if p.Acceleration.Detected {
		alerts = append(alerts, models.Alert{
			Kind:     "acceleration",
			Severity: models.SeverityLow,
			Message:  fmt.Sprintf("Filing pace %s (%+.0f%%)", lowerFirst(p.Acceleration.Trend), p.Acceleration.Change*100),
		})
	}
	return alerts
}

func money(v float64) string {
	return "$" + humanize.Comma(int64(math.Round(math.Abs(v))))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]|0x20) + s[1:]
}
