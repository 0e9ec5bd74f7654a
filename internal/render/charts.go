package render

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bighogz/insider-vibes/internal/models"
)

// BarChart is per-role purchase and sale value. Sales are magnitudes.
type BarChart struct {
	Labels    []string  `json:"labels"`
	Purchases []float64 `json:"purchases"`
	Sales     []float64 `json:"sales"`
}

// LineChart is weekly purchase and sale value, oldest week first.
type LineChart struct {
	Labels    []string  `json:"labels"`
	WeekStart []string  `json:"week_start"`
	Purchases []float64 `json:"purchases"`
	Sales     []float64 `json:"sales"`
}

func RoleChart(txs []models.Transaction) BarChart {
	buys := make(map[string]float64)
	sells := make(map[string]float64)
	roles := make(map[string]struct{})
	for _, t := range txs {
		role := t.ReportingOwner.Classification
		roles[role] = struct{}{}
		if t.NetValue > 0 {
			buys[role] += t.NetValue
		} else {
			sells[role] += math.Abs(t.NetValue)
		}
	}
	c := BarChart{Labels: make([]string, 0, len(roles))}
	for r := range roles {
		c.Labels = append(c.Labels, r)
	}
	sort.Strings(c.Labels)
	c.Purchases = make([]float64, len(c.Labels))
	c.Sales = make([]float64, len(c.Labels))
	for i, r := range c.Labels {
		c.Purchases[i] = round2(buys[r])
		c.Sales[i] = round2(sells[r])
	}
	return c
}

// TimelineChart buckets by ISO week. Weeks with no filings between the
// first and last are omitted.
func TimelineChart(txs []models.Transaction) LineChart {
	type bucket struct {
		start      time.Time
		buys, sale float64
	}
	byWeek := make(map[time.Time]*bucket)
	for _, t := range txs {
		ws := WeekStart(t.FilingDate)
		b, ok := byWeek[ws]
		if !ok {
			b = &bucket{start: ws}
			byWeek[ws] = b
		}
		if t.NetValue > 0 {
			b.buys += t.NetValue
		} else {
			b.sale += math.Abs(t.NetValue)
		}
	}
	buckets := make([]*bucket, 0, len(byWeek))
	for _, b := range byWeek {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].start.Before(buckets[j].start) })

	c := LineChart{
		Labels:    make([]string, len(buckets)),
		WeekStart: make([]string, len(buckets)),
		Purchases: make([]float64, len(buckets)),
		Sales:     make([]float64, len(buckets)),
	}
	for i, b := range buckets {
		y, w := b.start.ISOWeek()
		c.Labels[i] = fmt.Sprintf("%d-W%02d", y, w)
		c.WeekStart[i] = b.start.Format("2006-01-02")
		c.Purchases[i] = round2(b.buys)
		c.Sales[i] = round2(b.sale)
	}
	return c
}

// WeekStart returns midnight UTC of the Monday on or before t.
func WeekStart(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
