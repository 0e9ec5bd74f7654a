// Package cluster finds groups of distinct insiders transacting in the
// same direction within a short shared window.
package cluster

import (
	"math"
	"sort"
	"time"

	"github.com/bighogz/insider-vibes/internal/models"
)

const (
	DefaultWindowDays  = 7
	DefaultMinInsiders = 2
)

type Options struct {
	WindowDays  int
	MinInsiders int
}

func (o Options) withDefaults() Options {
	if o.WindowDays <= 0 {
		o.WindowDays = DefaultWindowDays
	}
	if o.MinInsiders < DefaultMinInsiders {
		o.MinInsiders = DefaultMinInsiders
	}
	return o
}

// Detect scans purchases and sales separately and returns clusters newest
// first.
func Detect(txs []models.Transaction, opts Options) models.ClusterResult {
	opts = opts.withDefaults()
	var buys, sells []models.Transaction
	for _, t := range txs {
		switch {
		case t.NetValue > 0:
			buys = append(buys, t)
		case t.NetValue < 0:
			sells = append(sells, t)
		}
	}
	clusters := scan(buys, models.Buying, opts)
	clusters = append(clusters, scan(sells, models.Selling, opts)...)
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].StartDate.After(clusters[j].StartDate)
	})
	if clusters == nil {
		clusters = []models.Cluster{}
	}
	return models.ClusterResult{
		Detected: len(clusters) > 0,
		Count:    len(clusters),
		Clusters: clusters,
	}
}

func scan(txs []models.Transaction, dir models.ClusterDirection, opts Options) []models.Cluster {
	if len(txs) == 0 {
		return nil
	}
	sorted := make([]models.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FilingDate.Before(sorted[j].FilingDate)
	})

	window := time.Duration(opts.WindowDays) * 24 * time.Hour
	var out []models.Cluster
	for i := 0; i < len(sorted); {
		start := sorted[i].FilingDate
		j := i
		for j < len(sorted) && sorted[j].FilingDate.Sub(start) <= window {
			j++
		}
		group := sorted[i:j]
		if distinctInsiders(group) >= opts.MinInsiders {
			out = append(out, build(group, dir))
			i = j
			continue
		}
		i++
	}
	return out
}

func build(group []models.Transaction, dir models.ClusterDirection) models.Cluster {
	var names []string
	seenName := make(map[string]bool)
	seenRole := make(map[string]bool)
	var roles []string
	var total float64
	for _, t := range group {
		total += math.Abs(t.NetValue)
		if n := t.ReportingOwner.Name; !seenName[n] {
			seenName[n] = true
			names = append(names, n)
		}
		if r := t.ReportingOwner.Classification; !seenRole[r] {
			seenRole[r] = true
			roles = append(roles, r)
		}
	}
	sort.Strings(roles)
	c := models.Cluster{
		Direction:              dir,
		StartDate:              group[0].FilingDate,
		EndDate:                group[len(group)-1].FilingDate,
		InsiderCount:           len(names),
		TransactionCount:       len(group),
		TotalValue:             total,
		AverageValuePerInsider: total / float64(len(names)),
		InsiderRoles:           roles,
		Insiders:               names,
	}
	c.Confidence = confidence(c)
	return c
}

func confidence(c models.Cluster) float64 {
	score := 20*float64(c.InsiderCount) + 5*float64(c.TransactionCount)
	if c.TotalValue >= 1_000_000 {
		score += 10
	}
	return math.Min(100, score)
}

func distinctInsiders(group []models.Transaction) int {
	seen := make(map[string]bool, len(group))
	for _, t := range group {
		seen[t.ReportingOwner.Name] = true
	}
	return len(seen)
}
