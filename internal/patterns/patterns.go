// Package patterns runs independent statistical detectors over an
// ordered-by-recency list of insider transactions.
package patterns

import (
	"math"
	"sort"
	"time"

	"github.com/bighogz/insider-vibes/internal/models"
)

const (
	Bullish      = "Bullish"
	Bearish      = "Bearish"
	Accelerating = "Accelerating"
	Decelerating = "Decelerating"
	Stable       = "Stable"
)

// StatsFunc computes mean and population standard deviation. A non-nil
// error makes the detector fall back to MeanStd.
type StatsFunc func(values []float64) (mean, std float64, err error)

type Options struct {
	MomentumWindow        int
	MomentumThreshold     float64
	AccelerationMin       int
	AccelerationThreshold float64
	AnomalyStdThreshold   float64
	SeasonalityFactor     float64
	RoleShareThreshold    float64
	MaxReportedAnomalies  int
	Stats                 StatsFunc
}

func DefaultOptions() Options {
	return Options{
		MomentumWindow:        20,
		MomentumThreshold:     0.7,
		AccelerationMin:       10,
		AccelerationThreshold: 0.3,
		AnomalyStdThreshold:   2,
		SeasonalityFactor:     1.5,
		RoleShareThreshold:    0.6,
		MaxReportedAnomalies:  5,
	}
}

// Detector is stateless apart from its options; Detect is a pure
// function of its input.
type Detector struct {
	opts Options
}

// New fills zero-valued options with defaults.
func New(opts Options) *Detector {
	def := DefaultOptions()
	if opts.MomentumWindow <= 0 {
		opts.MomentumWindow = def.MomentumWindow
	}
	if opts.MomentumThreshold <= 0 {
		opts.MomentumThreshold = def.MomentumThreshold
	}
	if opts.AccelerationMin <= 0 {
		opts.AccelerationMin = def.AccelerationMin
	}
	// Both halves need at least one transaction.
	if opts.AccelerationMin < 2 {
		opts.AccelerationMin = 2
	}
	if opts.AccelerationThreshold <= 0 {
		opts.AccelerationThreshold = def.AccelerationThreshold
	}
	if opts.AnomalyStdThreshold <= 0 {
		opts.AnomalyStdThreshold = def.AnomalyStdThreshold
	}
	if opts.SeasonalityFactor <= 0 {
		opts.SeasonalityFactor = def.SeasonalityFactor
	}
	if opts.RoleShareThreshold <= 0 {
		opts.RoleShareThreshold = def.RoleShareThreshold
	}
	if opts.MaxReportedAnomalies <= 0 {
		opts.MaxReportedAnomalies = def.MaxReportedAnomalies
	}
	return &Detector{opts: opts}
}

// Detect runs every detector. txs must be ordered newest first.
func (d *Detector) Detect(txs []models.Transaction) models.Patterns {
	return models.Patterns{
		Momentum:          d.Momentum(txs),
		Acceleration:      d.Acceleration(txs),
		Unusual:           d.Unusual(txs),
		Seasonality:       d.Seasonality(txs),
		RoleConcentration: d.RoleConcentration(txs),
	}
}

// Momentum measures directional bias over the most recent transactions.
func (d *Detector) Momentum(txs []models.Transaction) models.Momentum {
	n := min(d.opts.MomentumWindow, len(txs))
	if n == 0 {
		return models.Momentum{}
	}
	var buys, sells int
	for _, t := range txs[:n] {
		switch {
		case t.NetValue > 0:
			buys++
		case t.NetValue < 0:
			sells++
		}
	}
	buyRatio := float64(buys) / float64(n)
	sellRatio := float64(sells) / float64(n)
	m := models.Momentum{Window: n, BuyRatio: buyRatio, SellRatio: sellRatio}
	switch {
	case buyRatio > d.opts.MomentumThreshold:
		m.Detected = true
		m.Direction = Bullish
		m.Strength = float64(buys) * 100 / float64(n)
	case sellRatio > d.opts.MomentumThreshold:
		m.Detected = true
		m.Direction = Bearish
		m.Strength = float64(sells) * 100 / float64(n)
	}
	return m
}

// Acceleration compares filing velocity between the newer and older
// halves of the list.
func (d *Detector) Acceleration(txs []models.Transaction) models.Acceleration {
	if len(txs) < d.opts.AccelerationMin {
		return models.Acceleration{}
	}
	mid := len(txs) / 2
	recent, older := txs[:mid], txs[mid:]
	recentV := float64(len(recent)) / daySpan(recent)
	olderV := float64(len(older)) / daySpan(older)
	change := (recentV - olderV) / olderV

	a := models.Acceleration{
		RecentVelocity: recentV,
		OlderVelocity:  olderV,
		Change:         change,
		Trend:          Stable,
	}
	if math.Abs(change) > d.opts.AccelerationThreshold {
		a.Detected = true
		if change > 0 {
			a.Trend = Accelerating
		} else {
			a.Trend = Decelerating
		}
	}
	return a
}

// Unusual flags transactions whose absolute value exceeds
// mean + k·stddev of all absolute values.
func (d *Detector) Unusual(txs []models.Transaction) models.Unusual {
	if len(txs) == 0 {
		return models.Unusual{}
	}
	vals := make([]float64, len(txs))
	for i, t := range txs {
		vals[i] = math.Abs(t.NetValue)
	}
	mean, std := d.meanStd(vals)
	threshold := mean + d.opts.AnomalyStdThreshold*std

	var found []models.Anomaly
	for _, t := range txs {
		if math.Abs(t.NetValue) > threshold {
			found = append(found, models.Anomaly{
				Insider:    t.ReportingOwner.Name,
				FilingDate: t.FilingDate,
				NetValue:   t.NetValue,
			})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return math.Abs(found[i].NetValue) > math.Abs(found[j].NetValue)
	})
	u := models.Unusual{
		Detected:  len(found) > 0,
		Anomalies: len(found),
		Mean:      mean,
		StdDev:    std,
		Threshold: threshold,
	}
	if len(found) > 0 {
		u.Largest = found[:min(d.opts.MaxReportedAnomalies, len(found))]
	}
	return u
}

// Seasonality buckets filings by calendar month.
func (d *Detector) Seasonality(txs []models.Transaction) models.Seasonality {
	if len(txs) == 0 {
		return models.Seasonality{}
	}
	var s models.Seasonality
	for _, t := range txs {
		s.MonthCounts[t.FilingDate.Month()-1]++
	}
	peak := 0
	for m := 1; m < 12; m++ {
		if s.MonthCounts[m] > s.MonthCounts[peak] {
			peak = m
		}
	}
	s.Average = float64(len(txs)) / 12
	s.PeakCount = s.MonthCounts[peak]
	s.PeakMonth = time.Month(peak + 1).String()
	s.Detected = float64(s.PeakCount) > d.opts.SeasonalityFactor*s.Average
	return s
}

// RoleConcentration reports whether one owner classification dominates.
func (d *Detector) RoleConcentration(txs []models.Transaction) models.RoleConcentration {
	if len(txs) == 0 {
		return models.RoleConcentration{}
	}
	counts := make(map[string]int)
	for _, t := range txs {
		counts[t.ReportingOwner.Classification]++
	}
	roles := make([]string, 0, len(counts))
	for r := range counts {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	dominant := roles[0]
	for _, r := range roles[1:] {
		if counts[r] > counts[dominant] {
			dominant = r
		}
	}
	share := float64(counts[dominant]) / float64(len(txs))
	return models.RoleConcentration{
		Detected:     share > d.opts.RoleShareThreshold,
		DominantRole: dominant,
		Percentage:   share * 100,
	}
}

func (d *Detector) meanStd(vals []float64) (float64, float64) {
	if d.opts.Stats != nil {
		if mean, std, err := d.opts.Stats(vals); err == nil {
			return mean, std
		}
	}
	return MeanStd(vals)
}

// MeanStd returns the mean and population standard deviation.
func MeanStd(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean = sum / float64(len(vals))
	var sqDiff float64
	for _, v := range vals {
		d := v - mean
		sqDiff += d * d
	}
	std = math.Sqrt(sqDiff / float64(len(vals)))
	return mean, std
}

// daySpan is the number of days between the newest and oldest filing,
// at least one.
func daySpan(txs []models.Transaction) float64 {
	newest, oldest := txs[0].FilingDate, txs[0].FilingDate
	for _, t := range txs[1:] {
		if t.FilingDate.After(newest) {
			newest = t.FilingDate
		}
		if t.FilingDate.Before(oldest) {
			oldest = t.FilingDate
		}
	}
	return math.Max(1, newest.Sub(oldest).Hours()/24)
}
