package patterns

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bighogz/insider-vibes/internal/models"
)

var base = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

func tx(name, role string, daysAgo int, net float64) models.Transaction {
	return models.Transaction{
		Filing: models.Filing{
			Ticker:         "ACME",
			FilingDate:     base.AddDate(0, 0, -daysAgo),
			ReportingOwner: models.ReportingOwner{Name: name, Classification: role},
		},
		NetValue: net,
	}
}

// spread builds n transactions, newest first, evenly spaced over span days
// starting offset days ago.
func spread(n, offset, span int) []models.Transaction {
	out := make([]models.Transaction, n)
	for i := 0; i < n; i++ {
		d := offset
		if n > 1 {
			d = offset + i*span/(n-1)
		}
		out[i] = tx("Insider", models.RoleOfficer, d, 100)
	}
	return out
}

func TestEmptyInputDetectsNothing(t *testing.T) {
	p := New(Options{}).Detect(nil)
	assert.False(t, p.Momentum.Detected)
	assert.False(t, p.Acceleration.Detected)
	assert.False(t, p.Unusual.Detected)
	assert.False(t, p.Seasonality.Detected)
	assert.False(t, p.RoleConcentration.Detected)
}

func TestMomentumBullishEightOfTen(t *testing.T) {
	var txs []models.Transaction
	for i := 0; i < 10; i++ {
		net := 100.0
		if i >= 8 {
			net = -100
		}
		txs = append(txs, tx("A", models.RoleDirector, i, net))
	}
	m := New(Options{}).Momentum(txs)
	assert.True(t, m.Detected)
	assert.Equal(t, Bullish, m.Direction)
	assert.Equal(t, 80.0, m.Strength)
	assert.Equal(t, 10, m.Window)
}

func TestMomentumBearishAndBalanced(t *testing.T) {
	bear := []models.Transaction{
		tx("A", "", 0, -1), tx("B", "", 1, -1), tx("C", "", 2, -1), tx("D", "", 3, 5),
	}
	m := New(Options{}).Momentum(bear)
	assert.True(t, m.Detected)
	assert.Equal(t, Bearish, m.Direction)
	assert.Equal(t, 75.0, m.Strength)

	balanced := []models.Transaction{tx("A", "", 0, 1), tx("B", "", 1, -1)}
	assert.False(t, New(Options{}).Momentum(balanced).Detected)
}

func TestMomentumUsesMostRecentTwenty(t *testing.T) {
	var txs []models.Transaction
	for i := 0; i < 20; i++ {
		txs = append(txs, tx("A", "", i, 10))
	}
	for i := 20; i < 60; i++ {
		txs = append(txs, tx("B", "", i, -10))
	}
	m := New(Options{}).Momentum(txs)
	assert.Equal(t, 20, m.Window)
	assert.Equal(t, Bullish, m.Direction)
	assert.Equal(t, 100.0, m.Strength)
}

func TestAccelerationNeedsTenTransactions(t *testing.T) {
	for n := 0; n < 10; n++ {
		a := New(Options{}).Acceleration(spread(n, 0, 30))
		assert.False(t, a.Detected, "n=%d", n)
		assert.Zero(t, a.RecentVelocity)
		assert.Zero(t, a.OlderVelocity)
	}
}

func TestAccelerationMinimumIsTwo(t *testing.T) {
	d := New(Options{AccelerationMin: 1})
	var a models.Acceleration
	require.NotPanics(t, func() { a = d.Acceleration(spread(1, 0, 0)) })
	assert.False(t, a.Detected)
	assert.Zero(t, a.RecentVelocity)

	a = d.Acceleration(spread(2, 0, 4))
	assert.Equal(t, 1.0, a.RecentVelocity)
	assert.Equal(t, 1.0, a.OlderVelocity)
	assert.Equal(t, Stable, a.Trend)
}

func TestAccelerationTrendFollowsVelocityRatio(t *testing.T) {
	d := New(Options{})

	// Recent half packed into 5 days, older half stretched over 20 days.
	fast := append(spread(5, 0, 5), spread(5, 30, 20)...)
	a := d.Acceleration(fast)
	require.True(t, a.Detected)
	assert.Equal(t, Accelerating, a.Trend)
	assert.InDelta(t, 1.0, a.RecentVelocity, 1e-9)
	assert.InDelta(t, 0.25, a.OlderVelocity, 1e-9)
	assert.InDelta(t, 3.0, a.Change, 1e-9)

	slow := append(spread(5, 0, 20), spread(5, 30, 5)...)
	b := d.Acceleration(slow)
	require.True(t, b.Detected)
	assert.Equal(t, Decelerating, b.Trend)
	assert.NotEqual(t, a.Trend, b.Trend)
}

func TestAccelerationStableWithinThreshold(t *testing.T) {
	even := append(spread(5, 0, 10), spread(5, 20, 10)...)
	a := New(Options{}).Acceleration(even)
	assert.False(t, a.Detected)
	assert.Equal(t, Stable, a.Trend)
}

func TestUnusualNoOutliers(t *testing.T) {
	txs := []models.Transaction{
		tx("A", "", 0, 100), tx("B", "", 1, -110), tx("C", "", 2, 90),
		tx("D", "", 3, 105), tx("E", "", 4, -95),
	}
	u := New(Options{}).Unusual(txs)
	assert.False(t, u.Detected)
	assert.Equal(t, 0, u.Anomalies)
	assert.InDelta(t, 100.0, u.Mean, 1e-9)
	assert.Empty(t, u.Largest)
}

func TestUnusualFlagsOutlier(t *testing.T) {
	var txs []models.Transaction
	for i := 0; i < 10; i++ {
		txs = append(txs, tx("Small", "", i, 1000))
	}
	txs = append(txs, tx("Whale", "", 11, -1_000_000))
	u := New(Options{}).Unusual(txs)
	require.True(t, u.Detected)
	assert.Equal(t, 1, u.Anomalies)
	require.Len(t, u.Largest, 1)
	assert.Equal(t, "Whale", u.Largest[0].Insider)
	assert.Equal(t, -1_000_000.0, u.Largest[0].NetValue)
}

func TestUnusualUsesStatsHookAndFallsBack(t *testing.T) {
	txs := []models.Transaction{tx("A", "", 0, 10), tx("B", "", 1, 20)}

	hooked := New(Options{Stats: func(v []float64) (float64, float64, error) {
		return 1, 1, nil
	}}).Unusual(txs)
	assert.Equal(t, 3.0, hooked.Threshold)
	assert.Equal(t, 2, hooked.Anomalies)

	failing := New(Options{Stats: func(v []float64) (float64, float64, error) {
		return 0, 0, errors.New("engine down")
	}}).Unusual(txs)
	assert.InDelta(t, 15.0, failing.Mean, 1e-9)
	assert.Equal(t, 0, failing.Anomalies)
}

func TestSeasonalityPeakMonth(t *testing.T) {
	var txs []models.Transaction
	for i := 0; i < 6; i++ {
		txs = append(txs, tx("A", "", i, 10)) // June
	}
	txs = append(txs, tx("B", "", 60, 10), tx("C", "", 120, 10))
	s := New(Options{}).Seasonality(txs)
	assert.True(t, s.Detected)
	assert.Equal(t, "June", s.PeakMonth)
	assert.Equal(t, 6, s.PeakCount)
	assert.InDelta(t, 8.0/12, s.Average, 1e-9)
}

func TestSeasonalityEvenSpreadNotDetected(t *testing.T) {
	var txs []models.Transaction
	for m := 0; m < 12; m++ {
		f := tx("A", "", 0, 10)
		f.FilingDate = time.Date(2023, time.Month(m+1), 15, 0, 0, 0, 0, time.UTC)
		txs = append(txs, f)
	}
	s := New(Options{}).Seasonality(txs)
	assert.False(t, s.Detected)
	assert.Equal(t, "January", s.PeakMonth)
}

func TestRoleConcentration(t *testing.T) {
	d := New(Options{})
	dominated := []models.Transaction{
		tx("A", models.RoleOfficer, 0, 1), tx("B", models.RoleOfficer, 1, 1),
		tx("C", models.RoleOfficer, 2, 1), tx("D", models.RoleDirector, 3, 1),
	}
	rc := d.RoleConcentration(dominated)
	assert.True(t, rc.Detected)
	assert.Equal(t, models.RoleOfficer, rc.DominantRole)
	assert.Equal(t, 75.0, rc.Percentage)

	split := []models.Transaction{
		tx("A", models.RoleOfficer, 0, 1), tx("B", models.RoleDirector, 1, 1),
	}
	rc = d.RoleConcentration(split)
	assert.False(t, rc.Detected)
	assert.Equal(t, models.RoleDirector, rc.DominantRole)
}

func TestDetectIsRepeatable(t *testing.T) {
	txs := append(spread(6, 0, 4), spread(6, 40, 30)...)
	txs[2].NetValue = -5_000_000
	d := New(Options{})

	first, err := json.Marshal(d.Detect(txs))
	require.NoError(t, err)
	second, err := json.Marshal(d.Detect(txs))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestMeanStdPopulation(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 5.0, mean)
	assert.Equal(t, 2.0, std)
}
