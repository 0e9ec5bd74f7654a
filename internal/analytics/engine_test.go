package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/bighogz/insider-vibes/internal/metrics"
	"github.com/bighogz/insider-vibes/internal/models"
)

type fakeSource struct {
	mu      sync.Mutex
	filings []models.Filing
	err     error
	calls   int
	ticker  string
	from    time.Time
	to      time.Time
	limit   int
}

func (s *fakeSource) Filings(_ context.Context, ticker string, from, to time.Time, limit int) ([]models.Filing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.ticker, s.from, s.to, s.limit = ticker, from, to, limit
	return s.filings, s.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func may(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }

func filing(owner, role string, d int, typ models.TransactionType, total float64) models.Filing {
	return models.Filing{
		Ticker:         "AAPL",
		FilingDate:     may(d),
		ReportingOwner: models.ReportingOwner{Name: owner, Classification: role},
		NonDerivativeTransactions: []models.NonDerivativeTransaction{
			{TransactionType: typ, TotalValue: total},
		},
	}
}

// Three directors buy in one week, one officer sells later.
func fixture() []models.Filing {
	return []models.Filing{
		filing("Alice", models.RoleDirector, 1, models.Purchase, 100_000),
		filing("Bob", models.RoleDirector, 2, models.Purchase, 100_000),
		filing("Carol", models.RoleDirector, 3, models.Purchase, 100_000),
		filing("Dan", models.RoleOfficer, 20, models.Sale, 100_000),
	}
}

func newEngine(src FilingSource, c *clock, opts ...EngineOption) *Engine {
	return New(src, append([]EngineOption{WithClock(c.now)}, opts...)...)
}

func TestAnalyzeCompany(t *testing.T) {
	src := &fakeSource{filings: fixture()}
	c := &clock{t: time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)}
	e := newEngine(src, c)

	var progress []int
	a, err := e.AnalyzeCompany(context.Background(), " aapl ", Options{
		Progress: func(pct int, _ string) { progress = append(progress, pct) },
	})
	require.NoError(t, err)

	assert.Equal(t, []int{10, 40, 60, 80, 100}, progress)
	assert.Equal(t, "AAPL", src.ticker)
	assert.Equal(t, DefaultFilingLimit, src.limit)
	assert.True(t, src.from.Equal(c.t.AddDate(0, -DefaultMonths, 0)))
	assert.True(t, src.to.Equal(c.t))

	assert.Equal(t, "AAPL", a.Ticker)
	require.Len(t, a.Transactions, 4)
	assert.Equal(t, "Dan", a.Transactions[0].ReportingOwner.Name)

	assert.Equal(t, models.Totals{
		Purchases: 3, Sales: 1,
		PurchaseValue: 300_000, SaleValue: 100_000, NetValue: 200_000,
		Insiders: 4,
	}, a.Totals)
	assert.Equal(t, models.Sentiment{Score: 75, Label: Bullish}, a.Sentiment)

	require.Equal(t, 1, a.Clusters.Count)
	assert.Equal(t, models.Buying, a.Clusters.Clusters[0].Direction)
	assert.True(t, a.Patterns.Momentum.Detected)
	assert.False(t, a.Patterns.Acceleration.Detected)
	assert.False(t, a.Patterns.Unusual.Detected)

	// 0.6*75 + 5 for one cluster + 10 bullish momentum
	assert.Equal(t, 60, a.OverallScore)
	assert.Equal(t, Buy, a.Recommendation)

	require.Len(t, a.Alerts, 2)
	assert.Equal(t, "cluster_buying", a.Alerts[0].Kind)
	assert.Equal(t, models.SeverityHigh, a.Alerts[0].Severity)
	assert.Equal(t, "3 insiders bought $300,000 between May 1 and May 3, 2024", a.Alerts[0].Message)
	assert.Equal(t, "momentum", a.Alerts[1].Kind)
}

func TestAnalyzeCompanyCachesFetch(t *testing.T) {
	src := &fakeSource{filings: fixture()}
	c := &clock{t: time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)}
	rec := metrics.New()
	e := newEngine(src, c, WithMetrics(rec))
	ctx := context.Background()

	_, err := e.AnalyzeCompany(ctx, "AAPL", Options{})
	require.NoError(t, err)
	require.NotNil(t, e.CachedAt("aapl", Options{}))

	c.t = c.t.Add(29 * time.Second)
	_, err = e.AnalyzeCompany(ctx, "AAPL", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	_, err = e.AnalyzeCompany(ctx, "AAPL", Options{Months: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "different period is a different key")

	c.t = c.t.Add(2 * time.Second)
	_, err = e.AnalyzeCompany(ctx, "AAPL", Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls, "entry expired after 30s")

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 4.0, testutil.ToFloat64(rec.AnalysesTotal.WithLabelValues(metrics.OutcomeOK)))
}

func TestAnalyzeCompanyErrors(t *testing.T) {
	c := &clock{t: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	t.Run("invalid ticker", func(t *testing.T) {
		src := &fakeSource{}
		rec := metrics.New()
		for _, tk := range []string{"", "   ", "AA PL", "TOOLONGTICKER"} {
			_, err := newEngine(src, c, WithMetrics(rec)).AnalyzeCompany(ctx, tk, Options{})
			assert.ErrorIs(t, err, ErrInvalidTicker, tk)
		}
		assert.Equal(t, 0, src.calls)
		assert.Equal(t, 4.0, testutil.ToFloat64(rec.AnalysesTotal.WithLabelValues(metrics.OutcomeInvalid)))
	})

	t.Run("no data", func(t *testing.T) {
		src := &fakeSource{filings: []models.Filing{
			filing("Alice", models.RoleDirector, 1, models.Other, 500),
		}}
		_, err := newEngine(src, c).AnalyzeCompany(ctx, "AAPL", Options{})
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("empty feed", func(t *testing.T) {
		_, err := newEngine(&fakeSource{}, c).AnalyzeCompany(ctx, "AAPL", Options{})
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("source failure", func(t *testing.T) {
		boom := errors.New("upstream down")
		src := &fakeSource{err: boom}
		e := newEngine(src, c)
		_, err := e.AnalyzeCompany(ctx, "AAPL", Options{})
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, e.CachedAt("AAPL", Options{}), "failures are not cached")
	})
}

func TestAnalyzeCompanyIsRepeatable(t *testing.T) {
	c := &clock{t: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)}
	first, err := newEngine(&fakeSource{filings: fixture()}, c).AnalyzeCompany(context.Background(), "AAPL", Options{})
	require.NoError(t, err)
	second, err := newEngine(&fakeSource{filings: fixture()}, c).AnalyzeCompany(context.Background(), "AAPL", Options{})
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestAnalyzeCompanyRecordsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	c := &clock{t: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)}
	e := newEngine(&fakeSource{filings: fixture()}, c, WithTracerProvider(tp))

	_, err := e.AnalyzeCompany(context.Background(), "AAPL", Options{})
	require.NoError(t, err)
	_, err = e.AnalyzeCompany(context.Background(), "", Options{})
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "analytics.AnalyzeCompany", spans[0].Name())
	assert.Equal(t, "Unset", spans[0].Status().Code.String())
	assert.Equal(t, "Error", spans[1].Status().Code.String())
}
