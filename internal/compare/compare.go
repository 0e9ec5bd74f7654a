// Package compare analyzes several tickers and ranks them side by side.
package compare

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/bighogz/insider-vibes/internal/analytics"
	"github.com/bighogz/insider-vibes/internal/logger"
	"github.com/bighogz/insider-vibes/internal/metrics"
	"github.com/bighogz/insider-vibes/internal/models"
	"github.com/bighogz/insider-vibes/internal/telemetry"
)

var ErrNoTickers = errors.New("no tickers to compare")

// Analyzer is satisfied by *analytics.Engine.
type Analyzer interface {
	AnalyzeCompany(ctx context.Context, ticker string, opts analytics.Options) (*models.Analysis, error)
}

type Options struct {
	Analysis analytics.Options
	// Workers > 1 analyzes tickers concurrently. The default is one at a
	// time, in input order.
	Workers int
	// TickerTimeout bounds each ticker's analysis when positive.
	TickerTimeout time.Duration
	// Progress receives completion percentage after each ticker.
	Progress func(pct int, ticker string)
}

type Comparer struct {
	analyzer Analyzer
	log      *logger.Logger
	metrics  *metrics.Recorder
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
}

type Option func(*Comparer)

func WithLogger(l *logger.Logger) Option {
	return func(c *Comparer) { c.log = l }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Comparer) { c.metrics = r }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Comparer) { c.tracer = telemetry.TracerFrom(tp) }
}

func WithClock(now func() time.Time) Option {
	return func(c *Comparer) { c.now = now }
}

func New(a Analyzer, opts ...Option) *Comparer {
	c := &Comparer{
		analyzer: a,
		log:      logger.Get(),
		tracer:   telemetry.Tracer(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type result struct {
	analysis *models.Analysis
	err      error
}

// CompareCompanies analyzes each distinct ticker and builds a report from
// the ones that succeed. Failed tickers are listed in Failed. If none
// succeed the error wraps analytics.ErrNoData.
func (c *Comparer) CompareCompanies(ctx context.Context, tickers []string, opts Options) (*models.ComparisonReport, error) {
	tickers = Dedupe(tickers)
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}
	ctx, span := c.tracer.Start(ctx, "compare.CompareCompanies",
		trace.WithAttributes(attribute.StringSlice("tickers", tickers)))
	defer span.End()
	c.metrics.Compare(len(tickers))

	results := make([]result, len(tickers))
	var mu sync.Mutex
	done := 0
	finish := func(ticker string) {
		if opts.Progress == nil {
			return
		}
		mu.Lock()
		done++
		pct := done * 100 / len(tickers)
		mu.Unlock()
		opts.Progress(pct, ticker)
	}

	if opts.Workers <= 1 {
		for i, t := range tickers {
			results[i] = c.analyzeOne(ctx, t, opts)
			finish(t)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for i, t := range tickers {
			g.Go(func() error {
				results[i] = c.analyzeOne(ctx, t, opts)
				finish(t)
				return nil
			})
		}
		g.Wait()
	}

	report := &models.ComparisonReport{
		ID:          c.newID(),
		Tickers:     tickers,
		Summary:     make([]models.SummaryRow, 0, len(tickers)),
		GeneratedAt: c.now(),
	}
	for i, r := range results {
		if r.err != nil {
			c.log.Warnw("comparison ticker failed", "ticker", tickers[i], "error", r.err)
			c.metrics.CompareFailure()
			report.Failed = append(report.Failed, models.TickerFailure{Ticker: tickers[i], Error: r.err.Error()})
			continue
		}
		report.Summary = append(report.Summary, summarize(r.analysis))
	}
	if len(report.Summary) == 0 {
		err := fmt.Errorf("compare %s: %w", strings.Join(tickers, ","), analytics.ErrNoData)
		span.RecordError(err)
		span.SetStatus(codes.Error, "no successful tickers")
		return nil, err
	}
	report.Rankings = Rank(report.Summary)
	report.Visualizations = visualize(report.Summary)
	span.SetAttributes(attribute.Int("failed", len(report.Failed)))
	return report, nil
}

func (c *Comparer) analyzeOne(ctx context.Context, ticker string, opts Options) result {
	ctx, span := c.tracer.Start(ctx, "compare.ticker", trace.WithAttributes(attribute.String("ticker", ticker)))
	defer span.End()
	if opts.TickerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TickerTimeout)
		defer cancel()
	}
	a, err := c.analyzer.AnalyzeCompany(ctx, ticker, opts.Analysis)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return result{err: err}
	}
	return result{analysis: a}
}

// Dedupe upper-cases and trims tickers, dropping blanks and repeats while
// keeping first-seen order.
func Dedupe(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func summarize(a *models.Analysis) models.SummaryRow {
	return models.SummaryRow{
		Ticker:           a.Ticker,
		SentimentScore:   a.Sentiment.Score,
		SentimentLabel:   a.Sentiment.Label,
		TransactionCount: len(a.Transactions),
		ClusterCount:     a.Clusters.Count,
		Recommendation:   a.Recommendation,
		OverallScore:     a.OverallScore,
	}
}

// Rank orders rows by sentiment, activity and cluster count, each
// descending. Ties keep summary order.
func Rank(rows []models.SummaryRow) models.Rankings {
	return models.Rankings{
		BySentiment: rankBy(rows, func(r models.SummaryRow) float64 { return float64(r.SentimentScore) }),
		ByActivity:  rankBy(rows, func(r models.SummaryRow) float64 { return float64(r.TransactionCount) }),
		ByClusters:  rankBy(rows, func(r models.SummaryRow) float64 { return float64(r.ClusterCount) }),
	}
}

func rankBy(rows []models.SummaryRow, value func(models.SummaryRow) float64) []models.RankEntry {
	out := make([]models.RankEntry, len(rows))
	for i, r := range rows {
		out[i] = models.RankEntry{Ticker: r.Ticker, Value: value(r)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func visualize(rows []models.SummaryRow) models.Visualizations {
	v := models.Visualizations{
		Labels:    make([]string, len(rows)),
		Sentiment: make([]int, len(rows)),
		Activity:  make([]int, len(rows)),
		Clusters:  make([]int, len(rows)),
	}
	for i, r := range rows {
		v.Labels[i] = r.Ticker
		v.Sentiment[i] = r.SentimentScore
		v.Activity[i] = r.TransactionCount
		v.Clusters[i] = r.ClusterCount
	}
	return v
}
