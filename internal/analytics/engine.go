// Package analytics turns a company's insider filings into a scored
// Analysis: clusters, patterns, sentiment, alerts and a recommendation.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bighogz/insider-vibes/internal/cache"
	"github.com/bighogz/insider-vibes/internal/cluster"
	"github.com/bighogz/insider-vibes/internal/logger"
	"github.com/bighogz/insider-vibes/internal/metrics"
	"github.com/bighogz/insider-vibes/internal/models"
	"github.com/bighogz/insider-vibes/internal/normalize"
	"github.com/bighogz/insider-vibes/internal/patterns"
	"github.com/bighogz/insider-vibes/internal/telemetry"
)

var (
	ErrNoData        = errors.New("no insider transactions in period")
	ErrInvalidTicker = errors.New("invalid ticker")
)

const (
	DefaultMonths      = 6
	DefaultFilingLimit = 100
	maxTickerLen       = 10
)

// FilingSource lists raw filings for a ticker whose filing date falls in
// [from, to].
type FilingSource interface {
	Filings(ctx context.Context, ticker string, from, to time.Time, limit int) ([]models.Filing, error)
}

// ProgressFunc receives a percentage (0-100) and a short stage name.
type ProgressFunc func(pct int, stage string)

type Options struct {
	Months      int
	FilingLimit int
	Cluster     cluster.Options
	Progress    ProgressFunc
}

func (o Options) withDefaults(def Options) Options {
	if o.Months <= 0 {
		o.Months = def.Months
	}
	if o.FilingLimit <= 0 {
		o.FilingLimit = def.FilingLimit
	}
	if o.Cluster.WindowDays <= 0 {
		o.Cluster.WindowDays = def.Cluster.WindowDays
	}
	if o.Cluster.MinInsiders <= 0 {
		o.Cluster.MinInsiders = def.Cluster.MinInsiders
	}
	return o
}

// Engine is safe for concurrent use. Its only state across calls is the
// filing cache.
type Engine struct {
	source   FilingSource
	detector *patterns.Detector
	filings  *cache.TTL[[]models.Filing]
	defaults Options
	log      *logger.Logger
	metrics  *metrics.Recorder
	tracer   trace.Tracer
	now      func() time.Time

	patternOpts patterns.Options
	cacheTTL    time.Duration
}

type EngineOption func(*Engine)

func WithLogger(l *logger.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(r *metrics.Recorder) EngineOption {
	return func(e *Engine) { e.metrics = r }
}

func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(e *Engine) { e.tracer = telemetry.TracerFrom(tp) }
}

// WithClock replaces time.Now for period calculation and cache expiry.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithCacheTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.cacheTTL = ttl }
}

func WithPatternOptions(o patterns.Options) EngineOption {
	return func(e *Engine) { e.patternOpts = o }
}

// WithDefaults sets the options used where a call leaves fields zero.
func WithDefaults(o Options) EngineOption {
	return func(e *Engine) { e.defaults = o.withDefaults(e.defaults) }
}

func New(source FilingSource, opts ...EngineOption) *Engine {
	e := &Engine{
		source: source,
		defaults: Options{
			Months:      DefaultMonths,
			FilingLimit: DefaultFilingLimit,
			Cluster:     cluster.Options{WindowDays: cluster.DefaultWindowDays, MinInsiders: cluster.DefaultMinInsiders},
		},
		log:         logger.Get(),
		tracer:      telemetry.Tracer(),
		now:         time.Now,
		patternOpts: patterns.DefaultOptions(),
		cacheTTL:    cache.DefaultTTL,
	}
	for _, o := range opts {
		o(e)
	}
	e.detector = patterns.New(e.patternOpts)
	e.filings = cache.New[[]models.Filing](e.cacheTTL)
	return e
}

// NormalizeTicker upper-cases and trims t, rejecting empty or malformed
// symbols.
func NormalizeTicker(t string) (string, error) {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t == "" || len(t) > maxTickerLen {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, t)
	}
	for _, r := range t {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '.' && r != '-' {
			return "", fmt.Errorf("%w: %q", ErrInvalidTicker, t)
		}
	}
	return t, nil
}

// AnalyzeCompany fetches, normalizes and scores insider activity for
// ticker over the last opts.Months months.
func (e *Engine) AnalyzeCompany(ctx context.Context, ticker string, opts Options) (*models.Analysis, error) {
	started := e.now()
	ctx, span := e.tracer.Start(ctx, "analytics.AnalyzeCompany", trace.WithAttributes(attribute.String("ticker", ticker)))
	defer span.End()

	a, err := e.analyze(ctx, ticker, opts.withDefaults(e.defaults))
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, ErrInvalidTicker):
		outcome = metrics.OutcomeInvalid
	case errors.Is(err, ErrNoData):
		outcome = metrics.OutcomeNoData
	case err != nil:
		outcome = metrics.OutcomeError
	}
	e.metrics.Analysis(outcome, e.now().Sub(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("transactions", len(a.Transactions)),
		attribute.Int("clusters", a.Clusters.Count),
		attribute.Int("overall_score", a.OverallScore),
	)
	return a, nil
}

func (e *Engine) analyze(ctx context.Context, raw string, opts Options) (*models.Analysis, error) {
	progress := opts.Progress
	if progress == nil {
		progress = func(int, string) {}
	}
	ticker, err := NormalizeTicker(raw)
	if err != nil {
		return nil, err
	}
	log := e.log.With("ticker", ticker)

	progress(10, "fetching")
	to := e.now()
	from := to.AddDate(0, -opts.Months, 0)
	filings, err := e.fetch(ctx, ticker, from, to, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch %s filings: %w", ticker, err)
	}

	txs := normalize.Transactions(filings)
	if len(txs) == 0 {
		log.Infow("no transactions after normalization", "filings", len(filings))
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	progress(40, "normalized")

	clusters := cluster.Detect(txs, opts.Cluster)
	progress(60, "clusters")

	pats := e.detector.Detect(txs)
	progress(80, "patterns")

	totals := Totals(txs)
	sentiment := Sentiment(totals)
	score := OverallScore(sentiment.Score, clusters, pats)
	a := &models.Analysis{
		Ticker:         ticker,
		From:           from,
		To:             to,
		Transactions:   txs,
		Clusters:       clusters,
		Patterns:       pats,
		Sentiment:      sentiment,
		Totals:         totals,
		Alerts:         Alerts(clusters, pats),
		Recommendation: Recommendation(score),
		OverallScore:   score,
		GeneratedAt:    e.now(),
	}
	progress(100, "done")
	log.Debugw("analysis complete", "transactions", len(txs), "clusters", clusters.Count, "score", score)
	return a, nil
}

func (e *Engine) fetch(ctx context.Context, ticker string, from, to time.Time, opts Options) ([]models.Filing, error) {
	key := ticker + "|" + strconv.Itoa(opts.Months) + "|" + strconv.Itoa(opts.FilingLimit)
	if f, ok := e.filings.Get(key, e.now()); ok {
		e.metrics.CacheLookup(true)
		return f, nil
	}
	e.metrics.CacheLookup(false)
	f, err := e.source.Filings(ctx, ticker, from, to, opts.FilingLimit)
	if err != nil {
		return nil, err
	}
	e.filings.Put(key, f, e.now())
	return f, nil
}

// CachedAt reports when filings for the given key were fetched, if cached.
func (e *Engine) CachedAt(ticker string, opts Options) *time.Time {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return nil
	}
	opts = opts.withDefaults(e.defaults)
	return e.filings.CachedAt(t + "|" + strconv.Itoa(opts.Months) + "|" + strconv.Itoa(opts.FilingLimit))
}
