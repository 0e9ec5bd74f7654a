// Package bootstrap wires configuration into the analytics components
// shared by the API server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"os"

	"github.com/bighogz/insider-vibes/internal/analytics"
	"github.com/bighogz/insider-vibes/internal/cluster"
	"github.com/bighogz/insider-vibes/internal/compare"
	"github.com/bighogz/insider-vibes/internal/config"
	"github.com/bighogz/insider-vibes/internal/fmp"
	"github.com/bighogz/insider-vibes/internal/logger"
	"github.com/bighogz/insider-vibes/internal/metrics"
	"github.com/bighogz/insider-vibes/internal/patterns"
	"github.com/bighogz/insider-vibes/internal/render"
	"github.com/bighogz/insider-vibes/internal/store"
	"github.com/bighogz/insider-vibes/internal/telemetry"
	"github.com/bighogz/insider-vibes/internal/wasmengine"
)

// Container holds the long-lived components, in initialization order.
type Container struct {
	Config  *config.Config
	Log     *logger.Logger
	Metrics *metrics.Recorder

	FMP     *fmp.Client
	Archive *store.Archive
	Wasm    *wasmengine.Engine
	Source  analytics.FilingSource

	Engine   *analytics.Engine
	Comparer *compare.Comparer
	Renderer render.Renderer

	shutdownTracing telemetry.Shutdown
}

type Options struct {
	// Archive opens the SQLite archive: fetches are recorded to it, and
	// it serves reads on its own when no FMP key is configured.
	Archive bool
	// Source overrides the filing source, mainly for tests.
	Source analytics.FilingSource
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	c := &Container{
		Config:   cfg,
		Log:      logger.Get(),
		Metrics:  metrics.New(),
		Renderer: render.New(),
	}

	shutdown, err := telemetry.Setup(cfg.TraceOut, os.Stderr)
	if err != nil {
		return nil, err
	}
	c.shutdownTracing = shutdown

	c.FMP = fmp.New(cfg.FMPAPIKey, cfg.FMPRatePerMin)
	if opts.Archive {
		a, err := store.Open(ctx, cfg.ArchivePath())
		if err != nil {
			c.Close(ctx)
			return nil, err
		}
		c.Archive = a
	}
	switch {
	case opts.Source != nil:
		c.Source = opts.Source
	case c.Archive != nil && cfg.FMPAPIKey != "":
		c.Source = &store.Recorder{Upstream: c.FMP, Archive: c.Archive, Log: c.Log}
	case c.Archive != nil:
		c.Log.Infow("FMP_API_KEY not set, serving from archive only", "path", cfg.ArchivePath())
		c.Source = c.Archive
	default:
		c.Source = c.FMP
	}

	po := patterns.DefaultOptions()
	po.AnomalyStdThreshold = cfg.AnomalyStdThreshold
	if path := wasmengine.Locate(cfg.AnomalyWasm); path != "" {
		eng, err := wasmengine.Load(ctx, path)
		if err != nil {
			c.Log.Warnw("wasm statistics unavailable, using Go", "path", path, "error", err)
		} else {
			c.Wasm = eng
			po.Stats = eng.Stats
			c.Log.Infow("wasm statistics loaded", "path", path)
		}
	}

	c.Engine = analytics.New(c.Source,
		analytics.WithLogger(c.Log),
		analytics.WithMetrics(c.Metrics),
		analytics.WithCacheTTL(cfg.CacheTTL),
		analytics.WithPatternOptions(po),
		analytics.WithDefaults(c.AnalysisOptions()),
	)
	c.Comparer = compare.New(c.Engine, compare.WithLogger(c.Log), compare.WithMetrics(c.Metrics))
	return c, nil
}

// AnalysisOptions are the configured per-call defaults.
func (c *Container) AnalysisOptions() analytics.Options {
	return analytics.Options{
		Months:      c.Config.AnalysisMonths,
		FilingLimit: c.Config.EffectiveFilingLimit(),
		Cluster:     cluster.Options{WindowDays: c.Config.ClusterWindowDays},
	}
}

func (c *Container) CompareOptions() compare.Options {
	return compare.Options{
		Analysis:      c.AnalysisOptions(),
		Workers:       c.Config.CompareWorkers,
		TickerTimeout: c.Config.CompareTickerTimeout,
	}
}

// Close releases components in reverse order.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.Wasm != nil {
		errs = append(errs, c.Wasm.Close(ctx))
	}
	if c.Archive != nil {
		errs = append(errs, c.Archive.Close())
	}
	if c.shutdownTracing != nil {
		errs = append(errs, c.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}
