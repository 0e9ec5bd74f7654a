// Package metrics exposes Prometheus collectors for the analytics pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "insider_vibes"

// Outcome labels for AnalysesTotal.
const (
	OutcomeOK      = "ok"
	OutcomeNoData  = "no_data"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Recorder owns its registry so tests and multiple engines don't collide
// on the global default. A nil *Recorder records nothing.
type Recorder struct {
	reg *prometheus.Registry

	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	CacheLookups     *prometheus.CounterVec
	CompareFailures  prometheus.Counter
	CompareTickers   prometheus.Histogram
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "analytics",
				Name:      "analyses_total",
				Help:      "Company analyses by outcome",
			},
			[]string{"outcome"},
		),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of AnalyzeCompany",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "analytics",
				Name:      "cache_lookups_total",
				Help:      "Filing cache lookups by result",
			},
			[]string{"result"}, // hit|miss
		),
		CompareFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compare",
			Name:      "ticker_failures_total",
			Help:      "Tickers dropped from a comparison because their analysis failed",
		}),
		CompareTickers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compare",
			Name:      "tickers_per_report",
			Help:      "Tickers requested per comparison",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		}),
	}
	r.reg.MustRegister(
		r.AnalysesTotal,
		r.AnalysisDuration,
		r.CacheLookups,
		r.CompareFailures,
		r.CompareTickers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Analysis(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.AnalysesTotal.WithLabelValues(outcome).Inc()
	r.AnalysisDuration.Observe(d.Seconds())
}

func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	r.CacheLookups.WithLabelValues("miss").Inc()
}

func (r *Recorder) CompareFailure() {
	if r == nil {
		return
	}
	r.CompareFailures.Inc()
}

func (r *Recorder) Compare(tickers int) {
	if r == nil {
		return
	}
	r.CompareTickers.Observe(float64(tickers))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
