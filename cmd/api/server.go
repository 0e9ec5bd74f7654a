package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bighogz/insider-vibes/internal/analytics"
	"github.com/bighogz/insider-vibes/internal/bootstrap"
	"github.com/bighogz/insider-vibes/internal/compare"
	"github.com/bighogz/insider-vibes/internal/intent"
	"github.com/bighogz/insider-vibes/internal/logger"
	"github.com/bighogz/insider-vibes/internal/metrics"
	"github.com/bighogz/insider-vibes/internal/models"
	"github.com/bighogz/insider-vibes/internal/network"
	"github.com/bighogz/insider-vibes/internal/render"
)

const staticDir = "static"

type analyzer interface {
	AnalyzeCompany(ctx context.Context, ticker string, opts analytics.Options) (*models.Analysis, error)
}

type comparer interface {
	CompareCompanies(ctx context.Context, tickers []string, opts compare.Options) (*models.ComparisonReport, error)
}

type server struct {
	engine     analyzer
	comparer   comparer
	renderer   render.Renderer
	metrics    *metrics.Recorder
	log        *logger.Logger
	analysis   analytics.Options
	compare    compare.Options
	adminKey   string
	maxTickers int
	trustProxy bool
	health     func(context.Context) map[string]interface{}
	limiter    *rateLimiter
}

func newServer(c *bootstrap.Container) *server {
	return &server{
		engine:     c.Engine,
		comparer:   c.Comparer,
		renderer:   c.Renderer,
		metrics:    c.Metrics,
		log:        c.Log,
		analysis:   c.AnalysisOptions(),
		compare:    c.CompareOptions(),
		adminKey:   c.Config.AdminAPIKey,
		maxTickers: c.Config.MaxCompareTickers,
		trustProxy: c.Config.TrustProxy,
		limiter:    newRateLimiter(5 * time.Second),
		health: func(ctx context.Context) map[string]interface{} {
			h := map[string]interface{}{
				"status":  "ok",
				"wasm":    c.Wasm != nil,
				"archive": c.Archive != nil,
				"feed":    c.Config.FMPAPIKey != "",
			}
			if c.Archive != nil {
				if err := c.Archive.Health(ctx); err != nil {
					h["status"] = "degraded"
					h["archive_error"] = err.Error()
				}
			}
			return h
		},
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/", s.serveIndex)
	r.Get("/static/*", s.serveStatic)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Get("/health", s.handleHealth)
		r.Route("/insiders/{ticker}", func(r chi.Router) {
			r.Get("/analysis", s.handleAnalysis)
			r.Get("/patterns", s.handlePatterns)
			r.Get("/network", s.handleNetwork)
			r.Get("/report", s.handleReport)
		})
		r.With(adminOrRateLimit(s.adminKey, s.limiter)).Get("/compare", s.handleCompare)
		r.Post("/chat", s.handleChat)
	})
	return r
}

func (s *server) serveIndex(w http.ResponseWriter, r *http.Request) {
	for _, p := range []string{staticDir + "/insiders.html", staticDir + "/index.html"} {
		if _, err := os.Stat(p); err == nil {
			http.ServeFile(w, r, p)
			return
		}
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Frontend not found. Try /api/insiders/AAPL/analysis"})
}

func (s *server) serveStatic(w http.ResponseWriter, r *http.Request) {
	sub := chi.URLParam(r, "*")
	if sub == "" || strings.Contains(sub, "..") {
		http.NotFound(w, r)
		return
	}
	path := safeStaticPath(staticDir, sub)
	if path == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.health(r.Context()))
}

// analysisOptions applies ?months= and ?limit= over the configured defaults.
func (s *server) analysisOptions(r *http.Request) analytics.Options {
	opts := s.analysis
	q := r.URL.Query()
	opts.Months = clamp(parseInt(q.Get("months"), opts.Months), 1, 60)
	opts.FilingLimit = clamp(parseInt(q.Get("limit"), opts.FilingLimit), 1, 500)
	return opts
}

func (s *server) analyze(r *http.Request) (*models.Analysis, error) {
	return s.engine.AnalyzeCompany(r.Context(), chi.URLParam(r, "ticker"), s.analysisOptions(r))
}

func (s *server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.analyze(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, a)
}

func (s *server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	a, err := s.analyze(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"ticker":   a.Ticker,
		"patterns": a.Patterns,
		"clusters": a.Clusters,
	})
}

func (s *server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	a, err := s.analyze(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, network.Render(a.Ticker, a.Transactions))
}

// handleReport returns the page fragments as HTML, or as JSON with
// ?format=json. Failures render the error panel so the page can retry.
func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	a, err := s.analyze(r)
	if err != nil {
		s.log.Warnw("report failed", "ticker", chi.URLParam(r, "ticker"), "error", err)
		panel, perr := s.renderer.ErrorPanel(err, r.URL.RequestURI())
		if perr != nil {
			s.fail(w, r, perr)
			return
		}
		w.Header().Set("X-Error-Status", strconv.Itoa(statusFor(err)))
		htmlResponse(w, http.StatusOK, panel)
		return
	}
	page, err := s.renderer.Page(a, network.Render(a.Ticker, a.Transactions))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		jsonResponse(w, http.StatusOK, page)
		return
	}
	var b strings.Builder
	for _, id := range []string{
		render.IDScoreCard, render.IDAlerts, render.IDPatterns, render.IDClusters,
		render.IDRoleChart, render.IDTimelineChart, render.IDNetwork,
	} {
		b.WriteString(string(page.Fragments[id]))
		b.WriteString("\n")
	}
	htmlResponse(w, http.StatusOK, template.HTML(b.String()))
}

func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var tickers []string
	for _, t := range strings.Split(r.URL.Query().Get("tickers"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	tickers = compare.Dedupe(tickers)
	if len(tickers) < 2 {
		writeError(w, http.StatusBadRequest, "tickers must list at least two symbols, e.g. ?tickers=AAPL,MSFT")
		return
	}
	if len(tickers) > s.maxTickers {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d tickers per comparison", s.maxTickers))
		return
	}
	opts := s.compare
	opts.Analysis = s.analysisOptions(r)
	report, err := s.comparer.CompareCompanies(r.Context(), tickers, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "html" {
		table, err := s.renderer.ComparisonTable(report)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		htmlResponse(w, http.StatusOK, table)
		return
	}
	jsonResponse(w, http.StatusOK, report)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Intent *intent.Intent `json:"intent,omitempty"`
	Reply  string         `json:"reply,omitempty"`
	Result interface{}    `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "body must be JSON like {\"message\": \"analyze AAPL\"}")
		return
	}
	in, err := intent.Parse(req.Message)
	if errors.Is(err, intent.ErrNoMatch) {
		jsonResponse(w, http.StatusOK, chatResponse{Reply: "I didn't catch a ticker or command.\n" + intent.HelpText})
		return
	}
	res, err := intent.Dispatch(r.Context(), in, &chatHandler{s: s, r: r})
	if err != nil {
		jsonResponse(w, statusFor(err), chatResponse{Intent: &in, Error: err.Error()})
		return
	}
	resp := chatResponse{Intent: &in, Result: res}
	if text, ok := res.(string); ok {
		resp.Result, resp.Reply = nil, text
	}
	jsonResponse(w, http.StatusOK, resp)
}

// chatHandler answers chat intents with the same payloads as the REST
// routes.
type chatHandler struct {
	s *server
	r *http.Request
}

func (h *chatHandler) Analyze(ctx context.Context, ticker string) (interface{}, error) {
	return h.s.engine.AnalyzeCompany(ctx, ticker, h.s.analysis)
}

func (h *chatHandler) Compare(ctx context.Context, tickers []string) (interface{}, error) {
	if err := admit(h.s.adminKey, h.s.limiter, h.r); err != nil {
		return nil, err
	}
	if len(tickers) > h.s.maxTickers {
		tickers = tickers[:h.s.maxTickers]
	}
	return h.s.comparer.CompareCompanies(ctx, tickers, h.s.compare)
}

func (h *chatHandler) Patterns(ctx context.Context, ticker string) (interface{}, error) {
	a, err := h.s.engine.AnalyzeCompany(ctx, ticker, h.s.analysis)
	if err != nil {
		return nil, err
	}
	return a.Patterns, nil
}

func (h *chatHandler) Clusters(ctx context.Context, ticker string) (interface{}, error) {
	a, err := h.s.engine.AnalyzeCompany(ctx, ticker, h.s.analysis)
	if err != nil {
		return nil, err
	}
	return a.Clusters, nil
}

func (h *chatHandler) Network(ctx context.Context, ticker string) (interface{}, error) {
	a, err := h.s.engine.AnalyzeCompany(ctx, ticker, h.s.analysis)
	if err != nil {
		return nil, err
	}
	return network.Render(a.Ticker, a.Transactions), nil
}

func (h *chatHandler) Help(context.Context) (interface{}, error) {
	return intent.HelpText, nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, analytics.ErrInvalidTicker), errors.Is(err, compare.ErrNoTickers), errors.Is(err, intent.ErrNoMatch):
		return http.StatusBadRequest
	case errors.Is(err, analytics.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errInvalidAdmin):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Errorw("request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, map[string]string{"error": msg})
}

func jsonResponse(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func htmlResponse(w http.ResponseWriter, status int, body template.HTML) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
