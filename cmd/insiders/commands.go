package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bighogz/insider-vibes/internal/analytics"
	"github.com/bighogz/insider-vibes/internal/bootstrap"
	"github.com/bighogz/insider-vibes/internal/config"
	"github.com/bighogz/insider-vibes/internal/intent"
	"github.com/bighogz/insider-vibes/internal/logger"
	"github.com/bighogz/insider-vibes/internal/models"
	"github.com/bighogz/insider-vibes/internal/network"
	"github.com/bighogz/insider-vibes/internal/sp500"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

var nowFunc = time.Now

type app struct {
	// cfg and source are preset by tests; otherwise loaded from the
	// environment in PersistentPreRunE.
	cfg    *config.Config
	source analytics.FilingSource
	c      *bootstrap.Container

	archive  bool
	asJSON   bool
	months   int
	limit    int
	logLevel string
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "insiders",
		Short:         "Insider trading analytics from Form 4 filings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.BoolVar(&a.archive, "archive", false, "read and record filings through the SQLite archive (default from VIBES_ARCHIVE)")
	pf.BoolVar(&a.asJSON, "json", false, "print results as JSON")
	pf.IntVar(&a.months, "months", 0, "analysis window in months (default from ANALYSIS_MONTHS)")
	pf.IntVar(&a.limit, "limit", 0, "maximum filings per ticker (default from ANALYSIS_FILING_LIMIT)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newVersionCmd(),
		newAnalyzeCmd(a),
		newCompareCmd(a),
		newGraphCmd(a),
		newChatCmd(a),
		newImportCmd(a),
	)
	return root
}

// run executes root and then releases whatever setup opened, also when
// the command failed.
func run(ctx context.Context, a *app, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if a.c != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := a.c.Close(closeCtx); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close: %w", cerr))
		}
	}
	return err
}

func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}
	if a.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a.cfg = cfg
		level := cfg.LogLevel
		if a.logLevel != "" {
			level = a.logLevel
		}
		if err := logger.Init(level, cfg.Env); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}
	archive := a.cfg.ArchiveEnabled
	if cmd.Flags().Changed("archive") {
		archive = a.archive
	}
	c, err := bootstrap.New(cmd.Context(), a.cfg, bootstrap.Options{Archive: archive, Source: a.source})
	if err != nil {
		return err
	}
	a.c = c
	return nil
}

func (a *app) analysisOptions() analytics.Options {
	opts := a.c.AnalysisOptions()
	if a.months > 0 {
		opts.Months = a.months
	}
	if a.limit > 0 {
		opts.FilingLimit = a.limit
	}
	return opts
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "insiders %s (%s)\n", version, commit)
		},
	}
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "analyze [ticker]",
		Short: "Analyze insider activity for one company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.analysisOptions()
			if !a.asJSON {
				opts.Progress = func(pct int, stage string) {
					fmt.Fprintf(cmd.ErrOrStderr(), "  [%3d%%] %s\n", pct, stage)
				}
			}
			an, err := a.c.Engine.AnalyzeCompany(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if csvPath != "" {
				if err := writeFile(csvPath, func(w io.Writer) error { return writeTransactionsCSV(w, an.Transactions) }); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d transactions to %s\n", len(an.Transactions), csvPath)
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), an)
			}
			printAnalysis(cmd.OutOrStdout(), an)
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "also write normalized transactions to this CSV file")
	return cmd
}

func newCompareCmd(a *app) *cobra.Command {
	var (
		csvPath string
		top     int
		workers int
	)
	cmd := &cobra.Command{
		Use:   "compare [ticker...]",
		Short: "Compare and rank several companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			tickers := args
			if top > 0 {
				syms, err := sp500Symbols(cmd.Context(), a.c, top)
				if err != nil {
					return err
				}
				tickers = append(tickers, syms...)
			}
			if len(tickers) < 2 {
				return errors.New("compare needs at least two tickers (or --sp500 N)")
			}
			opts := a.c.CompareOptions()
			opts.Analysis = a.analysisOptions()
			if workers > 0 {
				opts.Workers = workers
			}
			if !a.asJSON {
				opts.Progress = func(pct int, ticker string) {
					fmt.Fprintf(cmd.ErrOrStderr(), "  [%3d%%] %s\n", pct, ticker)
				}
			}
			report, err := a.c.Comparer.CompareCompanies(cmd.Context(), tickers, opts)
			if err != nil {
				return err
			}
			if csvPath != "" {
				if err := writeFile(csvPath, func(w io.Writer) error { return writeSummaryCSV(w, report.Summary) }); err != nil {
					return err
				}
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}
			printComparison(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "also write the summary table to this CSV file")
	cmd.Flags().IntVar(&top, "sp500", 0, "add the first N S&P 500 constituents")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent analyses (default from COMPARE_WORKERS)")
	return cmd
}

// sp500Symbols prefers the public constituents CSV and falls back to FMP.
func sp500Symbols(ctx context.Context, c *bootstrap.Container, n int) ([]string, error) {
	companies, err := sp500.Load(ctx)
	if err == nil {
		return sp500.Symbols(companies, n), nil
	}
	c.Log.Warnw("sp500 csv unavailable, trying FMP", "error", err)
	syms, ferr := c.FMP.SP500Tickers(ctx)
	if ferr != nil {
		return nil, fmt.Errorf("load S&P 500 constituents: %w", errors.Join(err, ferr))
	}
	if n < len(syms) {
		syms = syms[:n]
	}
	return syms, nil
}

func newGraphCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "graph [ticker]",
		Short: "Print the insider network graph as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, err := a.c.Engine.AnalyzeCompany(cmd.Context(), args[0], a.analysisOptions())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), network.Render(an.Ticker, an.Transactions))
		},
	}
}

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask in plain words; reads lines from stdin without a message",
		RunE: func(cmd *cobra.Command, args []string) error {
			h := &cliHandler{a: a, out: cmd.OutOrStdout()}
			if len(args) > 0 {
				return h.answer(cmd.Context(), strings.Join(args, " "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), intent.HelpText)
			sc := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(cmd.OutOrStdout(), "> ")
				if !sc.Scan() {
					fmt.Fprintln(cmd.OutOrStdout())
					return sc.Err()
				}
				line := strings.TrimSpace(sc.Text())
				if line == "quit" || line == "exit" {
					return nil
				}
				if line == "" {
					continue
				}
				if err := h.answer(cmd.Context(), line); err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), "error:", err)
				}
			}
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import [ticker...]",
		Short: "Load filings into the archive from FMP or a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.c.Archive == nil {
				return errors.New("import needs the archive; pass --archive or set VIBES_ARCHIVE=true")
			}
			out := cmd.OutOrStdout()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				var filings []models.Filing
				if err := json.NewDecoder(f).Decode(&filings); err != nil {
					return fmt.Errorf("decode %s: %w", file, err)
				}
				n, err := a.c.Archive.Save(cmd.Context(), filings)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Imported %d new filings from %s (%d read)\n", n, file, len(filings))
				return nil
			}
			if len(args) == 0 {
				return errors.New("name tickers to fetch or pass --file")
			}
			opts := a.analysisOptions()
			to := nowFunc()
			from := to.AddDate(0, -opts.Months, 0)
			for _, raw := range args {
				ticker, err := analytics.NormalizeTicker(raw)
				if err != nil {
					return err
				}
				filings, err := a.c.FMP.Filings(cmd.Context(), ticker, from, to, opts.FilingLimit)
				if err != nil {
					return fmt.Errorf("fetch %s: %w", ticker, err)
				}
				n, err := a.c.Archive.Save(cmd.Context(), filings)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %d fetched, %d new\n", ticker, len(filings), n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON array of filings to import instead of fetching")
	return cmd
}

// cliHandler answers chat intents with terminal output.
type cliHandler struct {
	a   *app
	out io.Writer
}

func (h *cliHandler) answer(ctx context.Context, text string) error {
	in, err := intent.Parse(text)
	if errors.Is(err, intent.ErrNoMatch) {
		fmt.Fprintln(h.out, "I didn't catch a ticker or command.")
		fmt.Fprintln(h.out, intent.HelpText)
		return nil
	}
	res, err := intent.Dispatch(ctx, in, h)
	if err != nil {
		return err
	}
	switch v := res.(type) {
	case nil:
		return nil
	case string:
		fmt.Fprintln(h.out, v)
		return nil
	default:
		return printJSON(h.out, v)
	}
}

func (h *cliHandler) Analyze(ctx context.Context, ticker string) (interface{}, error) {
	an, err := h.a.c.Engine.AnalyzeCompany(ctx, ticker, h.a.analysisOptions())
	if err != nil {
		return nil, err
	}
	printAnalysis(h.out, an)
	return nil, nil
}

func (h *cliHandler) Compare(ctx context.Context, tickers []string) (interface{}, error) {
	opts := h.a.c.CompareOptions()
	opts.Analysis = h.a.analysisOptions()
	report, err := h.a.c.Comparer.CompareCompanies(ctx, tickers, opts)
	if err != nil {
		return nil, err
	}
	printComparison(h.out, report)
	return nil, nil
}

func (h *cliHandler) Patterns(ctx context.Context, ticker string) (interface{}, error) {
	an, err := h.a.c.Engine.AnalyzeCompany(ctx, ticker, h.a.analysisOptions())
	if err != nil {
		return nil, err
	}
	return an.Patterns, nil
}

func (h *cliHandler) Clusters(ctx context.Context, ticker string) (interface{}, error) {
	an, err := h.a.c.Engine.AnalyzeCompany(ctx, ticker, h.a.analysisOptions())
	if err != nil {
		return nil, err
	}
	return an.Clusters, nil
}

func (h *cliHandler) Network(ctx context.Context, ticker string) (interface{}, error) {
	an, err := h.a.c.Engine.AnalyzeCompany(ctx, ticker, h.a.analysisOptions())
	if err != nil {
		return nil, err
	}
	return network.Render(an.Ticker, an.Transactions), nil
}

func (h *cliHandler) Help(context.Context) (interface{}, error) {
	return intent.HelpText, nil
}

func printAnalysis(w io.Writer, an *models.Analysis) {
	fmt.Fprintf(w, "%s insider activity, %s to %s\n", an.Ticker, an.From.Format("2006-01-02"), an.To.Format("2006-01-02"))
	fmt.Fprintf(w, "  Sentiment:      %d (%s)\n", an.Sentiment.Score, an.Sentiment.Label)
	fmt.Fprintf(w, "  Overall score:  %d, %s\n", an.OverallScore, an.Recommendation)
	fmt.Fprintf(w, "  Purchases:      %d totaling $%s\n", an.Totals.Purchases, humanize.CommafWithDigits(an.Totals.PurchaseValue, 0))
	fmt.Fprintf(w, "  Sales:          %d totaling $%s\n", an.Totals.Sales, humanize.CommafWithDigits(an.Totals.SaleValue, 0))
	fmt.Fprintf(w, "  Insiders:       %d\n", an.Totals.Insiders)
	fmt.Fprintf(w, "  Clusters:       %d\n", an.Clusters.Count)
	if len(an.Alerts) == 0 {
		return
	}
	fmt.Fprintln(w, "Alerts:")
	for _, al := range an.Alerts {
		fmt.Fprintf(w, "  [%s] %s\n", al.Severity, al.Message)
	}
}

func printComparison(w io.Writer, r *models.ComparisonReport) {
	fmt.Fprintf(w, "%-8s %9s %-13s %6s %8s  %s\n", "TICKER", "SENTIMENT", "LABEL", "TXNS", "CLUSTERS", "RECOMMENDATION")
	for _, row := range r.Summary {
		fmt.Fprintf(w, "%-8s %9d %-13s %6d %8d  %s\n",
			row.Ticker, row.SentimentScore, row.SentimentLabel, row.TransactionCount, row.ClusterCount, row.Recommendation)
	}
	if len(r.Rankings.BySentiment) > 0 {
		fmt.Fprintf(w, "Most bullish: %s\n", r.Rankings.BySentiment[0].Ticker)
	}
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  skipped %s: %s\n", f.Ticker, f.Error)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeTransactionsCSV(w io.Writer, txs []models.Transaction) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"ticker", "filing_date", "owner", "role", "net_value"})
	for _, t := range txs {
		cw.Write([]string{
			t.Ticker,
			t.FilingDate.Format("2006-01-02"),
			t.ReportingOwner.Name,
			t.ReportingOwner.Classification,
			strconv.FormatFloat(t.NetValue, 'f', 2, 64),
		})
	}
	cw.Flush()
	return cw.Error()
}

func writeSummaryCSV(w io.Writer, rows []models.SummaryRow) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"ticker", "sentiment_score", "sentiment_label", "transactions", "clusters", "recommendation", "overall_score"})
	for _, r := range rows {
		cw.Write([]string{
			r.Ticker,
			strconv.Itoa(r.SentimentScore),
			r.SentimentLabel,
			strconv.Itoa(r.TransactionCount),
			strconv.Itoa(r.ClusterCount),
			r.Recommendation,
			strconv.Itoa(r.OverallScore),
		})
	}
	cw.Flush()
	return cw.Error()
}
