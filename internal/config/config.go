package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	godotenv.Load(".env")
}

// Config holds everything read from the environment (and .env).
type Config struct {
	FMPAPIKey   string `envconfig:"FMP_API_KEY"`
	FMPFreeTier bool   `envconfig:"FMP_FREE_TIER" default:"false"`
	AdminAPIKey string `envconfig:"ADMIN_API_KEY"`

	Port       string `envconfig:"PORT" default:"8000"`
	TrustProxy bool   `envconfig:"TRUST_PROXY" default:"false"`
	Env        string `envconfig:"APP_ENV" default:"development"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	DataDir        string `envconfig:"VIBES_DATA_DIR" default:"data"`
	ArchiveEnabled bool   `envconfig:"VIBES_ARCHIVE" default:"true"`
	AnomalyWasm    string `envconfig:"VIBES_ANOMALY_WASM"`
	TraceOut       bool   `envconfig:"TRACE_STDOUT" default:"false"`
	FMPRatePerMin  int    `envconfig:"FMP_RATE_PER_MINUTE" default:"300"`

	AnalysisMonths      int           `envconfig:"ANALYSIS_MONTHS" default:"6"`
	FilingLimit         int           `envconfig:"ANALYSIS_FILING_LIMIT" default:"100"`
	CacheTTL            time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	ClusterWindowDays   int           `envconfig:"CLUSTER_WINDOW_DAYS" default:"7"`
	AnomalyStdThreshold float64       `envconfig:"ANOMALY_STD_THRESHOLD" default:"2.0"`

	CompareWorkers       int           `envconfig:"COMPARE_WORKERS" default:"1"`
	CompareTickerTimeout time.Duration `envconfig:"COMPARE_TICKER_TIMEOUT" default:"0s"`
	MaxCompareTickers    int           `envconfig:"MAX_COMPARE_TICKERS" default:"10"`
}

// Load reads the environment into a Config and sanity-checks it.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.FMPAPIKey = strings.TrimSpace(c.FMPAPIKey)
	c.AdminAPIKey = strings.TrimSpace(c.AdminAPIKey)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Validate rejects values the analysis code cannot work with.
func (c *Config) Validate() error {
	if c.AnalysisMonths < 1 || c.AnalysisMonths > 60 {
		return fmt.Errorf("ANALYSIS_MONTHS must be between 1 and 60, got %d", c.AnalysisMonths)
	}
	if c.FilingLimit < 1 {
		return fmt.Errorf("ANALYSIS_FILING_LIMIT must be positive, got %d", c.FilingLimit)
	}
	if c.ClusterWindowDays < 1 {
		return fmt.Errorf("CLUSTER_WINDOW_DAYS must be positive, got %d", c.ClusterWindowDays)
	}
	if c.AnomalyStdThreshold <= 0 {
		return fmt.Errorf("ANOMALY_STD_THRESHOLD must be positive, got %v", c.AnomalyStdThreshold)
	}
	if c.CompareWorkers < 1 {
		c.CompareWorkers = 1
	}
	if c.MaxCompareTickers < 1 {
		c.MaxCompareTickers = 1
	}
	return nil
}

// ArchivePath is the SQLite filing archive under DataDir.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.DataDir, "filings.db")
}

// EffectiveFilingLimit caps the filing count on the FMP free tier.
func (c *Config) EffectiveFilingLimit() int {
	if c.FMPFreeTier && c.FilingLimit > 50 {
		return 50
	}
	return c.FilingLimit
}
