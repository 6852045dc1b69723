package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for an algotemplate run.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Feed     FeedConfig     `yaml:"feed"`
	Broker   BrokerConfig   `yaml:"broker"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Run      RunConfig      `yaml:"run"`
}

// Storage holds paths for bar data used by replay and simulation.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Feed modes.
const (
	ModeSimulated = "simulated"
	ModeReplay    = "replay"
	ModeLive      = "live"
)

// Replay/history sources.
const (
	SourceCSV     = "csv"
	SourceParquet = "parquet"
	SourceSQLite  = "sqlite"
)

// Live providers.
const (
	ProviderHTTP   = "http"
	ProviderGRPC   = "grpc"
	ProviderAlpaca = "alpaca"
)

// FeedConfig selects and parameterises the data feed.
type FeedConfig struct {
	Mode   string `yaml:"mode"`
	Symbol string `yaml:"symbol"`
	Market string `yaml:"market"`

	// Source of historical bars for replay and for GBM calibration.
	Source    string `yaml:"source"`
	CSVPath   string `yaml:"csv_path"`
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`

	// Simulation.
	HorizonDate string `yaml:"horizon_date"` // defaults to today
	Scenarios   int    `yaml:"scenarios"`
	Scenario    int    `yaml:"scenario"` // index of the path to trade
	Seed        uint64 `yaml:"seed"`

	// Live polling.
	Provider     string        `yaml:"provider"`
	Endpoint     string        `yaml:"endpoint"`
	Method       string        `yaml:"method"` // gRPC full method name
	PollInterval time.Duration `yaml:"poll_interval"`
	Backoff      time.Duration `yaml:"backoff"`
	MaxAttempts  int           `yaml:"max_attempts"` // 0 retries forever
	Timeout      time.Duration `yaml:"timeout"`
}

// BrokerConfig configures the simulated ledger and pre-trade checks.
type BrokerConfig struct {
	InitialCash    float64 `yaml:"initial_cash"`
	MaxPositionPct float64 `yaml:"max_position_pct"` // 0 disables the check
	AllowShort     bool    `yaml:"allow_short"`
}

// AnalyzerConfig tunes the performance statistics.
type AnalyzerConfig struct {
	RiskFreeRate   *float64 `yaml:"risk_free_rate"` // nil uses DefaultRiskFreeRate; 0 is honoured
	PeriodsPerYear int      `yaml:"periods_per_year"`
}

// RiskFree returns the configured annual risk-free rate, or the default.
func (a AnalyzerConfig) RiskFree() float64 {
	if a.RiskFreeRate == nil {
		return DefaultRiskFreeRate
	}
	return *a.RiskFreeRate
}

// ---------------------------------------------------------------------------
// Defaults and validation
// ---------------------------------------------------------------------------

// Default values applied by Load when a field is left empty.
const (
	DefaultInitialCash    = 10000.0
	DefaultBackoff        = 5 * time.Second
	DefaultPollInterval   = time.Second
	DefaultRiskFreeRate   = 0.01
	DefaultPeriodsPerYear = 252
	DefaultSubmitTimeout  = 3 * time.Second
)

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Feed.Mode == "" {
		c.Feed.Mode = ModeReplay
	}
	if c.Feed.Market == "" {
		c.Feed.Market = "us"
	}
	if c.Feed.Source == "" {
		c.Feed.Source = SourceCSV
	}
	if c.Feed.Scenarios <= 0 {
		c.Feed.Scenarios = 1
	}
	if c.Feed.PollInterval <= 0 {
		c.Feed.PollInterval = DefaultPollInterval
	}
	if c.Feed.Backoff <= 0 {
		c.Feed.Backoff = DefaultBackoff
	}
	if c.Feed.Provider == "" {
		c.Feed.Provider = ProviderHTTP
	}
	if c.Broker.InitialCash <= 0 {
		c.Broker.InitialCash = DefaultInitialCash
	}
	if c.Analyzer.RiskFreeRate == nil {
		rf := DefaultRiskFreeRate
		c.Analyzer.RiskFreeRate = &rf
	}
	if c.Analyzer.PeriodsPerYear <= 0 {
		c.Analyzer.PeriodsPerYear = DefaultPeriodsPerYear
	}
	c.Run.ApplyDefaults()
}

// Validate reports configuration errors that must abort a run before any
// bar is processed.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Run.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Feed.Mode {
	case ModeSimulated, ModeReplay:
		switch c.Feed.Source {
		case SourceCSV:
			if c.Feed.CSVPath == "" {
				errs = append(errs, errors.New("feed.csv_path is required for csv source"))
			}
		case SourceParquet:
			if c.Storage.DataDir == "" {
				errs = append(errs, errors.New("storage.data_dir is required for parquet source"))
			}
		case SourceSQLite:
			if c.Storage.SQLitePath == "" {
				errs = append(errs, errors.New("storage.sqlite_path is required for sqlite source"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported feed.source %q", c.Feed.Source))
		}
		if c.Feed.Source != SourceCSV && c.Feed.Symbol == "" {
			errs = append(errs, errors.New("feed.symbol is required for store sources"))
		}
	case ModeLive:
		switch c.Feed.Provider {
		case ProviderHTTP, ProviderGRPC:
			if c.Feed.Endpoint == "" {
				errs = append(errs, fmt.Errorf("feed.endpoint is required for %s provider", c.Feed.Provider))
			}
		case ProviderAlpaca:
			if c.Feed.Symbol == "" {
				errs = append(errs, errors.New("feed.symbol is required for alpaca provider"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported feed.provider %q", c.Feed.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported feed.mode %q", c.Feed.Mode))
	}

	if c.Feed.Mode == ModeSimulated && (c.Feed.Scenario < 0 || c.Feed.Scenario >= c.Feed.Scenarios) {
		errs = append(errs, fmt.Errorf("feed.scenario %d out of range [0,%d)", c.Feed.Scenario, c.Feed.Scenarios))
	}
	if c.Broker.MaxPositionPct < 0 || c.Broker.MaxPositionPct > 1 {
		errs = append(errs, fmt.Errorf("broker.max_position_pct %v out of range [0,1]", c.Broker.MaxPositionPct))
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Read parses the YAML configuration file at path and applies environment
// overrides and defaults without validating the run section. Tools that only
// touch storage or credentials use it.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}

// Load reads the configuration at path like Read and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars take precedence.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	cfg.Run.applyEnvOverrides()
}

// ParseDate parses a YYYY-MM-DD date. An empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// parseBool accepts the "true"/"false" strings used by hyperparameter files
// as well as YAML booleans that were decoded into strings.
func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}
