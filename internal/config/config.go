package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradesys tools.
type Config struct {
	Storage  Storage      `yaml:"storage"`
	Services Services     `yaml:"services"`
	Alpaca   Alpaca       `yaml:"alpaca"`
	Logging  Logging      `yaml:"logging"`
	Ingest   IngestConfig `yaml:"ingest"`
	Run      RunConfig    `yaml:"run"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Services holds addresses and transport settings for the remote data
// services. Empty addresses mean the local Parquet/SQLite stores are used
// instead.
type Services struct {
	DataFrameAddr  string `yaml:"dataframe_addr"`
	SecuritiesAddr string `yaml:"securities_addr"`
	SystemsAddr    string `yaml:"systems_addr"`
	TLS            TLS    `yaml:"tls"`
	RetryAttempts  int    `yaml:"retry_attempts"`
	RetryBaseMS    int    `yaml:"retry_base_ms"`
}

// TLS names the client certificate triple for mutual TLS. All three must be
// set for TLS to be enabled; otherwise connections are plaintext.
type TLS struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// Enabled reports whether the certificate triple is fully specified.
func (t TLS) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != "" && t.CAFile != ""
}

// RetryBaseWait returns the initial retry backoff as a duration.
func (s Services) RetryBaseWait() time.Duration {
	return time.Duration(s.RetryBaseMS) * time.Millisecond
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// IngestConfig holds parameters for the daily price ingest job.
type IngestConfig struct {
	StartDate       string `yaml:"start_date"`
	BatchSize       int    `yaml:"batch_size"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// RunConfig holds defaults for strategy execution runs.
type RunConfig struct {
	SystemsDir string `yaml:"systems_dir"`
	Workers    int    `yaml:"workers"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies defaults, and then applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Services.RetryAttempts == 0 {
		cfg.Services.RetryAttempts = 3
	}
	if cfg.Services.RetryBaseMS == 0 {
		cfg.Services.RetryBaseMS = 500
	}
	if cfg.Run.Workers == 0 {
		cfg.Run.Workers = 4
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 500
	}
	if cfg.Ingest.RateLimitPerMin == 0 {
		cfg.Ingest.RateLimitPerMin = 200
	}
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

	if v := os.Getenv("DATAFRAME_SERVICE_ADDR"); v != "" {
		cfg.Services.DataFrameAddr = v
	}
	if v := os.Getenv("SECURITIES_SERVICE_ADDR"); v != "" {
		cfg.Services.SecuritiesAddr = v
	}
	if v := os.Getenv("SYSTEMS_SERVICE_ADDR"); v != "" {
		cfg.Services.SystemsAddr = v
	}

	if v := os.Getenv("SYSTEMS_DIR"); v != "" {
		cfg.Run.SystemsDir = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
