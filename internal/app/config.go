package app

import "time"

// Config holds runtime configuration for the crawler. Values are layered:
// flags override env, env overrides the optional config file, and whatever is
// still unset falls back to Defaults.
type Config struct {
	// DB is the storage DSN: a SQLite file path, or a postgres:// URL.
	DB string
	// RawDir is where fetched judgment HTML is archived.
	RawDir string

	// Source
	SourceBaseURL    string
	SourceListingURL string

	// Crawl politeness
	UserAgent      string
	MaxConcurrency int
	MinDelay       time.Duration
	MaxRetries     int
	FetchTimeout   time.Duration

	Verbose bool
}

// ApplyDefaults fills any still-unset field with the stock eLitigation
// defaults.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.DB == "" {
		cfg.DB = "data/casetrace.db"
	}
	if cfg.RawDir == "" {
		cfg.RawDir = "data/raw"
	}
	if cfg.SourceBaseURL == "" {
		cfg.SourceBaseURL = "https://www.elitigation.sg"
	}
	if cfg.SourceListingURL == "" {
		cfg.SourceListingURL = "https://www.elitigation.sg/gdviewer/SUPCT"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "casetrace/1.0 (+https://github.com/casetrace/casetrace) respectful-crawl"
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 5
	}
	if cfg.MinDelay == 0 {
		cfg.MinDelay = 350 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
}
