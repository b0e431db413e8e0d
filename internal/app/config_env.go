package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.DB == "" {
		cfg.DB = os.Getenv("CASETRACE_DB")
	}
	if cfg.RawDir == "" {
		cfg.RawDir = os.Getenv("RAW_DIR")
	}
	if cfg.SourceBaseURL == "" {
		cfg.SourceBaseURL = os.Getenv("SOURCE_BASE_URL")
	}
	if cfg.SourceListingURL == "" {
		cfg.SourceListingURL = os.Getenv("SOURCE_LISTING_URL")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = os.Getenv("USER_AGENT")
	}

	if cfg.MaxConcurrency == 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("MAX_CONCURRENCY"))); err == nil && n > 0 {
			cfg.MaxConcurrency = n
		}
	}
	if cfg.MaxRetries == 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("MAX_RETRIES"))); err == nil && n > 0 {
			cfg.MaxRetries = n
		}
	}

	if cfg.MinDelay == 0 {
		if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv("MIN_DELAY"))); err == nil && d > 0 {
			cfg.MinDelay = d
		}
	}
	if cfg.FetchTimeout == 0 {
		if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv("FETCH_TIMEOUT"))); err == nil && d > 0 {
			cfg.FetchTimeout = d
		}
	}

	if !cfg.Verbose {
		switch strings.ToLower(strings.TrimSpace(os.Getenv("VERBOSE"))) {
		case "1", "true", "yes", "on":
			cfg.Verbose = true
		}
	}
}
