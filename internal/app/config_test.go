package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults_FillsUnset(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.DB != "data/casetrace.db" {
		t.Fatalf("DB=%q", cfg.DB)
	}
	if cfg.RawDir != "data/raw" {
		t.Fatalf("RawDir=%q", cfg.RawDir)
	}
	if cfg.SourceBaseURL != "https://www.elitigation.sg" {
		t.Fatalf("SourceBaseURL=%q", cfg.SourceBaseURL)
	}
	if cfg.SourceListingURL != "https://www.elitigation.sg/gdviewer/SUPCT" {
		t.Fatalf("SourceListingURL=%q", cfg.SourceListingURL)
	}
	if cfg.MaxConcurrency != 5 {
		t.Fatalf("MaxConcurrency=%d", cfg.MaxConcurrency)
	}
	if cfg.MinDelay != 350*time.Millisecond {
		t.Fatalf("MinDelay=%v", cfg.MinDelay)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("MaxRetries=%d", cfg.MaxRetries)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Fatalf("FetchTimeout=%v", cfg.FetchTimeout)
	}
	if cfg.UserAgent == "" {
		t.Fatalf("UserAgent must have a default")
	}
}

func TestApplyDefaults_PreservesExplicit(t *testing.T) {
	cfg := Config{DB: "postgres://u@localhost/cases", MaxConcurrency: 2}
	ApplyDefaults(&cfg)

	if cfg.DB != "postgres://u@localhost/cases" {
		t.Fatalf("DB overwritten: %q", cfg.DB)
	}
	if cfg.MaxConcurrency != 2 {
		t.Fatalf("MaxConcurrency overwritten: %d", cfg.MaxConcurrency)
	}
}

func TestApplyEnvToConfig_ReadsEnv(t *testing.T) {
	t.Setenv("CASETRACE_DB", "/tmp/cases.db")
	t.Setenv("RAW_DIR", "/tmp/raw")
	t.Setenv("SOURCE_BASE_URL", "http://127.0.0.1:8089")
	t.Setenv("SOURCE_LISTING_URL", "http://127.0.0.1:8089/gdviewer/SUPCT")
	t.Setenv("USER_AGENT", "test-agent/1")
	t.Setenv("MAX_CONCURRENCY", "3")
	t.Setenv("MAX_RETRIES", "2")
	t.Setenv("MIN_DELAY", "75ms")
	t.Setenv("FETCH_TIMEOUT", "9s")
	t.Setenv("VERBOSE", "true")

	var cfg Config
	ApplyEnvToConfig(&cfg)

	if cfg.DB != "/tmp/cases.db" {
		t.Fatalf("DB=%q", cfg.DB)
	}
	if cfg.RawDir != "/tmp/raw" {
		t.Fatalf("RawDir=%q", cfg.RawDir)
	}
	if cfg.SourceBaseURL != "http://127.0.0.1:8089" {
		t.Fatalf("SourceBaseURL=%q", cfg.SourceBaseURL)
	}
	if cfg.UserAgent != "test-agent/1" {
		t.Fatalf("UserAgent=%q", cfg.UserAgent)
	}
	if cfg.MaxConcurrency != 3 || cfg.MaxRetries != 2 {
		t.Fatalf("ints: %d %d", cfg.MaxConcurrency, cfg.MaxRetries)
	}
	if cfg.MinDelay != 75*time.Millisecond {
		t.Fatalf("MinDelay=%v", cfg.MinDelay)
	}
	if cfg.FetchTimeout != 9*time.Second {
		t.Fatalf("FetchTimeout=%v", cfg.FetchTimeout)
	}
	if !cfg.Verbose {
		t.Fatalf("Verbose not set")
	}
}

func TestApplyEnvToConfig_ExplicitWins(t *testing.T) {
	t.Setenv("CASETRACE_DB", "/tmp/env.db")
	t.Setenv("MAX_CONCURRENCY", "9")

	cfg := Config{DB: "/tmp/flag.db", MaxConcurrency: 1}
	ApplyEnvToConfig(&cfg)

	if cfg.DB != "/tmp/flag.db" {
		t.Fatalf("env overrode explicit DB: %q", cfg.DB)
	}
	if cfg.MaxConcurrency != 1 {
		t.Fatalf("env overrode explicit concurrency: %d", cfg.MaxConcurrency)
	}
}

func TestApplyEnvToConfig_IgnoresMalformed(t *testing.T) {
	t.Setenv("MAX_CONCURRENCY", "not-a-number")
	t.Setenv("MIN_DELAY", "soon")

	var cfg Config
	ApplyEnvToConfig(&cfg)

	if cfg.MaxConcurrency != 0 || cfg.MinDelay != 0 {
		t.Fatalf("malformed env applied: %d %v", cfg.MaxConcurrency, cfg.MinDelay)
	}
}

func TestLoadConfigFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "casetrace.yaml")
	content := `
db: /tmp/yaml.db
raw:
  dir: /tmp/yaml-raw
source:
  base: http://127.0.0.1:8089
  listing: http://127.0.0.1:8089/gdviewer/SUPCT
crawl:
  ua: yaml-agent/1
  concurrency: 4
  retries: 3
verbose: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if fc.DB != "/tmp/yaml.db" || fc.Raw.Dir != "/tmp/yaml-raw" {
		t.Fatalf("storage fields: %q %q", fc.DB, fc.Raw.Dir)
	}
	if fc.Source.Base != "http://127.0.0.1:8089" {
		t.Fatalf("Source.Base=%q", fc.Source.Base)
	}
	if fc.Crawl.UserAgent != "yaml-agent/1" || fc.Crawl.Concurrency != 4 || fc.Crawl.Retries != 3 {
		t.Fatalf("crawl fields: %+v", fc.Crawl)
	}
	if !fc.Verbose {
		t.Fatalf("verbose not parsed")
	}
}

func TestLoadConfigFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "casetrace.json")
	content := `{"db":"/tmp/json.db","crawl":{"concurrency":7}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if fc.DB != "/tmp/json.db" || fc.Crawl.Concurrency != 7 {
		t.Fatalf("json fields: %q %d", fc.DB, fc.Crawl.Concurrency)
	}
}

func TestApplyFileConfig_OnlyFillsUnset(t *testing.T) {
	var fc FileConfig
	fc.DB = "/tmp/file.db"
	fc.Crawl.Concurrency = 8
	fc.Crawl.UserAgent = "file-agent/1"

	cfg := Config{DB: "/tmp/flag.db"}
	ApplyFileConfig(&cfg, &fc)

	if cfg.DB != "/tmp/flag.db" {
		t.Fatalf("file overrode explicit DB: %q", cfg.DB)
	}
	if cfg.MaxConcurrency != 8 {
		t.Fatalf("MaxConcurrency=%d", cfg.MaxConcurrency)
	}
	if cfg.UserAgent != "file-agent/1" {
		t.Fatalf("UserAgent=%q", cfg.UserAgent)
	}
}

func TestLoadEnvFiles_LoadsAndOverrides(t *testing.T) {
	t.Setenv("CT_TEST_KEY", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("CT_TEST_KEY=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("CT_TEST_KEY=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if err := LoadEnvFiles(a, filepath.Join(dir, "missing.env"), b); err != nil {
		t.Fatalf("LoadEnvFiles: %v", err)
	}
	if got := os.Getenv("CT_TEST_KEY"); got != "second" {
		t.Fatalf("CT_TEST_KEY=%q, want second", got)
	}
}
