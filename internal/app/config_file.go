package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the single-file configuration schema. Nested sections map
// naturally to flags and env.
type FileConfig struct {
	DB  string `yaml:"db" json:"db"`
	Raw struct {
		Dir string `yaml:"dir" json:"dir"`
	} `yaml:"raw" json:"raw"`

	Source struct {
		Base    string `yaml:"base" json:"base"`
		Listing string `yaml:"listing" json:"listing"`
	} `yaml:"source" json:"source"`

	Crawl struct {
		UserAgent   string        `yaml:"ua" json:"ua"`
		Concurrency int           `yaml:"concurrency" json:"concurrency"`
		MinDelay    time.Duration `yaml:"minDelay" json:"minDelay"`
		Retries     int           `yaml:"retries" json:"retries"`
		Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"crawl" json:"crawl"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON depending on the file extension; an
// unknown extension is tried as YAML, which is a superset of JSON for our
// schema.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return &fc, nil
}

// ApplyFileConfig overlays file values onto unset cfg fields. Flags and env
// have already been applied, so only zero fields are touched.
func ApplyFileConfig(cfg *Config, fc *FileConfig) {
	if cfg == nil || fc == nil {
		return
	}
	if cfg.DB == "" {
		cfg.DB = fc.DB
	}
	if cfg.RawDir == "" {
		cfg.RawDir = fc.Raw.Dir
	}
	if cfg.SourceBaseURL == "" {
		cfg.SourceBaseURL = fc.Source.Base
	}
	if cfg.SourceListingURL == "" {
		cfg.SourceListingURL = fc.Source.Listing
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = fc.Crawl.UserAgent
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = fc.Crawl.Concurrency
	}
	if cfg.MinDelay == 0 {
		cfg.MinDelay = fc.Crawl.MinDelay
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = fc.Crawl.Retries
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = fc.Crawl.Timeout
	}
	if !cfg.Verbose {
		cfg.Verbose = fc.Verbose
	}
}
