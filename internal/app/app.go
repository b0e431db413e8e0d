// Package app wires configuration into the crawler's collaborators. The CLI
// resolves a Config, then asks this package for a ready pipeline.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/casetrace/casetrace/internal/fetch"
	"github.com/casetrace/casetrace/internal/pipeline"
	"github.com/casetrace/casetrace/internal/rawstore"
	"github.com/casetrace/casetrace/internal/robots"
	"github.com/casetrace/casetrace/internal/store"
)

// NewFetchClient builds the polite HTTP client from cfg.
func NewFetchClient(cfg Config) *fetch.Client {
	return &fetch.Client{
		HTTPClient:        newCrawlHTTPClient(),
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       cfg.MaxRetries,
		PerRequestTimeout: cfg.FetchTimeout,
		MinDelay:          cfg.MinDelay,
		MaxConcurrent:     cfg.MaxConcurrency,
	}
}

// OpenStore opens and initializes the configured storage backend. For a
// SQLite DSN the parent directory is created first.
func OpenStore(ctx context.Context, cfg Config) (store.Store, error) {
	if !strings.HasPrefix(cfg.DB, "postgres://") && !strings.HasPrefix(cfg.DB, "postgresql://") {
		if dir := filepath.Dir(cfg.DB); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir %q: %w", dir, err)
			}
		}
	}
	st, err := store.Open(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", cfg.DB, err)
	}
	if err := st.Init(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init store %q: %w", cfg.DB, err)
	}
	return st, nil
}

// NewPipeline assembles the full crawl pipeline. The caller owns the returned
// store and closes it when done.
func NewPipeline(ctx context.Context, cfg Config) (*pipeline.Pipeline, store.Store, error) {
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	p := &pipeline.Pipeline{
		Fetch:       NewFetchClient(cfg),
		Store:       st,
		Raw:         &rawstore.Store{Dir: cfg.RawDir},
		Robots:      &robots.Manager{UserAgent: cfg.UserAgent},
		BaseURL:     cfg.SourceBaseURL,
		ListingURL:  cfg.SourceListingURL,
		Concurrency: cfg.MaxConcurrency,
	}
	return p, st, nil
}
