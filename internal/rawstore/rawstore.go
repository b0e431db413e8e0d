// Package rawstore persists fetched judgment HTML to disk so a crawl can be
// re-run or re-extracted offline without refetching. Filenames are stable per
// URL, which is what makes re-runs idempotent.
package rawstore

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Meta is the JSON sidecar written next to each HTML artifact.
type Meta struct {
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Store writes artifacts under Dir as <url-tail>_<sha1-12>.html plus a
// .meta.json sidecar.
type Store struct {
	Dir string
}

func (s *Store) ensureDir() error {
	if s == nil || s.Dir == "" {
		return errors.New("raw store dir not configured")
	}
	return os.MkdirAll(s.Dir, 0o755)
}

// Slug derives the stable filename stem for a URL: the last path segment plus
// a short hash of the full URL to disambiguate equal tails.
func (s *Store) Slug(url string) string {
	h := sha1.Sum([]byte(url))
	tail := strings.TrimRight(url, "/")
	if i := strings.LastIndexByte(tail, '/'); i >= 0 {
		tail = tail[i+1:]
	}
	tail = sanitize(tail)
	if tail == "" {
		tail = "doc"
	}
	return tail + "_" + hex.EncodeToString(h[:])[:12]
}

// Path returns where the HTML artifact for url lives (whether or not it
// exists yet).
func (s *Store) Path(url string) string {
	return filepath.Join(s.Dir, s.Slug(url)+".html")
}

// Save writes the HTML body and its meta sidecar, overwriting any previous
// artifact for the same URL. Returns the HTML path.
func (s *Store) Save(url string, body []byte, contentType string) (string, error) {
	if err := s.ensureDir(); err != nil {
		return "", err
	}
	path := s.Path(url)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write html: %w", err)
	}
	meta := Meta{URL: url, ContentType: contentType, FetchedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode meta: %w", err)
	}
	metaPath := strings.TrimSuffix(path, ".html") + ".meta.json"
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write meta: %w", err)
	}
	return path, nil
}

// Load reads back a previously saved artifact.
func (s *Store) Load(url string) ([]byte, error) {
	return os.ReadFile(s.Path(url))
}

// sanitize keeps the filename-safe subset of a URL tail.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
