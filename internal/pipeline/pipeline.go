// Package pipeline sequences the crawl: listing discovery, polite fetching,
// normalization, extraction, validation, and persistence. One Pipeline drives
// one source site.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/casetrace/casetrace/internal/extract"
	"github.com/casetrace/casetrace/internal/fetch"
	"github.com/casetrace/casetrace/internal/listing"
	"github.com/casetrace/casetrace/internal/normalize"
	"github.com/casetrace/casetrace/internal/rawstore"
	"github.com/casetrace/casetrace/internal/robots"
	"github.com/casetrace/casetrace/internal/store"
	"github.com/casetrace/casetrace/internal/validate"
)

// refEvidenceCap bounds the stored legal-references evidence bucket. The
// extractor itself records one span per occurrence; capping at persistence
// keeps database rows sane on citation-heavy judgments.
const refEvidenceCap = 50

// Pipeline wires the collaborators for one source site.
type Pipeline struct {
	Fetch  *fetch.Client
	Store  store.Store
	Raw    *rawstore.Store
	Robots *robots.Manager // nil disables robots checks

	// BaseURL resolves relative judgment links; ListingURL is the
	// paginated listing endpoint.
	BaseURL    string
	ListingURL string

	// Concurrency bounds the per-page worker pool. Minimum 1.
	Concurrency int
}

// CrawlOptions caps a crawl run. Zero means unlimited.
type CrawlOptions struct {
	MaxPages int
	MaxCases int
}

// Stats is the per-run accounting persisted on the crawl_runs row.
type Stats struct {
	PagesCrawled   int
	CasesSeen      int
	CasesProcessed int
	CasesFailed    int
	CasesSkipped   int // robots-disallowed
}

func (s Stats) Map() map[string]int {
	return map[string]int{
		"pages_crawled":   s.PagesCrawled,
		"cases_seen":      s.CasesSeen,
		"cases_processed": s.CasesProcessed,
		"cases_failed":    s.CasesFailed,
		"cases_skipped":   s.CasesSkipped,
	}
}

// Crawl pages through the listing until an empty page or a cap, processing
// newly discovered judgment URLs with a bounded worker pool. The run is
// recorded on crawl_runs; a listing that cannot be fetched fails the run,
// per-document failures only count against it.
func (p *Pipeline) Crawl(ctx context.Context, opts CrawlOptions) (Stats, error) {
	run := &store.CrawlRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    store.RunRunning,
		Params:    map[string]any{"max_pages": opts.MaxPages, "max_cases": opts.MaxCases},
		Stats:     map[string]int{},
	}
	if err := p.Store.CreateRun(ctx, run); err != nil {
		return Stats{}, fmt.Errorf("create crawl run: %w", err)
	}

	stats, crawlErr := p.crawl(ctx, opts)

	run.FinishedAt = time.Now().UTC()
	run.Stats = stats.Map()
	if crawlErr != nil {
		run.Status = store.RunFailed
		run.Error = store.ClampNote(crawlErr.Error())
	} else {
		run.Status = store.RunDone
	}
	if err := p.Store.FinishRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("run", run.ID).Msg("finish crawl run")
	}
	return stats, crawlErr
}

func (p *Pipeline) crawl(ctx context.Context, opts CrawlOptions) (Stats, error) {
	var stats Stats

	if p.Robots != nil {
		if d := p.Robots.CrawlDelay(ctx, p.BaseURL); d > 0 {
			p.Fetch.SetMinDelay(d)
			log.Info().Dur("delay", d).Msg("robots crawl-delay adopted")
		}
	}

	seen := map[string]struct{}{}
	for page := 1; ; page++ {
		if opts.MaxPages > 0 && stats.PagesCrawled >= opts.MaxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pageURL, err := listing.BuildURL(p.ListingURL, page)
		if err != nil {
			return stats, err
		}
		body, _, err := p.Fetch.Get(ctx, pageURL)
		if err != nil {
			return stats, fmt.Errorf("fetch listing page %d: %w", page, err)
		}
		stats.PagesCrawled++

		urls := listing.Parse(p.BaseURL, body)
		if len(urls) == 0 {
			break
		}

		var newURLs []string
		for _, u := range urls {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			newURLs = append(newURLs, u)
		}
		stats.CasesSeen = len(seen)

		if opts.MaxCases > 0 && len(seen) > opts.MaxCases {
			keep := opts.MaxCases - (len(seen) - len(newURLs))
			if keep < 0 {
				keep = 0
			}
			newURLs = newURLs[:keep]
		}

		log.Info().Int("page", page).Int("new", len(newURLs)).Int("seen", len(seen)).Msg("listing page crawled")
		p.processBatch(ctx, newURLs, &stats)

		if opts.MaxCases > 0 && stats.CasesSeen >= opts.MaxCases {
			break
		}
	}
	return stats, ctx.Err()
}

func (p *Pipeline) processBatch(ctx context.Context, urls []string, stats *Stats) {
	conc := p.Concurrency
	if conc < 1 {
		conc = 1
	}
	sem := make(chan struct{}, conc)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		if p.Robots != nil && !p.Robots.Allowed(ctx, u) {
			log.Debug().Str("url", u).Msg("robots disallow; skipping")
			mu.Lock()
			stats.CasesSkipped++
			mu.Unlock()
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(url string) {
			defer wg.Done()
			defer func() { <-sem }()
			err := p.ProcessOne(ctx, url)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.CasesFailed++
			} else {
				stats.CasesProcessed++
			}
		}(u)
	}
	wg.Wait()
}

// ProcessOne runs the full document lifecycle for one judgment URL:
// RECEIVED, FETCHED, then EXTRACTED or FAILED. Validator warnings are stored
// on the document row and never fail the document; a URL already EXTRACTED is
// skipped without refetching.
func (p *Pipeline) ProcessOne(ctx context.Context, url string) error {
	doc, err := p.Store.GetDocument(ctx, url)
	if err != nil {
		return fmt.Errorf("lookup document: %w", err)
	}
	if doc != nil && doc.Status == store.StatusExtracted {
		log.Debug().Str("url", url).Msg("already extracted; skipping")
		return nil
	}
	if doc == nil {
		doc = &store.Document{URL: url, Status: store.StatusReceived}
		if err := p.Store.UpsertDocument(ctx, doc); err != nil {
			return fmt.Errorf("record document: %w", err)
		}
	}

	fail := func(cause error) error {
		doc.Status = store.StatusFailed
		doc.Error = store.ClampNote(cause.Error())
		if err := p.Store.UpsertDocument(ctx, doc); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("record failure status")
		}
		return cause
	}

	body, contentType, err := p.Fetch.Get(ctx, url)
	if err != nil {
		return fail(fmt.Errorf("fetch judgment: %w", err))
	}

	if p.Raw != nil {
		path, err := p.Raw.Save(url, body, contentType)
		if err != nil {
			return fail(fmt.Errorf("store raw html: %w", err))
		}
		doc.RawPath = path
	}
	doc.Status = store.StatusFetched
	doc.FetchedAt = time.Now().UTC()
	if err := p.Store.UpsertDocument(ctx, doc); err != nil {
		return fail(fmt.Errorf("record fetch: %w", err))
	}

	rec := extract.Assemble(normalize.FromHTML(url, body), time.Now())
	capRefEvidence(&rec)

	_, warnings := validate.Check(rec)
	doc.Status = store.StatusExtracted
	doc.Warning = store.ClampNote(strings.Join(warnings, "; "))
	doc.Error = ""

	if err := p.Store.SaveExtraction(ctx, store.NewExtraction(doc.ID, rec)); err != nil {
		return fail(fmt.Errorf("save extraction: %w", err))
	}
	if err := p.Store.UpsertDocument(ctx, doc); err != nil {
		return fail(fmt.Errorf("record extraction: %w", err))
	}

	log.Info().Str("url", url).Str("citation", rec.CaseCitation).Int("warnings", len(warnings)).Msg("document extracted")
	return nil
}

// FetchDocument fetches and normalizes one judgment without persisting
// anything; the ad-hoc extraction commands use it.
func (p *Pipeline) FetchDocument(ctx context.Context, url string) (normalize.Document, error) {
	body, _, err := p.Fetch.Get(ctx, url)
	if err != nil {
		return normalize.Document{}, fmt.Errorf("fetch judgment: %w", err)
	}
	return normalize.FromHTML(url, body), nil
}

func capRefEvidence(rec *extract.ExtractedCase) {
	ev := rec.Evidence[extract.FieldLegalReferences]
	if len(ev) > refEvidenceCap {
		rec.Evidence[extract.FieldLegalReferences] = ev[:refEvidenceCap]
	}
}
