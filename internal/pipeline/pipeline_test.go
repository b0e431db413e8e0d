package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/casetrace/casetrace/internal/fetch"
	"github.com/casetrace/casetrace/internal/rawstore"
	"github.com/casetrace/casetrace/internal/robots"
	"github.com/casetrace/casetrace/internal/store"
)

const judgmentOne = `<html><body>
<div>General Division of the High Court</div>
<div>[2025] SGHC 1</div>
<div>Between</div>
<div>Tan Holdings Pte Ltd</div>
<div>And</div>
<div>Ong Wei Ming</div>
<div>Grounds of Decision</div>
<div>Tan Li Wen J</div>
<div>29 September 2025</div>
<p>Following [2020] SGCA 45 at [41], the claim succeeds.</p>
</body></html>`

const judgmentTwo = `<html><body>
<div>General Division of the High Court</div>
<div>[2025] SGHC 2</div>
<div>29 September 2099</div>
</body></html>`

// stubSite serves a two-page listing plus judgment documents and counts
// fetches per path.
type stubSite struct {
	mu     sync.Mutex
	hits   map[string]int
	robots string
}

func (s *stubSite) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		if s.hits == nil {
			s.hits = map[string]int{}
		}
		s.hits[r.URL.Path]++
		s.mu.Unlock()

		switch {
		case r.URL.Path == "/robots.txt":
			if s.robots == "" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(s.robots))
		case strings.HasPrefix(r.URL.Path, "/gdviewer/SUPCT"):
			w.Header().Set("Content-Type", "text/html")
			if r.URL.Query().Get("CurrentPage") == "1" {
				fmt.Fprint(w, `<html><body>
					<a href="/gd/s/2025_SGHC_1">one</a>
					<a href="/gd/s/2025_SGHC_2">two</a>
					<a href="/gd/s/2025_SGHC_404">gone</a>
				</body></html>`)
				return
			}
			fmt.Fprint(w, `<html><body>no more</body></html>`)
		case r.URL.Path == "/gd/s/2025_SGHC_1":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, judgmentOne)
		case r.URL.Path == "/gd/s/2025_SGHC_2":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, judgmentTwo)
		default:
			http.NotFound(w, r)
		}
	})
}

func (s *stubSite) hitsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func newTestPipeline(t *testing.T, baseURL string, rm *robots.Manager) *Pipeline {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return &Pipeline{
		Fetch:       &fetch.Client{MaxAttempts: 1, PerRequestTimeout: 5 * time.Second},
		Store:       st,
		Raw:         &rawstore.Store{Dir: t.TempDir()},
		Robots:      rm,
		BaseURL:     baseURL,
		ListingURL:  baseURL + "/gdviewer/SUPCT",
		Concurrency: 2,
	}
}

func TestCrawl_EndToEnd(t *testing.T) {
	site := &stubSite{}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	p := newTestPipeline(t, srv.URL, nil)
	ctx := context.Background()

	stats, err := p.Crawl(ctx, CrawlOptions{MaxPages: 5, MaxCases: 50})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if stats.PagesCrawled != 2 || stats.CasesSeen != 3 {
		t.Fatalf("stats: %#v", stats)
	}
	if stats.CasesProcessed != 2 || stats.CasesFailed != 1 {
		t.Fatalf("stats: %#v", stats)
	}

	one, err := p.Store.GetDocument(ctx, srv.URL+"/gd/s/2025_SGHC_1")
	if err != nil || one == nil {
		t.Fatalf("document one: %#v %v", one, err)
	}
	if one.Status != store.StatusExtracted || one.Warning != "" || one.RawPath == "" {
		t.Fatalf("document one: %#v", one)
	}

	// The far-future decision date is a warning on the row, never a failure.
	two, _ := p.Store.GetDocument(ctx, srv.URL+"/gd/s/2025_SGHC_2")
	if two.Status != store.StatusExtracted {
		t.Fatalf("warnings must not fail the document: %#v", two)
	}
	if !strings.Contains(two.Warning, "decision_date seems implausible") {
		t.Fatalf("warning not recorded: %q", two.Warning)
	}

	gone, _ := p.Store.GetDocument(ctx, srv.URL+"/gd/s/2025_SGHC_404")
	if gone.Status != store.StatusFailed || gone.Error == "" {
		t.Fatalf("fetch failure must mark FAILED: %#v", gone)
	}

	rows, err := p.Store.LatestExtractions(ctx, 10)
	if err != nil || len(rows) != 2 {
		t.Fatalf("extractions: %d %v", len(rows), err)
	}
	var ex *store.Extraction
	for _, r := range rows {
		if strings.HasSuffix(r.URL, "2025_SGHC_1") {
			ex = r
		}
	}
	if ex == nil {
		t.Fatalf("extraction for judgment one missing")
	}
	if ex.CaseCitation != "[2025] SGHC 1" || ex.DecisionDate != "2025-09-29" {
		t.Fatalf("extraction values: %#v", ex)
	}
	if len(ex.PresidingJudges) != 1 || ex.PresidingJudges[0] != "Tan Li Wen J" {
		t.Fatalf("judges: %#v", ex.PresidingJudges)
	}
	if len(ex.Parties.Claimants) != 1 || ex.Parties.Claimants[0] != "Tan Holdings Pte Ltd" {
		t.Fatalf("parties: %#v", ex.Parties)
	}
	if len(ex.LegalReferencesCited) == 0 {
		t.Fatalf("references empty")
	}
}

func TestCrawl_IdempotentRerun(t *testing.T) {
	site := &stubSite{}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	p := newTestPipeline(t, srv.URL, nil)
	ctx := context.Background()

	if _, err := p.Crawl(ctx, CrawlOptions{MaxPages: 5}); err != nil {
		t.Fatalf("first crawl: %v", err)
	}
	first := site.hitsFor("/gd/s/2025_SGHC_1")

	if _, err := p.Crawl(ctx, CrawlOptions{MaxPages: 5}); err != nil {
		t.Fatalf("second crawl: %v", err)
	}
	if got := site.hitsFor("/gd/s/2025_SGHC_1"); got != first {
		t.Fatalf("extracted document must not be refetched: %d -> %d", first, got)
	}
}

func TestCrawl_MaxCasesCap(t *testing.T) {
	site := &stubSite{}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	p := newTestPipeline(t, srv.URL, nil)
	stats, err := p.Crawl(context.Background(), CrawlOptions{MaxCases: 2})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if stats.CasesProcessed+stats.CasesFailed > 2 {
		t.Fatalf("cap exceeded: %#v", stats)
	}
}

func TestCrawl_RobotsDisallowSkips(t *testing.T) {
	site := &stubSite{robots: "User-agent: *\nDisallow: /gd/s/2025_SGHC_2\n"}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	rm := &robots.Manager{UserAgent: "casetrace-test"}
	p := newTestPipeline(t, srv.URL, rm)

	stats, err := p.Crawl(context.Background(), CrawlOptions{MaxPages: 5})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if stats.CasesSkipped != 1 {
		t.Fatalf("expected one robots skip: %#v", stats)
	}
	if site.hitsFor("/gd/s/2025_SGHC_2") != 0 {
		t.Fatalf("disallowed judgment must not be fetched")
	}
	if doc, _ := p.Store.GetDocument(context.Background(), srv.URL+"/gd/s/2025_SGHC_2"); doc != nil {
		t.Fatalf("skipped url must not get a document row: %#v", doc)
	}
}

func TestCrawl_ListingUnreachableFailsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := newTestPipeline(t, srv.URL, nil)
	if _, err := p.Crawl(context.Background(), CrawlOptions{MaxPages: 1}); err == nil {
		t.Fatalf("unreachable listing must fail the run")
	}
}

func TestProcessOne_RecordsWarningsNotFailures(t *testing.T) {
	site := &stubSite{}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	p := newTestPipeline(t, srv.URL, nil)
	ctx := context.Background()
	url := srv.URL + "/gd/s/2025_SGHC_2"

	if err := p.ProcessOne(ctx, url); err != nil {
		t.Fatalf("process: %v", err)
	}
	doc, _ := p.Store.GetDocument(ctx, url)
	if doc.Status != store.StatusExtracted || doc.Warning == "" || doc.Error != "" {
		t.Fatalf("document row: %#v", doc)
	}
}
