package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleRobots = `# crawl policy
User-agent: badbot
Disallow: /

User-agent: *
Disallow: /admin/
Allow: /admin/public
Crawl-delay: 2
`

func TestParse_GroupsAndDirectives(t *testing.T) {
	rules := Parse(sampleRobots)
	if len(rules.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rules.Groups))
	}
	star := rules.Groups[1]
	if len(star.Disallow) != 1 || len(star.Allow) != 1 || star.CrawlDelay == nil {
		t.Fatalf("wildcard group misparsed: %#v", star)
	}
	if *star.CrawlDelay != 2*time.Second {
		t.Fatalf("crawl delay: %v", *star.CrawlDelay)
	}
}

func TestIsAllowed_LongestMatchWins(t *testing.T) {
	rules := Parse(sampleRobots)
	if rules.IsAllowed("casetrace/1.0", "/admin/secret") {
		t.Fatalf("disallowed path must be blocked")
	}
	if !rules.IsAllowed("casetrace/1.0", "/admin/public/x") {
		t.Fatalf("more specific allow must win")
	}
	if !rules.IsAllowed("casetrace/1.0", "/gd/s/2025_SGHC_1") {
		t.Fatalf("unmatched path defaults to allowed")
	}
}

func TestIsAllowed_NamedGroupBeatsWildcard(t *testing.T) {
	rules := Parse(sampleRobots)
	if rules.IsAllowed("badbot/2.0", "/anything") {
		t.Fatalf("named group must take precedence")
	}
}

func TestIsAllowed_EndAnchorAndWildcard(t *testing.T) {
	rules := Parse("User-agent: *\nDisallow: /*.pdf$\n")
	if rules.IsAllowed("x", "/files/judgment.pdf") {
		t.Fatalf("$-anchored pattern must match")
	}
	if !rules.IsAllowed("x", "/files/judgment.pdf.html") {
		t.Fatalf("anchor must not match longer path")
	}
}

func TestManager_CachesPerHost(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /blocked/\n"))
	}))
	defer srv.Close()

	m := &Manager{UserAgent: "casetrace/1.0"}
	ctx := context.Background()
	if m.Allowed(ctx, srv.URL+"/blocked/page") {
		t.Fatalf("expected disallow")
	}
	if !m.Allowed(ctx, srv.URL+"/open/page") {
		t.Fatalf("expected allow")
	}
	if hits != 1 {
		t.Fatalf("rules must be fetched once per host, got %d fetches", hits)
	}
}

func TestManager_DegradesToAllowAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	m := &Manager{UserAgent: "casetrace/1.0"}
	if !m.Allowed(context.Background(), srv.URL+"/anything") {
		t.Fatalf("robots errors must degrade to allow-all")
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down.Close()
	if !m.Allowed(context.Background(), down.URL+"/x") {
		t.Fatalf("unreachable robots must degrade to allow-all")
	}
}

func TestManager_CrawlDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRobots))
	}))
	defer srv.Close()

	m := &Manager{UserAgent: "casetrace/1.0"}
	if d := m.CrawlDelay(context.Background(), srv.URL); d != 2*time.Second {
		t.Fatalf("expected 2s crawl delay, got %v", d)
	}
}
