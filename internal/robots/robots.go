// Package robots implements best-effort robots.txt politeness for the crawl
// loop. Rules are fetched once per host and cached in memory with an expiry;
// a robots.txt that cannot be fetched or parsed degrades to allow-all, since
// politeness must never be the reason a permissive site goes uncrawled.
package robots

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Group is one user-agent block of a robots.txt file.
type Group struct {
	Agents     []string
	Allow      []string
	Disallow   []string
	CrawlDelay *time.Duration
}

// Rules is a parsed robots.txt file.
type Rules struct {
	Groups []Group
}

// Manager fetches and caches per-host rules.
type Manager struct {
	HTTPClient *http.Client
	UserAgent  string
	// EntryExpiry bounds how long cached rules are trusted. Zero means 30m.
	EntryExpiry time.Duration

	mu  sync.Mutex
	mem map[string]memEntry
	now func() time.Time
}

type memEntry struct {
	rules  Rules
	expiry time.Time
}

// Allowed reports whether docURL may be fetched under the host's robots.txt.
// Errors degrade to true.
func (m *Manager) Allowed(ctx context.Context, docURL string) bool {
	u, err := url.Parse(docURL)
	if err != nil || u.Host == "" {
		return true
	}
	rules := m.rulesFor(ctx, u)
	path := u.Path
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rules.IsAllowed(m.UserAgent, path)
}

// CrawlDelay returns the crawl delay the host requests for our user agent,
// or zero when none is set.
func (m *Manager) CrawlDelay(ctx context.Context, siteURL string) time.Duration {
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return 0
	}
	if d := m.rulesFor(ctx, u).CrawlDelayFor(m.UserAgent); d != nil {
		return *d
	}
	return 0
}

func (m *Manager) rulesFor(ctx context.Context, u *url.URL) Rules {
	if m.now == nil {
		m.now = time.Now
	}
	key := u.Scheme + "://" + u.Host

	m.mu.Lock()
	if m.mem == nil {
		m.mem = make(map[string]memEntry)
	}
	if ent, ok := m.mem[key]; ok && m.now().Before(ent.expiry) {
		m.mu.Unlock()
		return ent.rules
	}
	m.mu.Unlock()

	rules := m.fetch(ctx, key+"/robots.txt")

	exp := m.EntryExpiry
	if exp <= 0 {
		exp = 30 * time.Minute
	}
	m.mu.Lock()
	m.mem[key] = memEntry{rules: rules, expiry: m.now().Add(exp)}
	m.mu.Unlock()
	return rules
}

func (m *Manager) fetch(ctx context.Context, robotsURL string) Rules {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return Rules{}
	}
	if m.UserAgent != "" {
		req.Header.Set("User-Agent", m.UserAgent)
	}
	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Debug().Str("url", robotsURL).Err(err).Msg("robots fetch failed; allowing all")
		return Rules{}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Missing robots.txt means no restrictions.
		return Rules{}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Rules{}
	}
	return Parse(string(data))
}

// Parse reads robots.txt text into Rules. Unknown directives are ignored; a
// new user-agent line after rules have been seen starts a new group.
func Parse(text string) Rules {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var groups []Group
	current := Group{}
	hasRules := func(g Group) bool {
		return len(g.Allow) > 0 || len(g.Disallow) > 0 || g.CrawlDelay != nil
	}
	flush := func() {
		if len(current.Agents) > 0 || hasRules(current) {
			groups = append(groups, current)
		}
		current = Group{}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:colon]))
		val := strings.TrimSpace(line[colon+1:])
		switch key {
		case "user-agent":
			if hasRules(current) {
				flush()
			}
			current.Agents = append(current.Agents, strings.ToLower(val))
		case "allow":
			current.Allow = append(current.Allow, val)
		case "disallow":
			current.Disallow = append(current.Disallow, val)
		case "crawl-delay":
			if d, err := time.ParseDuration(val + "s"); err == nil && d > 0 {
				current.CrawlDelay = &d
			}
		}
	}
	flush()
	return Rules{Groups: groups}
}

// IsAllowed evaluates path against the best-matching user-agent group.
// Longest-match wins among Allow/Disallow directives; on a specificity tie,
// Allow beats Disallow. No matching directive means allowed.
func (r Rules) IsAllowed(userAgent, path string) bool {
	idx := r.groupIndex(userAgent)
	if idx < 0 {
		return true
	}
	grp := r.Groups[idx]

	bestScore := -1
	bestAllow := true
	consider := func(patterns []string, isAllow bool) {
		for _, p := range patterns {
			if p == "" || !patternMatches(p, path) {
				continue
			}
			score := patternSpecificity(p)
			if score > bestScore || (score == bestScore && isAllow && !bestAllow) {
				bestScore = score
				bestAllow = isAllow
			}
		}
	}
	consider(grp.Disallow, false)
	consider(grp.Allow, true)

	if bestScore == -1 {
		return true
	}
	return bestAllow
}

// CrawlDelayFor returns the delay of the best-matching group, or nil.
func (r Rules) CrawlDelayFor(userAgent string) *time.Duration {
	idx := r.groupIndex(userAgent)
	if idx < 0 {
		return nil
	}
	return r.Groups[idx].CrawlDelay
}

// groupIndex picks the group whose agent token best matches userAgent: the
// longest substring match wins, "*" loses to any named match, ties keep the
// first group.
func (r Rules) groupIndex(userAgent string) int {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	bestIdx, bestScore := -1, -1
	for i, g := range r.Groups {
		for _, a := range g.Agents {
			token := strings.ToLower(strings.TrimSpace(a))
			var score int
			switch {
			case token == "":
				continue
			case token == "*":
				score = 0
			case strings.Contains(ua, token):
				score = len(token)
			default:
				continue
			}
			if score > bestScore {
				bestScore, bestIdx = score, i
			}
		}
	}
	return bestIdx
}

// patternMatches matches a robots pattern against a path: '*' matches any
// sequence and a trailing '$' anchors the end; matching is anchored at the
// start of the path.
func patternMatches(pattern, path string) bool {
	anchorEnd := strings.HasSuffix(pattern, "$")
	p := strings.TrimSuffix(pattern, "$")

	var b strings.Builder
	b.WriteString("^")
	for _, rn := range p {
		if rn == '*' {
			b.WriteString(".*")
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(rn)))
	}
	if anchorEnd {
		b.WriteString("$")
	}
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

// patternSpecificity scores a pattern by its concrete length; '*' and a
// trailing '$' do not count.
func patternSpecificity(pattern string) int {
	p := strings.TrimSuffix(pattern, "$")
	return len(strings.ReplaceAll(p, "*", ""))
}
