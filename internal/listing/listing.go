// Package listing builds paginated listing URLs for the judgment site and
// discovers judgment URLs on a listing page.
package listing

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// The site links judgments under both path shapes; /gdviewer/s/ is an alias
// for /gd/s/ and is canonicalized so each judgment gets exactly one URL.
var (
	gdPathRe       = regexp.MustCompile(`/gd/s/[A-Za-z0-9_\-]+`)
	gdViewerPathRe = regexp.MustCompile(`/gdviewer/s/[A-Za-z0-9_\-]+`)
)

// BuildURL returns the listing URL for one page. Pagination goes through the
// CurrentPage query param; sort params are set conservatively and ignored by
// endpoints that do not support them.
func BuildURL(baseListingURL string, page int) (string, error) {
	u, err := url.Parse(baseListingURL)
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}
	q := u.Query()
	q.Set("CurrentPage", fmt.Sprintf("%d", page))
	if !q.Has("PageSize") {
		q.Set("PageSize", "0")
	}
	if !q.Has("SortBy") {
		q.Set("SortBy", "DateOfDecision")
	}
	if !q.Has("SortAscending") {
		q.Set("SortAscending", "False")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Parse extracts the ordered, deduplicated set of absolute judgment URLs from
// a listing page. Anchor hrefs are read from the HTML tree; a raw-regex sweep
// of the document catches paths embedded in onclick handlers and data
// attributes that never surface as anchors.
func Parse(sourceBaseURL string, page []byte) []string {
	base, err := url.Parse(sourceBaseURL)
	if err != nil {
		return nil
	}

	found := map[string]struct{}{}
	add := func(ref string) {
		ref = canonicalize(ref)
		u, err := base.Parse(ref)
		if err != nil {
			return
		}
		found[u.String()] = struct{}{}
	}

	if node, err := html.Parse(bytes.NewReader(page)); err == nil && node != nil {
		walkAnchors(node, func(href string) {
			if gdPathRe.MatchString(href) || gdViewerPathRe.MatchString(href) {
				add(href)
			}
		})
	}

	raw := string(page)
	for _, m := range gdPathRe.FindAllString(raw, -1) {
		add(m)
	}
	for _, m := range gdViewerPathRe.FindAllString(raw, -1) {
		add(m)
	}

	urls := make([]string, 0, len(found))
	for u := range found {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

func canonicalize(ref string) string {
	return strings.Replace(ref, "/gdviewer/s/", "/gd/s/", 1)
}

func walkAnchors(n *html.Node, fn func(href string)) {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, "a") {
		for _, attr := range n.Attr {
			if strings.EqualFold(attr.Key, "href") && attr.Val != "" {
				fn(attr.Val)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkAnchors(c, fn)
	}
}
