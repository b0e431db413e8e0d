package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/casetrace/casetrace/internal/evidence"
	"github.com/casetrace/casetrace/internal/normalize"
)

// Neutral citation of the deciding court, e.g. "[2025] SGHCR 33". The end is
// deliberately unanchored; citations appear mid-sentence in header lines.
var citationRe = regexp.MustCompile(`(?i)\[\d{4}\]\s+SG[A-Z]{2,}\s+\d+`)

// Judgment URLs end in a slug like /gd/s/2025_SGHC_102 that encodes the same
// citation, used as a last resort when the page text yields nothing.
var citationSlugRe = regexp.MustCompile(`(?i)/gd/s/(\d{4})_([A-Z]+)_(\d+)$`)

// citationLineWindow bounds the header scan; citations live near the top.
const citationLineWindow = 400

// CaseCitation finds the document's own neutral citation. Strategies in
// priority order: header lines, the full text blob, then the URL slug. The
// first match wins; no reconciliation is attempted when a page carries more
// than one citation.
func CaseCitation(doc normalize.Document) (string, []evidence.Span) {
	for i, ln := range head(doc.Lines, citationLineWindow) {
		if m := citationRe.FindString(ln); m != "" {
			ev := []evidence.Span{evidence.NewSpan(evidence.KindLine, lineLoc(i), ln)}
			return strings.TrimSpace(m), ev
		}
	}

	if loc := citationRe.FindStringIndex(doc.Text); loc != nil {
		start, end := loc[0], loc[1]
		snipStart := start - 60
		if snipStart < 0 {
			snipStart = 0
		}
		snipEnd := end + 60
		if snipEnd > len(doc.Text) {
			snipEnd = len(doc.Text)
		}
		ev := []evidence.Span{evidence.NewSpan(
			evidence.KindRegex,
			fmt.Sprintf("full_text[%d:%d]", start, end),
			doc.Text[snipStart:snipEnd],
		)}
		return strings.TrimSpace(doc.Text[start:end]), ev
	}

	if m := citationSlugRe.FindStringSubmatch(doc.URL); m != nil {
		year, court, num := m[1], m[2], m[3]
		// Reformat the numeric suffix without leading zeros.
		n, err := strconv.Atoi(num)
		if err != nil {
			return "", nil
		}
		slug := fmt.Sprintf("%s_%s_%s", year, court, num)
		ev := []evidence.Span{evidence.NewSpan(evidence.KindRegex, "url_slug_fallback", slug)}
		return fmt.Sprintf("[%s] %s %d", year, court, n), ev
	}

	return "", nil
}

// head returns at most n leading lines.
func head(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	return lines
}

func lineLoc(i int) string {
	return fmt.Sprintf("lines[%d]", i)
}
