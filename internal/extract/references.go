package extract

import (
	"regexp"

	"github.com/casetrace/casetrace/internal/evidence"
	"github.com/casetrace/casetrace/internal/normalize"
)

// Cited case law comes in two forms: law-report citations like
// "[2009] 2 SLR(R) 332" and neutral citations like "[2020] SGCA 45".
var refCaseRe = regexp.MustCompile(`(?i)\[\d{4}\]\s+\d+\s+SLR\(R\)\s+\d+|\[\d{4}\]\s+SG[A-Z]{2,}\s+\d+`)

// Statutes read like "Evidence Act 1893" or "Companies Act (1994 Rev Ed)".
var refStatuteRe = regexp.MustCompile(`(?i)\b[A-Z][A-Za-z ]+ Act\b(?:\s+\d{4})?(?:\s*\(\d{4}\s+Rev\s+Ed\))?`)

// A paragraph pinpoint like "at [41]" qualifies every case citation on its line.
var refPinpointRe = regexp.MustCompile(`(?i)\bat\s*\[(\d+)\]`)

// refLineWindow bounds the body scan for speed on pathological pages.
const refLineWindow = 2000

// LegalReferences collects every cited authority, deduplicated across the
// document by (type, lowercased citation, pinpoint) in first-seen order. The
// evidence list keeps one span per raw occurrence; capping stored evidence is
// the caller's concern.
func LegalReferences(doc normalize.Document) ([]LegalReference, []evidence.Span) {
	var refs []LegalReference
	var ev []evidence.Span

	for i, ln := range head(doc.Lines, refLineWindow) {
		pinpoint := ""
		if pm := refPinpointRe.FindStringSubmatch(ln); pm != nil {
			pinpoint = "[" + pm[1] + "]"
		}
		for _, m := range refCaseRe.FindAllString(ln, -1) {
			sp := evidence.NewSpan(evidence.KindLine, lineLoc(i), ln)
			refs = append(refs, LegalReference{RefType: RefCase, Citation: m, Pinpoint: pinpoint, Evidence: &sp})
			ev = append(ev, sp)
		}
		for _, m := range refStatuteRe.FindAllString(ln, -1) {
			sp := evidence.NewSpan(evidence.KindLine, lineLoc(i), ln)
			refs = append(refs, LegalReference{RefType: RefStatute, Citation: m, Evidence: &sp})
			ev = append(ev, sp)
		}
	}

	seen := map[string]struct{}{}
	deduped := make([]LegalReference, 0, len(refs))
	for _, r := range refs {
		if _, ok := seen[r.Key()]; ok {
			continue
		}
		seen[r.Key()] = struct{}{}
		deduped = append(deduped, r)
	}
	return deduped, ev
}
