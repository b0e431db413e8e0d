package extract

import (
	"regexp"
	"strings"

	"github.com/casetrace/casetrace/internal/evidence"
	"github.com/casetrace/casetrace/internal/normalize"
)

// Singapore judicial titles as they appear on judgment headers.
const judgeTitles = `(?:CJ|JA|J|JC|SJ|AR|DJ|Magistrate)`

// Three line shapes occur: "Name Title", "Title Name" (registrars are often
// listed prefix-style), and a labeled "Before: Name Title" / "Coram: ...".
var (
	judgePostfixRe = regexp.MustCompile(`^([A-Z][A-Za-z'.\- ]{2,}?)\s+(` + judgeTitles + `)\b\s*:?\s*$`)
	judgePrefixRe  = regexp.MustCompile(`^(` + judgeTitles + `)\s+([A-Z][A-Za-z'.\- ]{2,}?)\b\s*:?\s*$`)
	judgeLabeledRe = regexp.MustCompile(`(?i)^(?:Before|Coram)\s*:\s*([A-Z][A-Za-z'.\- ]{2,}?)\s+(` + judgeTitles + `)\b\s*:?\s*$`)
)

// Judge lines sit near these header phrases. Anchoring the search window to
// the first such line keeps quoted judge names deep in the body from
// matching.
var judgeAnchors = []string{
	"general division",
	"court of appeal",
	"family justice courts",
	"originating claim",
	"summons",
	"grounds of decision",
	"judgment reserved",
}

const (
	judgeLineWindow  = 600
	judgeWindowAbove = 80
	judgeWindowBelow = 120
)

// PresidingJudges extracts the coram, normalized to "Name Title" order
// whichever shape the page used, deduplicated by normalized string in
// first-seen order. When no single line matches, a second pass stitches each
// line with its next two to recover names the markup split apart.
func PresidingJudges(doc normalize.Document) ([]string, []evidence.Span) {
	var judges []string
	var ev []evidence.Span

	add := func(name, title string, idx int, snippet string) {
		val := strings.TrimSpace(strings.Join(strings.Fields(name), " ") + " " + strings.TrimSpace(title))
		known := false
		for _, j := range judges {
			if j == val {
				known = true
				break
			}
		}
		if !known {
			judges = append(judges, val)
		}
		ev = append(ev, evidence.NewSpan(evidence.KindLine, lineLoc(idx), snippet))
	}

	tryMatch := func(line string, idx int) bool {
		s := strings.TrimSpace(line)
		if s == "" {
			return false
		}
		if m := judgePostfixRe.FindStringSubmatch(s); m != nil {
			add(m[1], m[2], idx, s)
			return true
		}
		if m := judgePrefixRe.FindStringSubmatch(s); m != nil {
			add(m[2], m[1], idx, s)
			return true
		}
		if m := judgeLabeledRe.FindStringSubmatch(s); m != nil {
			add(m[1], m[2], idx, s)
			return true
		}
		return false
	}

	if len(doc.Lines) == 0 {
		return judges, ev
	}

	headLines := head(doc.Lines, judgeLineWindow)
	anchor := -1
	for i, ln := range headLines {
		lo := strings.ToLower(strings.TrimSpace(ln))
		for _, a := range judgeAnchors {
			if strings.Contains(lo, a) {
				anchor = i
				break
			}
		}
		if anchor >= 0 {
			break
		}
	}

	window := headLines
	base := 0
	if anchor >= 0 {
		start := anchor - judgeWindowAbove
		if start < 0 {
			start = 0
		}
		end := anchor + judgeWindowBelow
		if end > len(headLines) {
			end = len(headLines)
		}
		window = headLines[start:end]
		base = start
	}

	for off, ln := range window {
		tryMatch(ln, base+off)
	}

	// Stitched pass: markup sometimes splits "Tan Yu Qing" and "AR" onto
	// adjacent fragments.
	if len(judges) == 0 {
		for i := 0; i+2 < len(window); i++ {
			var parts []string
			for _, x := range window[i : i+3] {
				if t := strings.TrimSpace(x); t != "" {
					parts = append(parts, t)
				}
			}
			if tryMatch(strings.Join(parts, " "), base+i) {
				break
			}
		}
	}

	return judges, evidence.Dedupe(ev)
}
