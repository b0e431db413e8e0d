// Package validate is the post-extraction quality gate. It judges
// plausibility of values that are present; a missing field is never a
// finding. The policy is coverage over precision: a best-effort value plus a
// warning beats no value at all.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/casetrace/casetrace/internal/extract"
)

// canonicalCitationRe anchors only the start: trailing page text after a
// well-formed citation is fine.
var canonicalCitationRe = regexp.MustCompile(`(?i)^\[\d{4}\]\s+SG[A-Z]{2,}\s+\d+`)

// maxReferences is far beyond any real judgment's citation count; exceeding
// it signals extraction noise, not a long case.
const maxReferences = 2000

// Check inspects an assembled record and returns ok plus human-readable
// warnings. ok is true iff no warning was raised. The gate never errors;
// absence of data is always acceptable.
func Check(rec extract.ExtractedCase) (bool, []string) {
	return checkAt(rec, time.Now())
}

func checkAt(rec extract.ExtractedCase, now time.Time) (bool, []string) {
	var warnings []string

	if cit := strings.TrimSpace(rec.CaseCitation); cit != "" && !canonicalCitationRe.MatchString(cit) {
		warnings = append(warnings, fmt.Sprintf("case_citation format unexpected: %s", rec.CaseCitation))
	}

	if !rec.DecisionDate.IsZero() {
		if rec.DecisionDate.After(now.AddDate(1, 0, 0)) {
			warnings = append(warnings, fmt.Sprintf("decision_date seems implausible: %s", rec.DecisionDate.Format("2006-01-02")))
		}
	}

	for _, j := range rec.PresidingJudges {
		token := strings.TrimSpace(j)
		if token != "" && len(token) < 4 {
			warnings = append(warnings, fmt.Sprintf("suspicious judge token: %q", token))
		}
	}

	if len(rec.LegalReferencesCited) > maxReferences {
		warnings = append(warnings, "too many legal references extracted; likely parser noise")
	}

	return len(warnings) == 0, warnings
}
