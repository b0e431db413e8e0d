package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/casetrace/casetrace/internal/evidence"
	"github.com/casetrace/casetrace/internal/normalize"
)

// Judgment headers carry the decision date as a standalone line like
// "29 September 2025"; the pattern must consume the whole line so prose
// mentioning a date elsewhere never matches.
var dateLineRe = regexp.MustCompile(`(?i)^(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{4})$`)

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// dateLineWindow bounds the scan to the header region.
const dateLineWindow = 200

// DecisionDate scans the header region for standalone date lines and keeps
// the last valid one: hearing dates come first on these pages, the decision
// date closes the header block. Impossible calendar dates are skipped, not
// matched. A zero time means no date was found.
func DecisionDate(doc normalize.Document) (time.Time, []evidence.Span) {
	var found time.Time
	var foundEv evidence.Span

	for i, ln := range head(doc.Lines, dateLineWindow) {
		m := dateLineRe.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		day, _ := strconv.Atoi(m[1])
		month := months[strings.ToLower(m[2])]
		year, _ := strconv.Atoi(m[3])

		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if d.Day() != day || d.Month() != month {
			// time.Date normalizes 31 February into March; a shifted
			// result means the line was not a real calendar date.
			continue
		}
		found = d
		foundEv = evidence.NewSpan(evidence.KindLine, lineLoc(i), ln)
	}

	if found.IsZero() {
		return time.Time{}, nil
	}
	return found, []evidence.Span{foundEv}
}
