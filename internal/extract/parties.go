package extract

import (
	"regexp"
	"strings"

	"github.com/casetrace/casetrace/internal/evidence"
	"github.com/casetrace/casetrace/internal/normalize"
)

var vLineRe = regexp.MustCompile(`(?i)^\s*v\s*$`)

const (
	partiesLineWindow = 450
	vMarkerWindow     = 250
	vMarkerReach      = 7
	vMarkerMaxNames   = 3
)

// PartyNames extracts claimants and defendants from the header. Two mutually
// exclusive strategies: the tabular "Between ... And ..." block, or, when no
// "between" line exists, names gathered around a standalone "v" line. Finding
// neither marker yields empty Parties with no evidence.
func PartyNames(doc normalize.Document) (Parties, []evidence.Span) {
	var parties Parties
	var ev []evidence.Span

	lines := head(doc.Lines, partiesLineWindow)

	betweenIdx := -1
	for i, ln := range lines {
		if strings.EqualFold(strings.TrimSpace(ln), "between") {
			betweenIdx = i
			break
		}
	}

	if betweenIdx >= 0 {
		i := betweenIdx + 1
		for ; i < len(lines); i++ {
			ln := lines[i]
			if strings.EqualFold(strings.TrimSpace(ln), "and") {
				break
			}
			name := cleanPartyName(ln)
			if name != "" && !strings.Contains(strings.ToLower(name), "claimant") {
				parties.Claimants = append(parties.Claimants, name)
				ev = append(ev, evidence.NewSpan(evidence.KindLine, lineLoc(i), ln))
			}
		}
		if i < len(lines) && strings.EqualFold(strings.TrimSpace(lines[i]), "and") {
			for i++; i < len(lines); i++ {
				ln := lines[i]
				if strings.Contains(strings.ToLower(ln), "grounds of decision") {
					break
				}
				name := cleanPartyName(ln)
				if name != "" && !strings.Contains(strings.ToLower(name), "defendant") {
					parties.Defendants = append(parties.Defendants, name)
					ev = append(ev, evidence.NewSpan(evidence.KindLine, lineLoc(i), ln))
				}
			}
		}
		return parties, ev
	}

	header := head(lines, vMarkerWindow)
	vIdx := -1
	for i, ln := range header {
		if vLineRe.MatchString(strings.TrimSpace(ln)) {
			vIdx = i
			break
		}
	}
	if vIdx < 0 {
		return parties, ev
	}

	// Claimant names sit above the "v" marker; collect bottom-up and keep
	// page order by prepending.
	for i := vIdx - 1; i >= 0 && i >= vIdx-vMarkerReach; i-- {
		ln := header[i]
		name := cleanPartyName(ln)
		if name == "" {
			continue
		}
		lo := strings.ToLower(name)
		if strings.Contains(lo, "grounds of decision") || strings.Contains(lo, "judgment") {
			break
		}
		if strings.Contains(lo, "claimant") || strings.Contains(lo, "defendant") {
			continue
		}
		parties.Claimants = append([]string{name}, parties.Claimants...)
		ev = append(ev, evidence.NewSpan(evidence.KindLine, lineLoc(i), ln))
		if len(parties.Claimants) >= vMarkerMaxNames {
			break
		}
	}

	for i := vIdx + 1; i < len(header) && i <= vIdx+vMarkerReach; i++ {
		ln := header[i]
		name := cleanPartyName(ln)
		if name == "" {
			continue
		}
		lo := strings.ToLower(name)
		if strings.Contains(lo, "grounds of decision") {
			break
		}
		if strings.Contains(lo, "claimant") || strings.Contains(lo, "defendant") {
			continue
		}
		parties.Defendants = append(parties.Defendants, name)
		ev = append(ev, evidence.NewSpan(evidence.KindLine, lineLoc(i), ln))
		if len(parties.Defendants) >= vMarkerMaxNames {
			break
		}
	}

	return parties, ev
}

// cleanPartyName strips ellipsis artifacts left by truncated listing text and
// collapses whitespace.
func cleanPartyName(s string) string {
	s = strings.ReplaceAll(s, "…", "")
	return strings.Join(strings.Fields(s), " ")
}
