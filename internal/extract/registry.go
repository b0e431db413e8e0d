package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/casetrace/casetrace/internal/evidence"
	"github.com/casetrace/casetrace/internal/normalize"
)

// Supported field names. This set is a stable contract for every caller,
// including the command-line surface.
const (
	FieldCaseCitation    = "case_citation"
	FieldDecisionDate    = "decision_date"
	FieldPresidingJudges = "presiding_judges"
	FieldParties         = "parties"
	FieldLegalReferences = "legal_references_cited"
)

// Fields returns the supported field names in presentation order.
func Fields() []string {
	return []string{
		FieldCaseCitation,
		FieldDecisionDate,
		FieldPresidingJudges,
		FieldParties,
		FieldLegalReferences,
	}
}

// Result is the uniform per-field outcome: the extracted value and the spans
// that justify it. Value holds the field's natural type (string, time.Time,
// []string, Parties, or []LegalReference); absence is the type's zero value.
type Result struct {
	Value    any
	Evidence []evidence.Span
}

// UnknownFieldError reports every unrecognized name in a request, together
// with the supported set, so the caller can fix the whole request at once.
type UnknownFieldError struct {
	Unknown   []string
	Supported []string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field(s): %s (supported: %s)",
		strings.Join(e.Unknown, ", "), strings.Join(e.Supported, ", "))
}

// ExtractAll runs every extractor over doc. Extractors are independent and
// stateless; nothing here depends on their order.
func ExtractAll(doc normalize.Document) map[string]Result {
	citation, evCitation := CaseCitation(doc)
	date, evDate := DecisionDate(doc)
	judges, evJudges := PresidingJudges(doc)
	parties, evParties := PartyNames(doc)
	refs, evRefs := LegalReferences(doc)

	return map[string]Result{
		FieldCaseCitation:    {Value: citation, Evidence: evCitation},
		FieldDecisionDate:    {Value: date, Evidence: evDate},
		FieldPresidingJudges: {Value: judges, Evidence: evJudges},
		FieldParties:         {Value: parties, Evidence: evParties},
		FieldLegalReferences: {Value: refs, Evidence: evRefs},
	}
}

// ExtractNamed returns the requested subset of ExtractAll. Every name is
// validated up front; any unknown name fails the whole request before any
// extraction output is returned. Extractors are cheap, so this does not
// bother invoking only the needed ones.
func ExtractNamed(doc normalize.Document, names []string) (map[string]Result, error) {
	all := ExtractAll(doc)
	var unknown []string
	for _, n := range names {
		if _, ok := all[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return nil, &UnknownFieldError{Unknown: unknown, Supported: Fields()}
	}
	out := make(map[string]Result, len(names))
	for _, n := range names {
		out[n] = all[n]
	}
	return out, nil
}

// FormatValue renders a field value for human-readable output.
func FormatValue(field string, value any) string {
	switch field {
	case FieldDecisionDate:
		d, ok := value.(time.Time)
		if !ok || d.IsZero() {
			return ""
		}
		return d.Format("2006-01-02")
	case FieldPresidingJudges:
		js, _ := value.([]string)
		return strings.Join(js, "; ")
	case FieldParties:
		p, _ := value.(Parties)
		if p.Empty() {
			return ""
		}
		c := strings.Join(p.Claimants, "; ")
		d := strings.Join(p.Defendants, "; ")
		if c == "" {
			c = "-"
		}
		if d == "" {
			d = "-"
		}
		return fmt.Sprintf("Claimants: %s | Defendants: %s", c, d)
	case FieldLegalReferences:
		refs, _ := value.([]LegalReference)
		if len(refs) == 0 {
			return "0 refs"
		}
		var first []string
		for _, r := range refs {
			if len(first) >= 3 {
				break
			}
			if c := strings.TrimSpace(r.Citation); c != "" {
				first = append(first, c)
			}
		}
		return fmt.Sprintf("%d refs | %s", len(refs), strings.Join(first, ", "))
	default:
		s, _ := value.(string)
		return s
	}
}
