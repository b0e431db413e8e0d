package extract

import (
	"strings"
	"time"

	"github.com/casetrace/casetrace/internal/evidence"
	"github.com/casetrace/casetrace/internal/normalize"
)

// Version tags the heuristic rule set that produced a record. Bump when a
// rule change would make stored extractions incomparable with new ones.
const Version = "v1"

// RefType classifies a cited authority.
type RefType string

const (
	RefCase    RefType = "case"
	RefStatute RefType = "statute"
	RefOther   RefType = "other"
)

// LegalReference is one cited authority, best-effort normalized.
type LegalReference struct {
	RefType  RefType        `json:"ref_type"`
	Citation string         `json:"citation"`
	Pinpoint string         `json:"pinpoint,omitempty"`
	Evidence *evidence.Span `json:"evidence,omitempty"`
}

// Key is the dedup identity of a reference.
func (r LegalReference) Key() string {
	return string(r.RefType) + "|" + strings.ToLower(r.Citation) + "|" + r.Pinpoint
}

// Parties holds the two sides of a matter as free-text names in page order.
// Duplicates are kept; names carry no identity beyond their string value.
type Parties struct {
	Claimants  []string `json:"claimants"`
	Defendants []string `json:"defendants"`
}

// Empty reports whether no party name was found on either side.
func (p Parties) Empty() bool {
	return len(p.Claimants) == 0 && len(p.Defendants) == 0
}

// ExtractedCase is the assembled record for one judgment document. A zero
// CaseCitation or DecisionDate means the extractor found nothing; absence is
// a legal state, not an error. The record is built fresh per processing
// attempt and never mutated after it is handed to persistence.
type ExtractedCase struct {
	URL string `json:"url"`

	CaseCitation         string           `json:"case_citation,omitempty"`
	DecisionDate         time.Time        `json:"decision_date,omitempty"`
	PresidingJudges      []string         `json:"presiding_judges"`
	LegalReferencesCited []LegalReference `json:"legal_references_cited"`
	Parties              Parties          `json:"parties"`

	// Evidence keeps one provenance bucket per field name. Buckets may be
	// empty even when a value is present; fallback paths do not always
	// record spans.
	Evidence map[string][]evidence.Span `json:"evidence"`

	ExtractedAt      time.Time `json:"extracted_at"`
	ExtractorVersion string    `json:"extractor_version"`
}

// Assemble runs every extractor over doc and wraps the results into a record
// stamped at now. Each field value comes from exactly one extractor call.
func Assemble(doc normalize.Document, now time.Time) ExtractedCase {
	citation, evCitation := CaseCitation(doc)
	date, evDate := DecisionDate(doc)
	judges, evJudges := PresidingJudges(doc)
	parties, evParties := PartyNames(doc)
	refs, evRefs := LegalReferences(doc)

	return ExtractedCase{
		URL:                  doc.URL,
		CaseCitation:         citation,
		DecisionDate:         date,
		PresidingJudges:      judges,
		LegalReferencesCited: refs,
		Parties:              parties,
		Evidence: map[string][]evidence.Span{
			FieldCaseCitation:    evCitation,
			FieldDecisionDate:    evDate,
			FieldPresidingJudges: evJudges,
			FieldParties:         evParties,
			FieldLegalReferences: evRefs,
		},
		ExtractedAt:      now.UTC(),
		ExtractorVersion: Version,
	}
}
