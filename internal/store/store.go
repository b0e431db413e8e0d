// Package store persists crawl state: one documents row per judgment URL,
// one extractions row per extracted document, and one crawl_runs row per
// crawl invocation. Two backends exist; SQLite is the default and Postgres
// serves shared deployments, selected by DSN prefix.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/casetrace/casetrace/internal/evidence"
	"github.com/casetrace/casetrace/internal/extract"
)

// Status is the document lifecycle: RECEIVED when first seen on a listing,
// FETCHED once the HTML is on disk, then EXTRACTED or FAILED. Validator
// warnings ride on an EXTRACTED row; FAILED is reserved for true runtime
// failures.
type Status string

const (
	StatusReceived  Status = "RECEIVED"
	StatusFetched   Status = "FETCHED"
	StatusExtracted Status = "EXTRACTED"
	StatusFailed    Status = "FAILED"
)

// RunStatus is the crawl_runs lifecycle.
type RunStatus string

const (
	RunRunning RunStatus = "RUNNING"
	RunDone    RunStatus = "DONE"
	RunFailed  RunStatus = "FAILED"
)

// maxNoteLen bounds warning and error text stored on a document row.
const maxNoteLen = 4000

// Document is the status/metadata row for one judgment URL.
type Document struct {
	ID        int64
	URL       string
	Source    string
	RawPath   string
	FetchedAt time.Time // zero until fetched
	Status    Status
	Warning   string
	Error     string
}

// Extraction is the field-values row for one document. Collection-valued
// fields and evidence are stored as JSON columns.
type Extraction struct {
	DocumentID           int64
	URL                  string // joined in on reads
	ExtractedAt          time.Time
	CaseCitation         string
	DecisionDate         string // ISO date, empty when absent
	PresidingJudges      []string
	Parties              extract.Parties
	LegalReferencesCited []extract.LegalReference
	Evidence             map[string][]evidence.Span
	ExtractorVersion     string
}

// FieldValue returns one registry field of the row in the registry's value
// shape, plus its evidence bucket.
func (e *Extraction) FieldValue(field string) (any, []evidence.Span) {
	ev := e.Evidence[field]
	switch field {
	case extract.FieldCaseCitation:
		return e.CaseCitation, ev
	case extract.FieldDecisionDate:
		if e.DecisionDate == "" {
			return time.Time{}, ev
		}
		d, err := time.Parse("2006-01-02", e.DecisionDate)
		if err != nil {
			return time.Time{}, ev
		}
		return d, ev
	case extract.FieldPresidingJudges:
		return e.PresidingJudges, ev
	case extract.FieldParties:
		return e.Parties, ev
	case extract.FieldLegalReferences:
		return e.LegalReferencesCited, ev
	}
	return nil, nil
}

// NewExtraction projects an assembled record into a row.
func NewExtraction(docID int64, rec extract.ExtractedCase) *Extraction {
	date := ""
	if !rec.DecisionDate.IsZero() {
		date = rec.DecisionDate.Format("2006-01-02")
	}
	return &Extraction{
		DocumentID:           docID,
		URL:                  rec.URL,
		ExtractedAt:          rec.ExtractedAt,
		CaseCitation:         rec.CaseCitation,
		DecisionDate:         date,
		PresidingJudges:      rec.PresidingJudges,
		Parties:              rec.Parties,
		LegalReferencesCited: rec.LegalReferencesCited,
		Evidence:             rec.Evidence,
		ExtractorVersion:     rec.ExtractorVersion,
	}
}

// CrawlRun is the accounting row for one crawl invocation.
type CrawlRun struct {
	ID         string // uuid
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Status     RunStatus
	Params     map[string]any
	Stats      map[string]int
	Error      string
}

// NoteCount is one grouped warning or error reason with its frequency.
type NoteCount struct {
	Kind  string // "warning" or "error"
	Note  string
	Count int
}

// Store is the persistence boundary the pipeline and CLI talk to.
type Store interface {
	// Init creates tables if they do not exist.
	Init(ctx context.Context) error
	Close() error

	// GetDocument returns the row for url, or nil when none exists.
	GetDocument(ctx context.Context, url string) (*Document, error)
	// UpsertDocument inserts or updates by URL and fills in doc.ID.
	UpsertDocument(ctx context.Context, doc *Document) error
	// SaveExtraction upserts by document ID; re-processing overwrites.
	SaveExtraction(ctx context.Context, ex *Extraction) error

	LatestExtractions(ctx context.Context, limit int) ([]*Extraction, error)
	StatusCounts(ctx context.Context) (map[Status]int, error)
	TopNotes(ctx context.Context, limit int) ([]NoteCount, error)

	CreateRun(ctx context.Context, run *CrawlRun) error
	FinishRun(ctx context.Context, run *CrawlRun) error
}

// Open selects a backend by DSN: postgres://... goes to pgx, anything else is
// treated as a SQLite file path.
func Open(ctx context.Context, dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return openPostgres(ctx, dsn)
	}
	return openSQLite(dsn)
}

// ClampNote bounds warning/error text for a document row.
func ClampNote(s string) string {
	if len(s) <= maxNoteLen {
		return s
	}
	return s[:maxNoteLen]
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

func unmarshalJSON(data string, v any) error {
	if strings.TrimSpace(data) == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}
