package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/casetrace/casetrace/internal/extract"
	"github.com/casetrace/casetrace/internal/store"
)

func sampleSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
		Counts: map[store.Status]int{
			store.StatusExtracted: 3,
			store.StatusFailed:    1,
		},
		Notes: []store.NoteCount{
			{Kind: "warning", Note: "case_citation format unexpected: garbage", Count: 2},
			{Kind: "error", Note: "fetch: gave up after retries", Count: 1},
		},
		Latest: []*store.Extraction{
			{
				DocumentID:      1,
				URL:             "http://example.test/gd/s/2025_SGHC_102",
				CaseCitation:    "[2025] SGHC 102",
				DecisionDate:    "2025-06-15",
				PresidingJudges: []string{"Tan Wei Ming J"},
				Parties: extract.Parties{
					Claimants:  []string{"Lim Holdings Pte Ltd"},
					Defendants: []string{"Ong Construction Pte Ltd"},
				},
				LegalReferencesCited: []extract.LegalReference{
					{RefType: extract.RefCase, Citation: "[2019] 2 SLR 216"},
				},
			},
			{DocumentID: 2, URL: "http://example.test/gd/s/2025_SGCA_7"},
		},
	}
}

func TestBuildMarkdown_Sections(t *testing.T) {
	md := BuildMarkdown(sampleSummary())

	for _, want := range []string{
		"# Crawl summary",
		"## Documents by status",
		"| EXTRACTED | 3 |",
		"| FAILED | 1 |",
		"## Top warnings and errors",
		"case_citation format unexpected: garbage",
		"## Recent extractions",
		"**[2025] SGHC 102**",
		"Decided: 2025-06-15",
		"Judges: Tan Wei Ming J",
		"Parties: Lim Holdings Pte Ltd v Ong Construction Pte Ltd",
		"References cited: 1",
		"(no citation)",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestBuildMarkdown_Empty(t *testing.T) {
	md := BuildMarkdown(&Summary{GeneratedAt: time.Now()})
	if !strings.Contains(md, "No documents stored.") {
		t.Fatalf("empty counts not reported:\n%s", md)
	}
	if !strings.Contains(md, "None yet.") {
		t.Fatalf("empty extractions not reported:\n%s", md)
	}
	if strings.Contains(md, "Top warnings") {
		t.Fatalf("notes section present with no notes:\n%s", md)
	}
}

func TestBuildMarkdown_EscapesTableCells(t *testing.T) {
	s := &Summary{
		GeneratedAt: time.Now(),
		Notes:       []store.NoteCount{{Kind: "warning", Note: "a|b\nc", Count: 1}},
	}
	md := BuildMarkdown(s)
	if !strings.Contains(md, `a\|b c`) {
		t.Fatalf("cell not escaped:\n%s", md)
	}
}

func TestWritePDF_ProducesFile(t *testing.T) {
	md := BuildMarkdown(sampleSummary())
	out := filepath.Join(t.TempDir(), "summary.pdf")

	if err := WritePDF(md, out); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if len(data) == 0 || !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("output is not a PDF (len=%d)", len(data))
	}
}

func TestCollect_ReadsStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "cases.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	if err := st.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}

	doc := &store.Document{URL: "http://example.test/gd/s/2025_SGHC_1", Source: "elitigation", Status: store.StatusExtracted}
	if err := st.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ext := &store.Extraction{
		DocumentID:       doc.ID,
		ExtractedAt:      time.Now().UTC(),
		CaseCitation:     "[2025] SGHC 1",
		ExtractorVersion: extract.Version,
	}
	if err := st.SaveExtraction(ctx, ext); err != nil {
		t.Fatalf("save extraction: %v", err)
	}

	s, err := Collect(ctx, st, 5)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if s.Counts[store.StatusExtracted] != 1 {
		t.Fatalf("counts: %+v", s.Counts)
	}
	if len(s.Latest) != 1 || s.Latest[0].CaseCitation != "[2025] SGHC 1" {
		t.Fatalf("latest: %+v", s.Latest)
	}
}
