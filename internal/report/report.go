// Package report renders a crawl summary as Markdown and, optionally, PDF.
package report

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/casetrace/casetrace/internal/store"
)

var linkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`) // [text](url)

// Summary is the data a report is built from.
type Summary struct {
	GeneratedAt time.Time
	Counts      map[store.Status]int
	Notes       []store.NoteCount
	Latest      []*store.Extraction
}

// Collect queries st for everything a report needs. latestN bounds the
// recent-extractions table.
func Collect(ctx context.Context, st store.Store, latestN int) (*Summary, error) {
	counts, err := st.StatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	notes, err := st.TopNotes(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("top notes: %w", err)
	}
	latest, err := st.LatestExtractions(ctx, latestN)
	if err != nil {
		return nil, fmt.Errorf("latest extractions: %w", err)
	}
	return &Summary{
		GeneratedAt: time.Now().UTC(),
		Counts:      counts,
		Notes:       notes,
		Latest:      latest,
	}, nil
}

// BuildMarkdown renders the summary as a small Markdown document.
func BuildMarkdown(s *Summary) string {
	var b strings.Builder

	b.WriteString("# Crawl summary\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", s.GeneratedAt.Format(time.RFC3339))

	b.WriteString("## Documents by status\n\n")
	if len(s.Counts) == 0 {
		b.WriteString("No documents stored.\n\n")
	} else {
		statuses := make([]string, 0, len(s.Counts))
		for st := range s.Counts {
			statuses = append(statuses, string(st))
		}
		sort.Strings(statuses)
		b.WriteString("| Status | Count |\n|---|---|\n")
		for _, st := range statuses {
			fmt.Fprintf(&b, "| %s | %d |\n", st, s.Counts[store.Status(st)])
		}
		b.WriteString("\n")
	}

	if len(s.Notes) > 0 {
		b.WriteString("## Top warnings and errors\n\n")
		b.WriteString("| Kind | Note | Count |\n|---|---|---|\n")
		for _, n := range s.Notes {
			fmt.Fprintf(&b, "| %s | %s | %d |\n", n.Kind, escapeCell(n.Note), n.Count)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recent extractions\n\n")
	if len(s.Latest) == 0 {
		b.WriteString("None yet.\n")
	} else {
		for _, e := range s.Latest {
			citation := e.CaseCitation
			if citation == "" {
				citation = "(no citation)"
			}
			fmt.Fprintf(&b, "- **%s** ([source](%s))\n", citation, e.URL)
			if e.DecisionDate != "" {
				fmt.Fprintf(&b, "  - Decided: %s\n", e.DecisionDate)
			}
			if len(e.PresidingJudges) > 0 {
				fmt.Fprintf(&b, "  - Judges: %s\n", strings.Join(e.PresidingJudges, "; "))
			}
			if !e.Parties.Empty() {
				fmt.Fprintf(&b, "  - Parties: %s v %s\n",
					strings.Join(e.Parties.Claimants, ", "),
					strings.Join(e.Parties.Defendants, ", "))
			}
			if n := len(e.LegalReferencesCited); n > 0 {
				fmt.Fprintf(&b, "  - References cited: %d\n", n)
			}
		}
	}

	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// WritePDF renders the Markdown summary to a minimal PDF, preserving
// paragraphs and turning Markdown links [text](url) into clickable PDF links.
// No full Markdown layout is attempted.
func WritePDF(markdown string, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	// Render line by line to avoid huge paragraphs
	scanner := bufio.NewScanner(strings.NewReader(markdown))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		s := strings.TrimSpace(scanner.Text())
		if s == "" {
			pdf.Ln(5)
			continue
		}
		if strings.HasPrefix(s, "#") {
			i := 0
			for i < len(s) && s[i] == '#' {
				i++
			}
			text := strings.TrimSpace(s[i:])
			if text == "" {
				continue
			}
			size := 14.0
			if i >= 2 {
				size = 12.0
			}
			pdf.SetFont("Helvetica", "B", size)
			pdf.CellFormat(0, 8, text, "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 11)
			continue
		}
		parts := linkRe.FindAllStringSubmatchIndex(s, -1)
		if len(parts) == 0 {
			pdf.MultiCell(0, 5, s, "", "L", false)
			continue
		}
		pos := 0
		for _, m := range parts {
			// m: [fullStart, fullEnd, textStart, textEnd, urlStart, urlEnd]
			if m[0] > pos {
				pdf.Write(5, s[pos:m[0]])
			}
			text := s[m[2]:m[3]]
			url := s[m[4]:m[5]]
			if strings.HasPrefix(url, "#") {
				pdf.Write(5, text)
			} else {
				pdf.WriteLinkString(5, text, url)
			}
			pos = m[1]
		}
		if pos < len(s) {
			pdf.Write(5, s[pos:])
		}
		pdf.Ln(6)
	}

	return pdf.OutputFileAndClose(outPath)
}
