package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

func openSQLite(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc's driver is not safe for concurrent writes over multiple
	// connections; serialize through one.
	db.SetMaxOpenConns(1)
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL DEFAULT 'elitigation',
		raw_path TEXT NOT NULL DEFAULT '',
		fetched_at TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'RECEIVED',
		warning TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS extractions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER NOT NULL UNIQUE REFERENCES documents(id),
		extracted_at TEXT NOT NULL DEFAULT '',
		case_citation TEXT NOT NULL DEFAULT '',
		decision_date TEXT NOT NULL DEFAULT '',
		presiding_judges TEXT NOT NULL DEFAULT '[]',
		parties TEXT NOT NULL DEFAULT '{}',
		legal_references_cited TEXT NOT NULL DEFAULT '[]',
		evidence TEXT NOT NULL DEFAULT '{}',
		extractor_version TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL DEFAULT '',
		finished_at TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'RUNNING',
		params TEXT NOT NULL DEFAULT '{}',
		stats TEXT NOT NULL DEFAULT '{}',
		error TEXT NOT NULL DEFAULT ''
	);`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) GetDocument(ctx context.Context, url string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, source, raw_path, fetched_at, status, warning, error
		FROM documents WHERE url = ?`, url)
	var doc Document
	var fetchedAt string
	err := row.Scan(&doc.ID, &doc.URL, &doc.Source, &doc.RawPath, &fetchedAt, &doc.Status, &doc.Warning, &doc.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc.FetchedAt = parseTime(fetchedAt)
	return &doc, nil
}

func (s *sqliteStore) UpsertDocument(ctx context.Context, doc *Document) error {
	if doc.Source == "" {
		doc.Source = "elitigation"
	}
	if doc.Status == "" {
		doc.Status = StatusReceived
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (url, source, raw_path, fetched_at, status, warning, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			source = excluded.source,
			raw_path = excluded.raw_path,
			fetched_at = excluded.fetched_at,
			status = excluded.status,
			warning = excluded.warning,
			error = excluded.error`,
		doc.URL, doc.Source, doc.RawPath, formatTime(doc.FetchedAt), doc.Status,
		ClampNote(doc.Warning), ClampNote(doc.Error))
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return s.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE url = ?`, doc.URL).Scan(&doc.ID)
}

func (s *sqliteStore) SaveExtraction(ctx context.Context, ex *Extraction) error {
	judges, err := marshalJSON(ex.PresidingJudges)
	if err != nil {
		return err
	}
	parties, err := marshalJSON(ex.Parties)
	if err != nil {
		return err
	}
	refs, err := marshalJSON(ex.LegalReferencesCited)
	if err != nil {
		return err
	}
	ev, err := marshalJSON(ex.Evidence)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO extractions (document_id, extracted_at, case_citation, decision_date,
			presiding_judges, parties, legal_references_cited, evidence, extractor_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			extracted_at = excluded.extracted_at,
			case_citation = excluded.case_citation,
			decision_date = excluded.decision_date,
			presiding_judges = excluded.presiding_judges,
			parties = excluded.parties,
			legal_references_cited = excluded.legal_references_cited,
			evidence = excluded.evidence,
			extractor_version = excluded.extractor_version`,
		ex.DocumentID, formatTime(ex.ExtractedAt), ex.CaseCitation, ex.DecisionDate,
		judges, parties, refs, ev, ex.ExtractorVersion)
	if err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}
	return nil
}

func (s *sqliteStore) LatestExtractions(ctx context.Context, limit int) ([]*Extraction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.document_id, d.url, e.extracted_at, e.case_citation, e.decision_date,
			e.presiding_judges, e.parties, e.legal_references_cited, e.evidence, e.extractor_version
		FROM extractions e JOIN documents d ON d.id = e.document_id
		ORDER BY e.extracted_at DESC, e.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("latest extractions: %w", err)
	}
	defer rows.Close()

	var out []*Extraction
	for rows.Next() {
		var ex Extraction
		var extractedAt, judges, parties, refs, ev string
		if err := rows.Scan(&ex.DocumentID, &ex.URL, &extractedAt, &ex.CaseCitation, &ex.DecisionDate,
			&judges, &parties, &refs, &ev, &ex.ExtractorVersion); err != nil {
			return nil, err
		}
		ex.ExtractedAt = parseTime(extractedAt)
		if err := decodeExtractionJSON(&ex, judges, parties, refs, ev); err != nil {
			return nil, err
		}
		out = append(out, &ex)
	}
	return out, rows.Err()
}

func (s *sqliteStore) StatusCounts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()
	counts := map[Status]int{}
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

func (s *sqliteStore) TopNotes(ctx context.Context, limit int) ([]NoteCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, note, COUNT(*) AS n FROM (
			SELECT 'warning' AS kind, warning AS note FROM documents WHERE warning <> ''
			UNION ALL
			SELECT 'error' AS kind, error AS note FROM documents WHERE error <> ''
		) AS notes
		GROUP BY kind, note
		ORDER BY n DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top notes: %w", err)
	}
	defer rows.Close()
	var out []NoteCount
	for rows.Next() {
		var nc NoteCount
		if err := rows.Scan(&nc.Kind, &nc.Note, &nc.Count); err != nil {
			return nil, err
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CreateRun(ctx context.Context, run *CrawlRun) error {
	params, err := marshalJSON(run.Params)
	if err != nil {
		return err
	}
	stats, err := marshalJSON(run.Stats)
	if err != nil {
		return err
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO crawl_runs (id, started_at, finished_at, status, params, stats, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Status, params, stats, ClampNote(run.Error))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *sqliteStore) FinishRun(ctx context.Context, run *CrawlRun) error {
	stats, err := marshalJSON(run.Stats)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE crawl_runs SET finished_at = ?, status = ?, stats = ?, error = ? WHERE id = ?`,
		formatTime(run.FinishedAt), run.Status, stats, ClampNote(run.Error), run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func decodeExtractionJSON(ex *Extraction, judges, parties, refs, ev string) error {
	if err := unmarshalJSON(judges, &ex.PresidingJudges); err != nil {
		return fmt.Errorf("decode judges: %w", err)
	}
	if err := unmarshalJSON(parties, &ex.Parties); err != nil {
		return fmt.Errorf("decode parties: %w", err)
	}
	if err := unmarshalJSON(refs, &ex.LegalReferencesCited); err != nil {
		return fmt.Errorf("decode references: %w", err)
	}
	if err := unmarshalJSON(ev, &ex.Evidence); err != nil {
		return fmt.Errorf("decode evidence: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
