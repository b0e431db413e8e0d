package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresStore struct {
	pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, dsn string) (Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id BIGSERIAL PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL DEFAULT 'elitigation',
		raw_path TEXT NOT NULL DEFAULT '',
		fetched_at TIMESTAMPTZ,
		status TEXT NOT NULL DEFAULT 'RECEIVED',
		warning TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS extractions (
		id BIGSERIAL PRIMARY KEY,
		document_id BIGINT NOT NULL UNIQUE REFERENCES documents(id),
		extracted_at TIMESTAMPTZ,
		case_citation TEXT NOT NULL DEFAULT '',
		decision_date TEXT NOT NULL DEFAULT '',
		presiding_judges JSONB NOT NULL DEFAULT '[]',
		parties JSONB NOT NULL DEFAULT '{}',
		legal_references_cited JSONB NOT NULL DEFAULT '[]',
		evidence JSONB NOT NULL DEFAULT '{}',
		extractor_version TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		status TEXT NOT NULL DEFAULT 'RUNNING',
		params JSONB NOT NULL DEFAULT '{}',
		stats JSONB NOT NULL DEFAULT '{}',
		error TEXT NOT NULL DEFAULT ''
	);`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *postgresStore) GetDocument(ctx context.Context, url string) (*Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, url, source, raw_path, COALESCE(fetched_at, 'epoch'::timestamptz), status, warning, error
		FROM documents WHERE url = $1`, url)
	var doc Document
	err := row.Scan(&doc.ID, &doc.URL, &doc.Source, &doc.RawPath, &doc.FetchedAt, &doc.Status, &doc.Warning, &doc.Error)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc.FetchedAt.Unix() == 0 {
		doc.FetchedAt = time.Time{}
	}
	return &doc, nil
}

func (s *postgresStore) UpsertDocument(ctx context.Context, doc *Document) error {
	if doc.Source == "" {
		doc.Source = "elitigation"
	}
	if doc.Status == "" {
		doc.Status = StatusReceived
	}
	var fetchedAt *time.Time
	if !doc.FetchedAt.IsZero() {
		t := doc.FetchedAt.UTC()
		fetchedAt = &t
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (url, source, raw_path, fetched_at, status, warning, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (url) DO UPDATE SET
			source = EXCLUDED.source,
			raw_path = EXCLUDED.raw_path,
			fetched_at = EXCLUDED.fetched_at,
			status = EXCLUDED.status,
			warning = EXCLUDED.warning,
			error = EXCLUDED.error
		RETURNING id`,
		doc.URL, doc.Source, doc.RawPath, fetchedAt, doc.Status,
		ClampNote(doc.Warning), ClampNote(doc.Error)).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (s *postgresStore) SaveExtraction(ctx context.Context, ex *Extraction) error {
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO extractions (document_id, extracted_at, case_citation, decision_date,
			presiding_judges, parties, legal_references_cited, evidence, extractor_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (document_id) DO UPDATE SET
			extracted_at = EXCLUDED.extracted_at,
			case_citation = EXCLUDED.case_citation,
			decision_date = EXCLUDED.decision_date,
			presiding_judges = EXCLUDED.presiding_judges,
			parties = EXCLUDED.parties,
			legal_references_cited = EXCLUDED.legal_references_cited,
			evidence = EXCLUDED.evidence,
			extractor_version = EXCLUDED.extractor_version`,
		ex.DocumentID, ex.ExtractedAt.UTC(), ex.CaseCitation, ex.DecisionDate,
		judges, parties, refs, ev, ex.ExtractorVersion)
	if err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}
	return nil
}

func (s *postgresStore) LatestExtractions(ctx context.Context, limit int) ([]*Extraction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT e.document_id, d.url, e.extracted_at, e.case_citation, e.decision_date,
			e.presiding_judges::text, e.parties::text, e.legal_references_cited::text,
			e.evidence::text, e.extractor_version
		FROM extractions e JOIN documents d ON d.id = e.document_id
		ORDER BY e.extracted_at DESC, e.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("latest extractions: %w", err)
	}
	defer rows.Close()

	var out []*Extraction
	for rows.Next() {
		var ex Extraction
		var judges, parties, refs, ev string
		if err := rows.Scan(&ex.DocumentID, &ex.URL, &ex.ExtractedAt, &ex.CaseCitation, &ex.DecisionDate,
			&judges, &parties, &refs, &ev, &ex.ExtractorVersion); err != nil {
			return nil, err
		}
		if err := decodeExtractionJSON(&ex, judges, parties, refs, ev); err != nil {
			return nil, err
		}
		out = append(out, &ex)
	}
	return out, rows.Err()
}

func (s *postgresStore) StatusCounts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
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

func (s *postgresStore) TopNotes(ctx context.Context, limit int) ([]NoteCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT kind, note, COUNT(*) AS n FROM (
			SELECT 'warning' AS kind, warning AS note FROM documents WHERE warning <> ''
			UNION ALL
			SELECT 'error' AS kind, error AS note FROM documents WHERE error <> ''
		) AS notes
		GROUP BY kind, note
		ORDER BY n DESC
		LIMIT $1`, limit)
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

func (s *postgresStore) CreateRun(ctx context.Context, run *CrawlRun) error {
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO crawl_runs (id, started_at, status, params, stats, error)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.StartedAt.UTC(), run.Status, params, stats, ClampNote(run.Error))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *postgresStore) FinishRun(ctx context.Context, run *CrawlRun) error {
	stats, err := marshalJSON(run.Stats)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE crawl_runs SET finished_at = $1, status = $2, stats = $3, error = $4 WHERE id = $5`,
		run.FinishedAt.UTC(), run.Status, stats, ClampNote(run.Error), run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}
