package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // migrate postgres driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nao1215/serpscan/internal/model"
	"github.com/nao1215/serpscan/migrations"
)

// PgStore provides PostgreSQL-based storage for keywords and crawl runs.
// It is used when a database URL is configured, typically by `serpscan serve`.
type PgStore struct {
	// pool is the pgx connection pool.
	pool *pgxpool.Pool
}

// NewPgStore connects to PostgreSQL and verifies the connection.
func NewPgStore(ctx context.Context, connString string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PgStore{pool: pool}, nil
}

// RunMigrations applies all embedded SQL migrations.
func (s *PgStore) RunMigrations(connString string) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Close closes the connection pool.
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateKeyword validates and inserts a keyword.
func (s *PgStore) CreateKeyword(ctx context.Context, kw *model.Keyword) error {
	if err := kw.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO keywords (` + keywordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		kw.ID,
		kw.Query,
		kw.Category,
		nonNil(kw.TargetNames),
		nonNil(kw.TargetDomains),
		string(kw.Status),
		kw.Notes,
		kw.CreatedAt,
		kw.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %q", ErrDuplicateKeyword, kw.Query)
		}
		return fmt.Errorf("failed to insert keyword: %w", err)
	}
	return nil
}

// GetKeyword returns one keyword or ErrKeywordNotFound.
func (s *PgStore) GetKeyword(ctx context.Context, id uuid.UUID) (*model.Keyword, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+keywordColumns+` FROM keywords WHERE id = $1`, id)
	kw, err := scanPgKeyword(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeywordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get keyword: %w", err)
	}
	return kw, nil
}

// ListKeywords returns all keywords, oldest first.
func (s *PgStore) ListKeywords(ctx context.Context) ([]*model.Keyword, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+keywordColumns+` FROM keywords ORDER BY created_at, query`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	return scanPgKeywords(rows)
}

// ListActiveKeywords returns active keywords, oldest first.
func (s *PgStore) ListActiveKeywords(ctx context.Context) ([]*model.Keyword, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+keywordColumns+` FROM keywords WHERE status = $1 ORDER BY created_at, query`,
		string(model.KeywordActive),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	return scanPgKeywords(rows)
}

// SetKeywordStatus changes a keyword's status and touches updated_at.
func (s *PgStore) SetKeywordStatus(ctx context.Context, id uuid.UUID, status model.KeywordStatus) error {
	if _, err := model.ParseKeywordStatus(string(status)); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE keywords SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update keyword status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeywordNotFound
	}
	return nil
}

// UpdateKeyword overwrites the editable fields of a stored keyword.
func (s *PgStore) UpdateKeyword(ctx context.Context, kw *model.Keyword) error {
	if err := kw.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE keywords
		SET query = $1, category = $2, target_names = $3, target_domains = $4,
			status = $5, notes = $6, updated_at = $7
		WHERE id = $8
	`,
		kw.Query,
		kw.Category,
		nonNil(kw.TargetNames),
		nonNil(kw.TargetDomains),
		string(kw.Status),
		kw.Notes,
		now,
		kw.ID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %q", ErrDuplicateKeyword, kw.Query)
		}
		return fmt.Errorf("failed to update keyword: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeywordNotFound
	}
	kw.UpdatedAt = now
	return nil
}

// DeleteKeyword removes a keyword and, by cascade, its runs.
func (s *PgStore) DeleteKeyword(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM keywords WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete keyword: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeywordNotFound
	}
	return nil
}

func scanPgKeyword(row pgx.Row) (*model.Keyword, error) {
	var (
		kw     model.Keyword
		status string
	)
	err := row.Scan(
		&kw.ID,
		&kw.Query,
		&kw.Category,
		&kw.TargetNames,
		&kw.TargetDomains,
		&status,
		&kw.Notes,
		&kw.CreatedAt,
		&kw.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	kw.Status = model.KeywordStatus(status)
	kw.TargetNames = nonNil(kw.TargetNames)
	kw.TargetDomains = nonNil(kw.TargetDomains)
	return &kw, nil
}

func scanPgKeywords(rows pgx.Rows) ([]*model.Keyword, error) {
	defer rows.Close()

	keywords := make([]*model.Keyword, 0)
	for rows.Next() {
		kw, err := scanPgKeyword(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// CreateRun inserts a pending run.
func (s *PgStore) CreateRun(ctx context.Context, run *model.CrawlRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO crawl_runs (id, keyword_id, query, status, started_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, run.KeywordID, run.Query, string(run.Status), run.StartedAt, run.Notes)
	if err != nil {
		return fmt.Errorf("failed to create crawl run: %w", err)
	}
	return nil
}

// AppendEntries adds classified entries to a run in one batch.
func (s *PgStore) AppendEntries(ctx context.Context, runID uuid.UUID, entries []model.ScoredEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO serp_entries (id, run_id, page, rank, title, display_url, landing_url, is_match, match_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, uuid.New(), runID, e.Page, e.Rank, e.Title, e.DisplayURL, e.LandingURL, e.IsMatch, e.Reason)
	}

	return s.sendBatch(ctx, batch, "entries")
}

// AppendChecks adds HTTPS checks to a run in one batch.
func (s *PgStore) AppendChecks(ctx context.Context, runID uuid.UUID, checks []model.HTTPSCheck) error {
	if len(checks) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var next int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(seq), 0) FROM http_checks WHERE run_id = $1`, runID,
		).Scan(&next); err != nil {
			return fmt.Errorf("failed to read check sequence: %w", err)
		}

		batch := &pgx.Batch{}
		for i, c := range checks {
			batch.Queue(`
				INSERT INTO http_checks (id, run_id, seq, url, protocol, status_code, ssl_valid, ssl_error,
					checked_at, tls_version, cert_issuer, cert_not_after)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			`, uuid.New(), runID, next+i+1, c.URL, c.Protocol, c.StatusCode, c.SSLValid, c.SSLError,
				c.CheckedAt, c.TLSVersion, c.CertIssuer, c.CertNotAfter)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert checks: %w", err)
		}
		return nil
	})
}

func (s *PgStore) sendBatch(ctx context.Context, batch *pgx.Batch, what string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert %s: %w", what, err)
		}
		return nil
	})
}

// MarkRunSuccess stores the terminal success state of run.
func (s *PgStore) MarkRunSuccess(ctx context.Context, run *model.CrawlRun) error {
	if run.Status != model.RunSuccess || run.CompletedAt == nil {
		return fmt.Errorf("mark success: run %s is %s", run.ID, run.Status)
	}

	var issues *string
	if len(run.HTTPSIssues) > 0 {
		data, err := json.Marshal(run.HTTPSIssues)
		if err != nil {
			return fmt.Errorf("failed to serialize https issues: %w", err)
		}
		encoded := string(data)
		issues = &encoded
	}

	return s.finalizeRun(ctx, run.ID, `
		UPDATE crawl_runs SET status = $1, completed_at = $2, flag = $3, https_issues = $4
		WHERE id = $5 AND status = $6
	`, string(model.RunSuccess), *run.CompletedAt, string(run.Flag), issues, run.ID, string(model.RunPending))
}

// MarkRunFailure stores the terminal failure state of run.
func (s *PgStore) MarkRunFailure(ctx context.Context, run *model.CrawlRun) error {
	if run.Status != model.RunFailure || run.CompletedAt == nil {
		return fmt.Errorf("mark failure: run %s is %s", run.ID, run.Status)
	}

	return s.finalizeRun(ctx, run.ID, `
		UPDATE crawl_runs SET status = $1, completed_at = $2, notes = $3, flag = NULL, https_issues = NULL
		WHERE id = $4 AND status = $5
	`, string(model.RunFailure), *run.CompletedAt, run.Notes, run.ID, string(model.RunPending))
}

func (s *PgStore) finalizeRun(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to finalize crawl run: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM crawl_runs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read crawl run status: %w", err)
	}
	return model.ErrRunFinalized
}

// GetRun returns a run with its entries and checks.
func (s *PgStore) GetRun(ctx context.Context, id uuid.UUID) (*model.CrawlRun, error) {
	run, err := scanPgRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM crawl_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT page, rank, title, display_url, landing_url, is_match, match_reason
		FROM serp_entries WHERE run_id = $1 ORDER BY rank
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	run.Entries, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ScoredEntry, error) {
		var e model.ScoredEntry
		err := row.Scan(&e.Page, &e.Rank, &e.Title, &e.DisplayURL, &e.LandingURL, &e.IsMatch, &e.Reason)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan entries: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT url, protocol, status_code, ssl_valid, ssl_error, checked_at, tls_version, cert_issuer, cert_not_after
		FROM http_checks WHERE run_id = $1 ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query checks: %w", err)
	}
	run.Checks, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.HTTPSCheck, error) {
		var c model.HTTPSCheck
		err := row.Scan(&c.URL, &c.Protocol, &c.StatusCode, &c.SSLValid, &c.SSLError, &c.CheckedAt,
			&c.TLSVersion, &c.CertIssuer, &c.CertNotAfter)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan checks: %w", err)
	}
	if run.Entries == nil {
		run.Entries = make([]model.ScoredEntry, 0)
	}
	if run.Checks == nil {
		run.Checks = make([]model.HTTPSCheck, 0)
	}

	return run, nil
}

// RecentRuns returns up to limit runs of a keyword, newest first.
func (s *PgStore) RecentRuns(ctx context.Context, keywordID uuid.UUID, limit int) ([]*model.CrawlRun, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+runColumns+` FROM crawl_runs
		WHERE keyword_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, keywordID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*model.CrawlRun, 0)
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestSuccessfulRun returns the most recently completed successful run.
func (s *PgStore) LatestSuccessfulRun(ctx context.Context, keywordID uuid.UUID) (*model.CrawlRun, error) {
	run, err := scanPgRun(s.pool.QueryRow(ctx, `
		SELECT `+runColumns+` FROM crawl_runs
		WHERE keyword_id = $1 AND status = $2
		ORDER BY completed_at DESC
		LIMIT 1
	`, keywordID, string(model.RunSuccess)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

func scanPgRun(row pgx.Row) (*model.CrawlRun, error) {
	var (
		run         model.CrawlRun
		status      string
		completedAt *time.Time
		flag        *string
		issues      []byte
	)
	if err := row.Scan(&run.ID, &run.KeywordID, &run.Query, &status, &run.StartedAt, &completedAt, &flag, &issues, &run.Notes); err != nil {
		return nil, err
	}

	run.Status = model.RunStatus(status)
	run.CompletedAt = completedAt
	if flag != nil {
		run.Flag = model.Flag(*flag)
	}
	var err error
	if run.HTTPSIssues, err = unmarshalIssues(issues); err != nil {
		return nil, err
	}
	run.Entries = make([]model.ScoredEntry, 0)
	run.Checks = make([]model.HTTPSCheck, 0)
	return &run, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
