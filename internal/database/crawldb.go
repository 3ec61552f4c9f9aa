package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite" // SQLite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nao1215/serpscan/internal/model"
)

// DBFileName is the SQLite file created inside the database directory.
const DBFileName = "serpscan.db"

// timeLayout is the fixed-width UTC layout used for stored timestamps.
// Fixed width keeps lexical ORDER BY equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// CrawlDB provides SQLite-based storage for keywords and crawl runs.
//
// Design decision: We use a single database file for the registry and all
// run history. Runs reference keywords by foreign key, and the export reads
// both in one place.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error
// wrapping ErrDatabaseNotFound is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s (use CreateIfNotExists option to create)", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw prevents creating new files, mode=rwc allows creation.
	// Foreign keys are enabled per connection through the _pragma parameter.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Keywords are the tracked search queries
	CREATE TABLE IF NOT EXISTS keywords (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL DEFAULT '',
		target_names TEXT NOT NULL DEFAULT '[]',
		target_domains TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_keywords_status ON keywords(status);

	-- Crawl runs hold one crawl attempt of a keyword
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		keyword_id TEXT NOT NULL REFERENCES keywords(id) ON DELETE CASCADE,
		query TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		flag TEXT,
		https_issues TEXT,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_keyword ON crawl_runs(keyword_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON crawl_runs(status);

	-- SERP entries are the classified results of a run
	CREATE TABLE IF NOT EXISTS serp_entries (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		page INTEGER NOT NULL,
		rank INTEGER NOT NULL,
		title TEXT NOT NULL,
		display_url TEXT NOT NULL,
		landing_url TEXT NOT NULL,
		is_match INTEGER NOT NULL DEFAULT 0,
		match_reason TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_entries_run ON serp_entries(run_id, rank);

	-- HTTP checks are the audits of matched landing URLs
	CREATE TABLE IF NOT EXISTS http_checks (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		protocol TEXT NOT NULL,
		status_code INTEGER,
		ssl_valid INTEGER,
		ssl_error TEXT NOT NULL DEFAULT '',
		checked_at TEXT NOT NULL,
		tls_version TEXT NOT NULL DEFAULT '',
		cert_issuer TEXT NOT NULL DEFAULT '',
		cert_not_after TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_checks_run ON http_checks(run_id, seq);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// keywordColumns is the standard column list for keyword queries.
const keywordColumns = `id, query, category, target_names, target_domains, status, notes, created_at, updated_at`

// CreateKeyword validates and inserts a keyword.
func (cdb *CrawlDB) CreateKeyword(ctx context.Context, kw *model.Keyword) error {
	if err := kw.Validate(); err != nil {
		return err
	}

	names, err := marshalList(kw.TargetNames)
	if err != nil {
		return err
	}
	domains, err := marshalList(kw.TargetDomains)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO keywords (` + keywordColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = cdb.db.ExecContext(ctx, query,
		kw.ID.String(),
		kw.Query,
		kw.Category,
		names,
		domains,
		string(kw.Status),
		kw.Notes,
		formatTime(kw.CreatedAt),
		formatTime(kw.UpdatedAt),
	)
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return fmt.Errorf("%w: %q", ErrDuplicateKeyword, kw.Query)
		}
		return fmt.Errorf("failed to insert keyword: %w", err)
	}

	return nil
}

// GetKeyword returns one keyword or ErrKeywordNotFound.
func (cdb *CrawlDB) GetKeyword(ctx context.Context, id uuid.UUID) (*model.Keyword, error) {
	query := `SELECT ` + keywordColumns + ` FROM keywords WHERE id = ?`

	kw, err := scanKeyword(cdb.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeywordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get keyword: %w", err)
	}
	return kw, nil
}

// ListKeywords returns all keywords, oldest first.
func (cdb *CrawlDB) ListKeywords(ctx context.Context) ([]*model.Keyword, error) {
	return cdb.queryKeywords(ctx, `SELECT `+keywordColumns+` FROM keywords ORDER BY created_at, query`)
}

// ListActiveKeywords returns active keywords, oldest first.
func (cdb *CrawlDB) ListActiveKeywords(ctx context.Context) ([]*model.Keyword, error) {
	return cdb.queryKeywords(ctx,
		`SELECT `+keywordColumns+` FROM keywords WHERE status = ? ORDER BY created_at, query`,
		string(model.KeywordActive),
	)
}

// SetKeywordStatus changes a keyword's status and touches updated_at.
func (cdb *CrawlDB) SetKeywordStatus(ctx context.Context, id uuid.UUID, status model.KeywordStatus) error {
	if _, err := model.ParseKeywordStatus(string(status)); err != nil {
		return err
	}

	result, err := cdb.db.ExecContext(ctx,
		`UPDATE keywords SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update keyword status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update keyword status: %w", err)
	}
	if n == 0 {
		return ErrKeywordNotFound
	}
	return nil
}

// UpdateKeyword overwrites the editable fields of a stored keyword.
func (cdb *CrawlDB) UpdateKeyword(ctx context.Context, kw *model.Keyword) error {
	if err := kw.Validate(); err != nil {
		return err
	}

	names, err := marshalList(kw.TargetNames)
	if err != nil {
		return err
	}
	domains, err := marshalList(kw.TargetDomains)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := cdb.db.ExecContext(ctx, `
	UPDATE keywords
	SET query = ?, category = ?, target_names = ?, target_domains = ?, status = ?, notes = ?, updated_at = ?
	WHERE id = ?
	`,
		kw.Query,
		kw.Category,
		names,
		domains,
		string(kw.Status),
		kw.Notes,
		formatTime(now),
		kw.ID.String(),
	)
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return fmt.Errorf("%w: %q", ErrDuplicateKeyword, kw.Query)
		}
		return fmt.Errorf("failed to update keyword: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update keyword: %w", err)
	}
	if n == 0 {
		return ErrKeywordNotFound
	}
	kw.UpdatedAt = now
	return nil
}

// DeleteKeyword removes a keyword. Its runs, entries and checks go with it
// through ON DELETE CASCADE.
func (cdb *CrawlDB) DeleteKeyword(ctx context.Context, id uuid.UUID) error {
	result, err := cdb.db.ExecContext(ctx, `DELETE FROM keywords WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete keyword: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete keyword: %w", err)
	}
	if n == 0 {
		return ErrKeywordNotFound
	}
	return nil
}

func (cdb *CrawlDB) queryKeywords(ctx context.Context, query string, args ...any) ([]*model.Keyword, error) {
	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	keywords := make([]*model.Keyword, 0)
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}

	return keywords, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanKeyword(row rowScanner) (*model.Keyword, error) {
	var (
		kw                 model.Keyword
		id, status         string
		names, domains     string
		createdAt, updated string
	)

	if err := row.Scan(&id, &kw.Query, &kw.Category, &names, &domains, &status, &kw.Notes, &createdAt, &updated); err != nil {
		return nil, err
	}

	var err error
	if kw.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid keyword id %q: %w", id, err)
	}
	if kw.TargetNames, err = unmarshalList(names); err != nil {
		return nil, err
	}
	if kw.TargetDomains, err = unmarshalList(domains); err != nil {
		return nil, err
	}
	kw.Status = model.KeywordStatus(status)
	kw.CreatedAt = parseTimestamp(createdAt)
	kw.UpdatedAt = parseTimestamp(updated)

	return &kw, nil
}

// runColumns is the standard column list for crawl run queries.
const runColumns = `id, keyword_id, query, status, started_at, completed_at, flag, https_issues, notes`

// CreateRun inserts a pending run.
func (cdb *CrawlDB) CreateRun(ctx context.Context, run *model.CrawlRun) error {
	query := `
	INSERT INTO crawl_runs (id, keyword_id, query, status, started_at, notes)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := cdb.db.ExecContext(ctx, query,
		run.ID.String(),
		run.KeywordID.String(),
		run.Query,
		string(run.Status),
		formatTime(run.StartedAt),
		run.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to create crawl run: %w", err)
	}
	return nil
}

// AppendEntries adds classified entries to a run in one transaction.
func (cdb *CrawlDB) AppendEntries(ctx context.Context, runID uuid.UUID, entries []model.ScoredEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return cdb.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO serp_entries (id, run_id, page, rank, title, display_url, landing_url, is_match, match_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare entry insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx,
				uuid.NewString(),
				runID.String(),
				e.Page,
				e.Rank,
				e.Title,
				e.DisplayURL,
				e.LandingURL,
				e.IsMatch,
				e.Reason,
			); err != nil {
				return fmt.Errorf("failed to insert entry rank %d: %w", e.Rank, err)
			}
		}
		return nil
	})
}

// AppendChecks adds HTTPS checks to a run in one transaction.
// Checks keep their order through a per-run sequence number.
func (cdb *CrawlDB) AppendChecks(ctx context.Context, runID uuid.UUID, checks []model.HTTPSCheck) error {
	if len(checks) == 0 {
		return nil
	}

	return cdb.withTx(ctx, func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) FROM http_checks WHERE run_id = ?`, runID.String(),
		).Scan(&next); err != nil {
			return fmt.Errorf("failed to read check sequence: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO http_checks (id, run_id, seq, url, protocol, status_code, ssl_valid, ssl_error,
			checked_at, tls_version, cert_issuer, cert_not_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare check insert: %w", err)
		}
		defer stmt.Close()

		for i, c := range checks {
			var notAfter sql.NullString
			if c.CertNotAfter != nil {
				notAfter = sql.NullString{String: formatTime(*c.CertNotAfter), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				uuid.NewString(),
				runID.String(),
				next+i+1,
				c.URL,
				c.Protocol,
				nullInt(c.StatusCode),
				nullBool(c.SSLValid),
				c.SSLError,
				formatTime(c.CheckedAt),
				c.TLSVersion,
				c.CertIssuer,
				notAfter,
			); err != nil {
				return fmt.Errorf("failed to insert check for %s: %w", c.URL, err)
			}
		}
		return nil
	})
}

// MarkRunSuccess stores the terminal success state of run.
func (cdb *CrawlDB) MarkRunSuccess(ctx context.Context, run *model.CrawlRun) error {
	if run.Status != model.RunSuccess || run.CompletedAt == nil {
		return fmt.Errorf("mark success: run %s is %s", run.ID, run.Status)
	}

	issues, err := marshalIssues(run.HTTPSIssues)
	if err != nil {
		return err
	}

	return cdb.finalizeRun(ctx, run.ID, `
	UPDATE crawl_runs SET status = ?, completed_at = ?, flag = ?, https_issues = ?
	WHERE id = ? AND status = ?
	`,
		string(model.RunSuccess),
		formatTime(*run.CompletedAt),
		string(run.Flag),
		issues,
		run.ID.String(),
		string(model.RunPending),
	)
}

// MarkRunFailure stores the terminal failure state of run.
func (cdb *CrawlDB) MarkRunFailure(ctx context.Context, run *model.CrawlRun) error {
	if run.Status != model.RunFailure || run.CompletedAt == nil {
		return fmt.Errorf("mark failure: run %s is %s", run.ID, run.Status)
	}

	return cdb.finalizeRun(ctx, run.ID, `
	UPDATE crawl_runs SET status = ?, completed_at = ?, notes = ?, flag = NULL, https_issues = NULL
	WHERE id = ? AND status = ?
	`,
		string(model.RunFailure),
		formatTime(*run.CompletedAt),
		run.Notes,
		run.ID.String(),
		string(model.RunPending),
	)
}

// finalizeRun executes a pending-only update and reports why nothing changed.
func (cdb *CrawlDB) finalizeRun(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	result, err := cdb.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to finalize crawl run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finalize crawl run: %w", err)
	}
	if n > 0 {
		return nil
	}

	var status string
	err = cdb.db.QueryRowContext(ctx, `SELECT status FROM crawl_runs WHERE id = ?`, id.String()).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read crawl run status: %w", err)
	}
	return model.ErrRunFinalized
}

// GetRun returns a run with its entries and checks.
func (cdb *CrawlDB) GetRun(ctx context.Context, id uuid.UUID) (*model.CrawlRun, error) {
	run, err := scanRun(cdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM crawl_runs WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}

	if run.Entries, err = cdb.runEntries(ctx, id); err != nil {
		return nil, err
	}
	if run.Checks, err = cdb.runChecks(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// RecentRuns returns up to limit runs of a keyword, newest first.
func (cdb *CrawlDB) RecentRuns(ctx context.Context, keywordID uuid.UUID, limit int) ([]*model.CrawlRun, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := cdb.db.QueryContext(ctx, `
	SELECT `+runColumns+` FROM crawl_runs
	WHERE keyword_id = ?
	ORDER BY started_at DESC, rowid DESC
	LIMIT ?
	`, keywordID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*model.CrawlRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// LatestSuccessfulRun returns the most recently completed successful run.
func (cdb *CrawlDB) LatestSuccessfulRun(ctx context.Context, keywordID uuid.UUID) (*model.CrawlRun, error) {
	run, err := scanRun(cdb.db.QueryRowContext(ctx, `
	SELECT `+runColumns+` FROM crawl_runs
	WHERE keyword_id = ? AND status = ?
	ORDER BY completed_at DESC, rowid DESC
	LIMIT 1
	`, keywordID.String(), string(model.RunSuccess)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

func scanRun(row rowScanner) (*model.CrawlRun, error) {
	var (
		run               model.CrawlRun
		id, keywordID     string
		status, startedAt string
		completedAt, flag sql.NullString
		issuesJSON        sql.NullString
	)

	if err := row.Scan(&id, &keywordID, &run.Query, &status, &startedAt, &completedAt, &flag, &issuesJSON, &run.Notes); err != nil {
		return nil, err
	}

	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	if run.KeywordID, err = uuid.Parse(keywordID); err != nil {
		return nil, fmt.Errorf("invalid keyword id %q: %w", keywordID, err)
	}
	run.Status = model.RunStatus(status)
	run.StartedAt = parseTimestamp(startedAt)
	if completedAt.Valid {
		t := parseTimestamp(completedAt.String)
		run.CompletedAt = &t
	}
	run.Flag = model.Flag(flag.String)
	if run.HTTPSIssues, err = unmarshalIssues([]byte(issuesJSON.String)); err != nil {
		return nil, err
	}
	run.Entries = make([]model.ScoredEntry, 0)
	run.Checks = make([]model.HTTPSCheck, 0)

	return &run, nil
}

func (cdb *CrawlDB) runEntries(ctx context.Context, runID uuid.UUID) ([]model.ScoredEntry, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT page, rank, title, display_url, landing_url, is_match, match_reason
	FROM serp_entries WHERE run_id = ? ORDER BY rank
	`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.ScoredEntry, 0)
	for rows.Next() {
		var e model.ScoredEntry
		if err := rows.Scan(&e.Page, &e.Rank, &e.Title, &e.DisplayURL, &e.LandingURL, &e.IsMatch, &e.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (cdb *CrawlDB) runChecks(ctx context.Context, runID uuid.UUID) ([]model.HTTPSCheck, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, protocol, status_code, ssl_valid, ssl_error, checked_at, tls_version, cert_issuer, cert_not_after
	FROM http_checks WHERE run_id = ? ORDER BY seq
	`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query checks: %w", err)
	}
	defer rows.Close()

	checks := make([]model.HTTPSCheck, 0)
	for rows.Next() {
		var (
			c          model.HTTPSCheck
			statusCode sql.NullInt64
			sslValid   sql.NullBool
			checkedAt  string
			notAfter   sql.NullString
		)
		if err := rows.Scan(&c.URL, &c.Protocol, &statusCode, &sslValid, &c.SSLError, &checkedAt,
			&c.TLSVersion, &c.CertIssuer, &notAfter); err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		if statusCode.Valid {
			code := int(statusCode.Int64)
			c.StatusCode = &code
		}
		if sslValid.Valid {
			valid := sslValid.Bool
			c.SSLValid = &valid
		}
		c.CheckedAt = parseTimestamp(checkedAt)
		if notAfter.Valid {
			t := parseTimestamp(notAfter.String)
			c.CertNotAfter = &t
		}
		checks = append(checks, c)
	}

	return checks, rows.Err()
}

// withTx runs fn in a transaction and commits if it returns nil.
func (cdb *CrawlDB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

// marshalIssues encodes HTTPS issues, returning NULL for an empty map.
func marshalIssues(issues map[string]string) (sql.NullString, error) {
	if len(issues) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(issues)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to serialize https issues: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalIssues decodes HTTPS issues; empty input yields nil.
func unmarshalIssues(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var issues map[string]string
	if err := json.Unmarshal(data, &issues); err != nil {
		return nil, fmt.Errorf("failed to parse https issues: %w", err)
	}
	if len(issues) == 0 {
		return nil, nil
	}
	return issues, nil
}

func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to serialize list: %w", err)
	}
	return string(data), nil
}

func unmarshalList(s string) ([]string, error) {
	list := make([]string, 0)
	if s == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, fmt.Errorf("failed to parse list: %w", err)
	}
	return list, nil
}

// formatTime renders t in the fixed-width UTC storage layout.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,             // serpscan storage format
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
	time.RFC3339,           // Full RFC3339 format
	time.RFC3339Nano,       // RFC3339 with nanoseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
