package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/nao1215/serpscan/internal/model"
)

// RunStore persists crawl runs and their results.
//
// MarkRunSuccess and MarkRunFailure take a run that has already been
// finalized in memory and write its terminal state. They only update runs
// that are still pending in storage and return model.ErrRunFinalized
// otherwise, so a run is never finalized twice.
type RunStore interface {
	// CreateRun inserts a pending run.
	CreateRun(ctx context.Context, run *model.CrawlRun) error

	// AppendEntries adds classified entries to a run.
	AppendEntries(ctx context.Context, runID uuid.UUID, entries []model.ScoredEntry) error

	// AppendChecks adds HTTPS checks to a run.
	AppendChecks(ctx context.Context, runID uuid.UUID, checks []model.HTTPSCheck) error

	// MarkRunSuccess stores the flag, issues and completion time.
	MarkRunSuccess(ctx context.Context, run *model.CrawlRun) error

	// MarkRunFailure stores the failure message and completion time.
	MarkRunFailure(ctx context.Context, run *model.CrawlRun) error

	// GetRun returns a run with its entries and checks.
	GetRun(ctx context.Context, id uuid.UUID) (*model.CrawlRun, error)

	// RecentRuns returns up to limit runs of a keyword, newest first,
	// without entries and checks.
	RecentRuns(ctx context.Context, keywordID uuid.UUID, limit int) ([]*model.CrawlRun, error)

	// LatestSuccessfulRun returns the most recently completed successful run
	// of a keyword, without entries and checks.
	LatestSuccessfulRun(ctx context.Context, keywordID uuid.UUID) (*model.CrawlRun, error)
}

// KeywordStore is the keyword registry.
type KeywordStore interface {
	// CreateKeyword validates and inserts a keyword.
	CreateKeyword(ctx context.Context, kw *model.Keyword) error

	// GetKeyword returns one keyword.
	GetKeyword(ctx context.Context, id uuid.UUID) (*model.Keyword, error)

	// ListKeywords returns all keywords, oldest first.
	ListKeywords(ctx context.Context) ([]*model.Keyword, error)

	// ListActiveKeywords returns keywords with status active, oldest first.
	ListActiveKeywords(ctx context.Context) ([]*model.Keyword, error)

	// SetKeywordStatus changes a keyword's status.
	SetKeywordStatus(ctx context.Context, id uuid.UUID, status model.KeywordStatus) error

	// UpdateKeyword validates kw and overwrites the stored keyword with the
	// same ID. It sets kw.UpdatedAt.
	UpdateKeyword(ctx context.Context, kw *model.Keyword) error

	// DeleteKeyword removes a keyword together with its runs.
	DeleteKeyword(ctx context.Context, id uuid.UUID) error
}

// Store is the full persistence surface used by the CLI and the server.
type Store interface {
	RunStore
	KeywordStore

	// Close releases the underlying connections.
	Close() error
}

// Compile-time interface checks.
var (
	_ Store = (*CrawlDB)(nil)
	_ Store = (*PgStore)(nil)
)
