package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a CrawlRun.
type RunStatus string

const (
	// RunPending is the state from creation until finalization.
	RunPending RunStatus = "pending"

	// RunSuccess is terminal: the run completed and carries a flag.
	RunSuccess RunStatus = "success"

	// RunFailure is terminal: the run aborted and carries a message in Notes.
	RunFailure RunStatus = "failure"
)

// CrawlRun aggregates one keyword's crawl attempt.
//
// A run is created pending, filled in while the pipeline progresses and
// finalized exactly once through Succeed or Fail. CompletedAt is set at that
// transition and never changed again.
type CrawlRun struct {
	ID        uuid.UUID `json:"id"`
	KeywordID uuid.UUID `json:"keyword_id"`

	// Query is the keyword's search text at the time of the run.
	Query string `json:"query,omitempty"`

	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Flag and HTTPSIssues are only meaningful when Status is RunSuccess.
	Flag        Flag              `json:"flag,omitempty"`
	HTTPSIssues map[string]string `json:"https_issues,omitempty"`

	Entries []ScoredEntry `json:"entries"`
	Checks  []HTTPSCheck  `json:"checks"`

	// Notes holds the failure message of a failed run.
	Notes string `json:"notes,omitempty"`
}

// NewCrawlRun creates a pending run for the keyword.
func NewCrawlRun(keywordID uuid.UUID, startedAt time.Time) *CrawlRun {
	return &CrawlRun{
		ID:        uuid.New(),
		KeywordID: keywordID,
		Status:    RunPending,
		StartedAt: startedAt,
		Entries:   make([]ScoredEntry, 0),
		Checks:    make([]HTTPSCheck, 0),
	}
}

// IsTerminal reports whether the run has been finalized.
func (r *CrawlRun) IsTerminal() bool {
	return r.Status == RunSuccess || r.Status == RunFailure
}

// Succeed finalizes the run as successful.
func (r *CrawlRun) Succeed(flag Flag, issues map[string]string, at time.Time) error {
	if r.IsTerminal() {
		return ErrRunFinalized
	}
	r.Status = RunSuccess
	r.Flag = flag
	if len(issues) == 0 {
		issues = nil
	}
	r.HTTPSIssues = issues
	r.CompletedAt = &at
	return nil
}

// Fail finalizes the run as failed with the given message.
func (r *CrawlRun) Fail(message string, at time.Time) error {
	if r.IsTerminal() {
		return ErrRunFinalized
	}
	r.Status = RunFailure
	r.Notes = message
	r.Flag = ""
	r.HTTPSIssues = nil
	r.CompletedAt = &at
	return nil
}

// MatchCount returns the number of matched entries.
func (r *CrawlRun) MatchCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.IsMatch {
			n++
		}
	}
	return n
}

// Duration returns how long the run took, or zero while it is pending.
func (r *CrawlRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
