package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeywordStatus is the lifecycle state of a tracked keyword.
// Only active keywords are picked up by the daily sweep.
type KeywordStatus string

const (
	// KeywordActive keywords are crawled by the scheduler.
	KeywordActive KeywordStatus = "active"

	// KeywordPaused keywords are kept but skipped by the scheduler.
	KeywordPaused KeywordStatus = "paused"

	// KeywordPending keywords await review before they are tracked.
	KeywordPending KeywordStatus = "pending"
)

// ParseKeywordStatus converts user input to a KeywordStatus.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseKeywordStatus(s string) (KeywordStatus, error) {
	switch KeywordStatus(strings.ToLower(strings.TrimSpace(s))) {
	case KeywordActive:
		return KeywordActive, nil
	case KeywordPaused:
		return KeywordPaused, nil
	case KeywordPending:
		return KeywordPending, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKeywordStatus, s)
	}
}

// Keyword is a tracked search query together with the names and domains that
// identify the business being looked for in its results.
//
// The crawl core only reads Query, TargetNames, TargetDomains and Status.
// The remaining fields belong to the keyword registry and the export.
type Keyword struct {
	// ID uniquely identifies the keyword.
	ID uuid.UUID `json:"id"`

	// Query is the search text sent to the provider.
	Query string `json:"query"`

	// Category is an optional free-form grouping label. Empty means none.
	Category string `json:"category,omitempty"`

	// TargetNames are business names matched against result titles.
	TargetNames []string `json:"target_names"`

	// TargetDomains are domains matched against result hosts.
	TargetDomains []string `json:"target_domains"`

	// Status controls whether the scheduler crawls this keyword.
	Status KeywordStatus `json:"status"`

	// Notes is free-form operator text.
	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewKeyword creates an active keyword with a fresh ID and timestamps.
func NewKeyword(query string) *Keyword {
	now := time.Now().UTC()
	return &Keyword{
		ID:            uuid.New(),
		Query:         strings.TrimSpace(query),
		TargetNames:   make([]string, 0),
		TargetDomains: make([]string, 0),
		Status:        KeywordActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Validate checks the fields the crawl pipeline depends on.
func (k *Keyword) Validate() error {
	if strings.TrimSpace(k.Query) == "" {
		return ErrEmptyQuery
	}
	if _, err := ParseKeywordStatus(string(k.Status)); err != nil {
		return err
	}
	return nil
}

// IsActive reports whether the keyword should be included in scheduled sweeps.
func (k *Keyword) IsActive() bool {
	return k.Status == KeywordActive
}
