package model

import "errors"

var (
	// ErrRunFinalized is returned when a terminal transition is attempted on a
	// CrawlRun that is already in the success or failure state.
	ErrRunFinalized = errors.New("crawl run already finalized")

	// ErrEmptyQuery is returned when a keyword has no search query text.
	ErrEmptyQuery = errors.New("keyword query must not be empty")

	// ErrInvalidKeywordStatus is returned for a status outside active/paused/pending.
	ErrInvalidKeywordStatus = errors.New("invalid keyword status: must be active, paused or pending")
)
