package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrEmptyUserAgent is returned when no User-Agent is configured.
	// The provider rejects requests without one.
	ErrEmptyUserAgent = errors.New("invalid user agent: must not be empty")

	// ErrInvalidBaseURL is returned when the search endpoint is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid base url: must be an absolute http or https URL")

	// ErrNoPages is returned when no SERP page is configured.
	ErrNoPages = errors.New("no pages configured: at least one result page is required")

	// ErrInvalidPage is returned when a configured page number is below 1.
	ErrInvalidPage = errors.New("invalid page number: pages are 1-based")

	// ErrInvalidFetchTimeout is returned when the fetch timeout is not positive.
	ErrInvalidFetchTimeout = errors.New("invalid fetch timeout: must be positive")

	// ErrInvalidAuditTimeout is returned when the audit timeout is not positive.
	ErrInvalidAuditTimeout = errors.New("invalid audit timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when a delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidScheduleAt is returned when the sweep time is not "HH:MM".
	ErrInvalidScheduleAt = errors.New("invalid schedule time: expected 24h HH:MM")

	// ErrInvalidTriggerLimit is returned when the on-demand rate limit is not positive.
	ErrInvalidTriggerLimit = errors.New("invalid trigger limit: limit and window must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
