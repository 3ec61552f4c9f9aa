package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// The network defaults follow what the search provider tolerates for a
// single low-volume client: sequential requests, a two second gap, and
// short timeouts so that one hung request does not stall a whole sweep.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "serpscan"

	// DefaultBaseURL is the search endpoint that result pages are requested from.
	DefaultBaseURL = "https://search.naver.com/search.naver"

	// DefaultUserAgent identifies serpscan in outbound requests.
	DefaultUserAgent = "Mozilla/5.0 (compatible; serpscan/1.0; +https://github.com/nao1215/serpscan)"

	// DefaultCrawlDelay is the pause between consecutive outbound requests of
	// one run: between SERP pages and between HTTPS audits.
	DefaultCrawlDelay = 2 * time.Second

	// DefaultKeywordDelay is the pause between keywords during a scheduled sweep.
	DefaultKeywordDelay = 2 * time.Second

	// DefaultFetchTimeout bounds a single SERP page request.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultAuditTimeout bounds a single HTTPS audit including redirects.
	DefaultAuditTimeout = 15 * time.Second

	// DefaultMaxBodySize limits the response body size read from the provider.
	// Result pages embed large bootstrap payloads, 5MB leaves ample headroom.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultListenAddr is the address the API server binds to.
	DefaultListenAddr = ":8080"

	// DefaultScheduleAt is the local wall-clock time of the daily sweep.
	DefaultScheduleAt = "03:00"

	// DefaultTriggerLimit is the number of on-demand crawls allowed per
	// client within DefaultTriggerWindow.
	DefaultTriggerLimit = 10

	// DefaultTriggerWindow is the rate-limit window for on-demand crawls.
	DefaultTriggerWindow = time.Minute

	// DefaultRecentRuns is how many runs `serpscan runs` and the API return by default.
	DefaultRecentRuns = 10
)

// DefaultPages returns the SERP pages crawled per keyword.
// A function rather than a variable so callers cannot mutate the default.
func DefaultPages() []int {
	return []int{1, 2}
}

// Config holds all configuration options for serpscan.
// It is populated from defaults, then the optional YAML file, then CLI flags,
// and passed through the application via dependency injection.
//
// Design decision: We keep a single flat struct, as the number of options is
// manageable and every component only reads the handful of fields it needs.
type Config struct {
	// UserAgent is the User-Agent header sent with SERP and audit requests.
	UserAgent string

	// BaseURL is the search endpoint. Overridable for tests and mirrors.
	BaseURL string

	// Pages lists the 1-based SERP pages fetched per keyword, in order.
	Pages []int

	// CrawlDelay is the politeness delay between outbound requests of one run.
	// Zero disables the delay.
	CrawlDelay time.Duration

	// KeywordDelay is the delay between keywords during a sweep.
	KeywordDelay time.Duration

	// FetchTimeout bounds each SERP page request.
	FetchTimeout time.Duration

	// AuditTimeout bounds each HTTPS audit.
	AuditTimeout time.Duration

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// DBDir is the directory of the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/serpscan on Linux).
	DBDir string

	// DatabaseURL selects the PostgreSQL store when set (postgres://...).
	// When empty, the SQLite store under DBDir is used.
	DatabaseURL string

	// DumpDir receives raw SERP bodies that produced zero entries, for
	// diagnosing provider markup changes. Empty disables dumping.
	DumpDir string

	// ListenAddr is the API server address used by `serpscan serve`.
	ListenAddr string

	// ScheduleAt is the daily sweep time in 24h "HH:MM" local time.
	ScheduleAt string

	// RedisURL makes the API rate limiter share state through Redis.
	// When empty, limiter state is kept in memory.
	RedisURL string

	// TriggerLimit is the number of on-demand crawl requests per client and window.
	TriggerLimit int

	// TriggerWindow is the on-demand crawl rate-limit window.
	TriggerWindow time.Duration

	// Verbose enables debug level logging.
	Verbose bool

	// ConfigFilePath is the explicit configuration file path.
	// If empty, .serpscan is searched in the current and home directories.
	ConfigFilePath string

	// JSONReport selects JSON output for run reports.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output for run reports.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes reports to a file instead of stdout.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		UserAgent:     DefaultUserAgent,
		BaseURL:       DefaultBaseURL,
		Pages:         DefaultPages(),
		CrawlDelay:    DefaultCrawlDelay,
		KeywordDelay:  DefaultKeywordDelay,
		FetchTimeout:  DefaultFetchTimeout,
		AuditTimeout:  DefaultAuditTimeout,
		MaxBodySize:   DefaultMaxBodySize,
		DBDir:         XDGDataDir(),
		ListenAddr:    DefaultListenAddr,
		ScheduleAt:    DefaultScheduleAt,
		TriggerLimit:  DefaultTriggerLimit,
		TriggerWindow: DefaultTriggerWindow,
	}
}

// XDGDataDir returns the XDG data directory for serpscan.
// On Linux: ~/.local/share/serpscan
// On macOS: ~/Library/Application Support/serpscan
// On Windows: %LOCALAPPDATA%\serpscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// UsePostgres reports whether the PostgreSQL store is configured.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast before any request is sent.
func (c *Config) Validate() error {
	if c.UserAgent == "" {
		return ErrEmptyUserAgent
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}

	if len(c.Pages) == 0 {
		return ErrNoPages
	}
	for _, p := range c.Pages {
		if p < 1 {
			return ErrInvalidPage
		}
	}

	if c.FetchTimeout <= 0 {
		return ErrInvalidFetchTimeout
	}
	if c.AuditTimeout <= 0 {
		return ErrInvalidAuditTimeout
	}

	// Delays may be zero (no delay) but never negative
	if c.CrawlDelay < 0 || c.KeywordDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	if _, err := time.Parse("15:04", c.ScheduleAt); err != nil {
		return ErrInvalidScheduleAt
	}

	if c.TriggerLimit <= 0 || c.TriggerWindow <= 0 {
		return ErrInvalidTriggerLimit
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
