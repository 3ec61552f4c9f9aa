package config

import "time"

// File represents the structure of the .serpscan configuration file.
//
// Design decision: Every field is optional. Pointer fields distinguish
// "not set" from a zero value, so a file can disable the crawl delay with
// `crawl_delay: 0s` without also resetting every other option.
type File struct {
	UserAgent     string         `yaml:"user_agent,omitempty"`
	BaseURL       string         `yaml:"base_url,omitempty"`
	Pages         []int          `yaml:"pages,omitempty"`
	CrawlDelay    *time.Duration `yaml:"crawl_delay,omitempty"`
	KeywordDelay  *time.Duration `yaml:"keyword_delay,omitempty"`
	FetchTimeout  *time.Duration `yaml:"fetch_timeout,omitempty"`
	AuditTimeout  *time.Duration `yaml:"audit_timeout,omitempty"`
	MaxBodySize   *int64         `yaml:"max_body_size,omitempty"`
	DBDir         string         `yaml:"db_dir,omitempty"`
	DatabaseURL   string         `yaml:"database_url,omitempty"`
	DumpDir       string         `yaml:"dump_dir,omitempty"`
	ListenAddr    string         `yaml:"listen_addr,omitempty"`
	ScheduleAt    string         `yaml:"schedule_at,omitempty"`
	RedisURL      string         `yaml:"redis_url,omitempty"`
	TriggerLimit  *int           `yaml:"trigger_limit,omitempty"`
	TriggerWindow *time.Duration `yaml:"trigger_window,omitempty"`
}

// Apply overrides cfg with every option set in the file.
func (f *File) Apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if len(f.Pages) > 0 {
		cfg.Pages = append([]int(nil), f.Pages...)
	}
	if f.CrawlDelay != nil {
		cfg.CrawlDelay = *f.CrawlDelay
	}
	if f.KeywordDelay != nil {
		cfg.KeywordDelay = *f.KeywordDelay
	}
	if f.FetchTimeout != nil {
		cfg.FetchTimeout = *f.FetchTimeout
	}
	if f.AuditTimeout != nil {
		cfg.AuditTimeout = *f.AuditTimeout
	}
	if f.MaxBodySize != nil {
		cfg.MaxBodySize = *f.MaxBodySize
	}
	if f.DBDir != "" {
		cfg.DBDir = f.DBDir
	}
	if f.DatabaseURL != "" {
		cfg.DatabaseURL = f.DatabaseURL
	}
	if f.DumpDir != "" {
		cfg.DumpDir = f.DumpDir
	}
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if f.ScheduleAt != "" {
		cfg.ScheduleAt = f.ScheduleAt
	}
	if f.RedisURL != "" {
		cfg.RedisURL = f.RedisURL
	}
	if f.TriggerLimit != nil {
		cfg.TriggerLimit = *f.TriggerLimit
	}
	if f.TriggerWindow != nil {
		cfg.TriggerWindow = *f.TriggerWindow
	}
}
