package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/serpscan/internal/model"
	"github.com/nao1215/serpscan/internal/throttle"
)

// Observer receives crawl measurements. The metrics package implements it.
type Observer interface {
	// ObserveFetch records one page request and its outcome.
	ObserveFetch(elapsed time.Duration, err error)

	// ObserveParse records how many entries a strategy produced for one page.
	ObserveParse(strategy string, entries int)
}

// Spider collects all result pages of one query.
//
// It fetches the configured pages one at a time, parses each body, and
// rebases ranks so that they run 1..N across the whole result set instead
// of restarting on every page.
//
// Design decision: We call it "Spider" rather than "Crawler" because:
//  1. Distinguishes the component from the package name
//  2. Clearer in code: crawler.NewSpider() vs crawler.NewCrawler()
type Spider struct {
	// fetcher performs the page requests.
	fetcher *Fetcher

	// parser turns bodies into SerpPages.
	parser *Parser

	// pages are the page numbers to fetch, in order.
	pages []int

	// throttle spaces consecutive page requests.
	throttle *throttle.Throttle

	// dumpDir receives bodies that produced zero entries. Empty disables dumps.
	dumpDir string

	// observer receives fetch and parse measurements. May be nil.
	observer Observer

	// logger for structured logging.
	logger *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithPages sets the page numbers to fetch.
func WithPages(pages ...int) SpiderOption {
	return func(s *Spider) {
		s.pages = pages
	}
}

// WithDelay sets the minimum interval between page requests.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.throttle = throttle.New(d)
	}
}

// WithDumpDir sets the directory that receives bodies no strategy could read
// any entries from.
func WithDumpDir(dir string) SpiderOption {
	return func(s *Spider) {
		s.dumpDir = dir
	}
}

// WithObserver sets the measurement sink.
func WithObserver(o Observer) SpiderOption {
	return func(s *Spider) {
		s.observer = o
	}
}

// WithSpiderLogger sets a custom logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider. A nil parser means NewParser().
func NewSpider(fetcher *Fetcher, parser *Parser, opts ...SpiderOption) *Spider {
	if parser == nil {
		parser = NewParser()
	}
	s := &Spider{
		fetcher: fetcher,
		parser:  parser,
		pages:   []int{1, 2},
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl fetches and parses every configured page of query.
//
// The first failed fetch aborts the crawl and its *FetchError is returned;
// pages that were already parsed are discarded, since a partial result set
// would produce misleading ranks.
func (s *Spider) Crawl(ctx context.Context, query string) ([]model.SerpPage, error) {
	result := make([]model.SerpPage, 0, len(s.pages))
	offset := 0

	for _, number := range s.pages {
		if err := s.throttle.Wait(ctx); err != nil {
			return nil, err
		}

		raw, err := s.fetcher.FetchPage(ctx, query, number)
		if s.observer != nil {
			var elapsed time.Duration
			if raw != nil {
				elapsed = raw.Elapsed
			}
			s.observer.ObserveFetch(elapsed, err)
		}
		if err != nil {
			return nil, err
		}

		if raw.Truncated {
			s.logger.Warn("SERP page exceeded the body size limit and was truncated",
				"query", query,
				"page", number,
				"bytes", len(raw.Body),
			)
		}

		page := s.parser.ParsePage(raw.Body, query, number)
		if s.observer != nil {
			s.observer.ObserveParse(page.Strategy, len(page.Entries))
		}

		s.logger.Debug("parsed SERP page",
			"query", query,
			"page", number,
			"strategy", page.Strategy,
			"entries", len(page.Entries),
			"digest", raw.Digest,
			"elapsed", raw.Elapsed,
		)

		if len(page.Entries) == 0 {
			s.logger.Warn("no results parsed from SERP page",
				"query", query,
				"page", number,
				"url", raw.URL,
			)
			s.dump(raw)
		}

		for i := range page.Entries {
			page.Entries[i].Rank += offset
		}
		offset += len(page.Entries)

		result = append(result, page)
	}

	return result, nil
}

// Entries flattens the pages into one rank-ordered slice.
func Entries(pages []model.SerpPage) []model.ResultEntry {
	entries := make([]model.ResultEntry, 0)
	for _, p := range pages {
		entries = append(entries, p.Entries...)
	}
	return entries
}

// dump writes a raw body to dumpDir/<digest>.html for later selector work.
// Failures are logged and otherwise ignored.
func (s *Spider) dump(raw *RawPage) {
	if s.dumpDir == "" {
		return
	}

	if err := os.MkdirAll(s.dumpDir, 0750); err != nil {
		s.logger.Warn("failed to create dump directory", "dir", s.dumpDir, "error", err)
		return
	}

	path := filepath.Join(s.dumpDir, fmt.Sprintf("%s.html", raw.Digest))
	if err := os.WriteFile(path, raw.Body, 0600); err != nil {
		s.logger.Warn("failed to dump SERP page", "path", path, "error", err)
		return
	}

	s.logger.Info("dumped unparsed SERP page", "path", path)
}
