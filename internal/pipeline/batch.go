package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/serpscan/internal/model"
	"github.com/nao1215/serpscan/internal/throttle"
)

// Crawler runs one crawl for one keyword. *Runner implements it.
type Crawler interface {
	Crawl(ctx context.Context, kw *model.Keyword) (*model.CrawlRun, error)
}

// KeywordSource lists the keywords a sweep covers.
type KeywordSource interface {
	ListActiveKeywords(ctx context.Context) ([]*model.Keyword, error)
}

// SweepSummary reports the outcome of one sweep.
type SweepSummary struct {
	// Total is the number of keywords the sweep attempted.
	Total int

	// Succeeded and Failed count finished runs by outcome.
	Succeeded int
	Failed    int

	// Elapsed is the wall time of the sweep.
	Elapsed time.Duration
}

// Sweeper crawls every active keyword, one after another.
//
// Design decision: We crawl keywords sequentially with a delay instead of
// fanning out with a worker pool because every crawl hits the same search
// provider. Parallel crawls would multiply the request rate seen by that
// single host and get the client blocked.
type Sweeper struct {
	// crawler executes each keyword's run.
	crawler Crawler

	// keywords supplies the active keywords.
	keywords KeywordSource

	// throttle spaces consecutive keywords.
	throttle *throttle.Throttle

	// callback is invoked after each keyword. May be nil.
	callback func(kw *model.Keyword, run *model.CrawlRun, err error)

	// logger is used for sweep-level logging.
	logger *slog.Logger
}

// SweepOption configures a Sweeper.
type SweepOption func(*Sweeper)

// WithSweepLogger sets a custom logger for sweeps.
func WithSweepLogger(logger *slog.Logger) SweepOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithKeywordDelay sets the minimum interval between keywords.
func WithKeywordDelay(d time.Duration) SweepOption {
	return func(s *Sweeper) {
		s.throttle = throttle.New(d)
	}
}

// WithSweepCallback registers a function called after each keyword with
// its run and error. It is called from the sweeping goroutine.
func WithSweepCallback(fn func(kw *model.Keyword, run *model.CrawlRun, err error)) SweepOption {
	return func(s *Sweeper) {
		s.callback = fn
	}
}

// NewSweeper creates a Sweeper.
func NewSweeper(crawler Crawler, keywords KeywordSource, opts ...SweepOption) *Sweeper {
	s := &Sweeper{
		crawler:  crawler,
		keywords: keywords,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Sweep crawls every active keyword.
//
// A failed keyword is logged and counted, and the sweep moves on to the
// next one. Only a failure to list keywords or the end of ctx stops the
// sweep early; the summary still covers the keywords attempted so far.
func (s *Sweeper) Sweep(ctx context.Context) (SweepSummary, error) {
	start := time.Now()
	summary := SweepSummary{}

	keywords, err := s.keywords.ListActiveKeywords(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list active keywords: %w", err)
	}

	s.logger.Info("starting sweep", "keywords", len(keywords))

	for i, kw := range keywords {
		if err := s.throttle.Wait(ctx); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, err
		}

		summary.Total++
		run, err := s.crawler.Crawl(ctx, kw)
		if err != nil {
			summary.Failed++
			s.logger.Warn("keyword crawl failed",
				"query", kw.Query,
				"index", i+1,
				"total", len(keywords),
				"error", err,
			)
		} else {
			summary.Succeeded++
		}

		if s.callback != nil {
			s.callback(kw, run, err)
		}

		if ctx.Err() != nil {
			summary.Elapsed = time.Since(start)
			return summary, ctx.Err()
		}
	}

	summary.Elapsed = time.Since(start)
	s.logger.Info("sweep complete",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed,
	)

	return summary, nil
}
