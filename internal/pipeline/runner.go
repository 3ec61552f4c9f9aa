package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/serpscan/internal/audit"
	"github.com/nao1215/serpscan/internal/config"
	"github.com/nao1215/serpscan/internal/crawler"
	"github.com/nao1215/serpscan/internal/database"
	"github.com/nao1215/serpscan/internal/match"
	"github.com/nao1215/serpscan/internal/metrics"
	"github.com/nao1215/serpscan/internal/model"
	"github.com/nao1215/serpscan/internal/throttle"
)

// Runner executes one crawl run per call: it creates the run, drives the
// fetch, classify, audit and flag steps, and finalizes the run in the store.
//
// Design decision: Runner owns run finalization instead of a step because
// a run must end terminal on every path, including step failures, panics
// and cancellation. A deferred finalizer is the only place that sees all
// of them.
type Runner struct {
	spider        *crawler.Spider
	classifier    *match.Classifier
	auditor       *audit.Auditor
	auditThrottle *throttle.Throttle
	store         database.RunStore
	recorder      *metrics.Recorder
	now           func() time.Time
	logger        *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClassifier sets the match classifier.
func WithClassifier(c *match.Classifier) RunnerOption {
	return func(r *Runner) {
		r.classifier = c
	}
}

// WithAuditor sets the HTTPS auditor.
func WithAuditor(a *audit.Auditor) RunnerOption {
	return func(r *Runner) {
		r.auditor = a
	}
}

// WithAuditDelay sets the minimum interval between HTTPS audits.
// Zero disables the delay.
func WithAuditDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.auditThrottle = throttle.New(d)
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec *metrics.Recorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithClock sets the time source for run timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// WithRunnerLogger sets a custom logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner. Unset collaborators get their defaults and
// audits are spaced by config.DefaultCrawlDelay.
func NewRunner(spider *crawler.Spider, store database.RunStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		spider:        spider,
		store:         store,
		auditThrottle: throttle.New(config.DefaultCrawlDelay),
		now:           func() time.Time { return time.Now().UTC() },
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.classifier == nil {
		r.classifier = match.NewClassifier()
	}
	if r.auditor == nil {
		r.auditor = audit.NewAuditor(audit.WithLogger(r.logger))
	}

	return r
}

// NewRunnerFromConfig wires a Runner and its crawler from cfg.
// recorder may be nil.
func NewRunnerFromConfig(cfg *config.Config, store database.RunStore, recorder *metrics.Recorder, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	fetcher := crawler.NewFetcher(&http.Client{},
		crawler.WithBaseURL(cfg.BaseURL),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithFetchTimeout(cfg.FetchTimeout),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	)
	parser := crawler.NewParser(crawler.WithParserLogger(logger))

	spiderOpts := []crawler.SpiderOption{
		crawler.WithPages(cfg.Pages...),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithDumpDir(cfg.DumpDir),
		crawler.WithSpiderLogger(logger),
	}
	if recorder != nil {
		spiderOpts = append(spiderOpts, crawler.WithObserver(recorder))
	}
	spider := crawler.NewSpider(fetcher, parser, spiderOpts...)

	auditor := audit.NewAuditor(
		audit.WithUserAgent(cfg.UserAgent),
		audit.WithTimeout(cfg.AuditTimeout),
		audit.WithLogger(logger),
	)

	return NewRunner(spider, store,
		WithAuditor(auditor),
		WithAuditDelay(cfg.CrawlDelay),
		WithRecorder(recorder),
		WithRunnerLogger(logger),
	)
}

// Pipeline builds the step sequence of one run.
func (r *Runner) Pipeline() *Pipeline {
	p := New(WithLogger(r.logger))
	p.AddSteps(
		NewFetchStep(r.spider),
		NewClassifyStep(r.classifier, r.store),
		NewAuditStep(r.auditor, r.auditThrottle, r.store, r.recorder, r.logger),
		NewFlagStep(),
	)
	return p
}

// Crawl runs the full pipeline for kw.
//
// On success the returned run is finalized as success and err is nil. On
// failure err is a *RunError and, once the run was created, the returned
// run is finalized as failure in memory and in the store. A run that could
// not be created is returned as nil.
func (r *Runner) Crawl(ctx context.Context, kw *model.Keyword) (run *model.CrawlRun, err error) {
	if kw == nil {
		return nil, &RunError{Kind: KindInternal, Err: ErrNilKeyword}
	}
	if err := kw.Validate(); err != nil {
		return nil, &RunError{Kind: KindInternal, Err: err}
	}

	run = model.NewCrawlRun(kw.ID, r.now())
	run.Query = kw.Query

	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, classify(ctx, storageError("create run", err))
	}

	logger := r.logger.With("query", kw.Query, "run_id", run.ID.String())
	logger.Info("crawl started")

	defer func() {
		if p := recover(); p != nil {
			err = &RunError{Kind: KindInternal, Err: fmt.Errorf("panic: %v", p)}
		}
		if err != nil {
			r.fail(ctx, run, err, logger)
		}
		r.recorder.ObserveRun(run)
	}()

	state := &CrawlState{Keyword: kw, Run: run}
	if err := r.Pipeline().Execute(ctx, state); err != nil {
		return run, classify(ctx, err)
	}

	// Finalize a copy so that a rejected store write leaves run pending
	// for the failure path below.
	done := *run
	if err := done.Succeed(state.Flag, state.Issues, r.now()); err != nil {
		return run, classify(ctx, err)
	}
	if err := r.store.MarkRunSuccess(ctx, &done); err != nil {
		return run, classify(ctx, storageError("mark run success", err))
	}
	*run = done

	logger.Info("crawl completed",
		"flag", run.Flag,
		"entries", len(run.Entries),
		"matches", run.MatchCount(),
		"checks", len(run.Checks),
		"duration", run.Duration(),
	)

	return run, nil
}

// fail finalizes run as failure. The store write runs on a context that
// ignores the caller's cancellation, since a cancelled crawl must still
// leave no pending row behind.
func (r *Runner) fail(ctx context.Context, run *model.CrawlRun, cause error, logger *slog.Logger) {
	if err := run.Fail(cause.Error(), r.now()); err != nil {
		if !errors.Is(err, model.ErrRunFinalized) {
			logger.Error("failed to finalize run", "error", err)
		}
		return
	}

	if err := r.store.MarkRunFailure(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to store run failure", "error", err)
		return
	}

	logger.Warn("crawl failed", "kind", KindOf(cause), "error", cause)
}
