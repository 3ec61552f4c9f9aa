package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/serpscan/internal/audit"
	"github.com/nao1215/serpscan/internal/crawler"
	"github.com/nao1215/serpscan/internal/database"
	"github.com/nao1215/serpscan/internal/match"
	"github.com/nao1215/serpscan/internal/metrics"
	"github.com/nao1215/serpscan/internal/model"
	"github.com/nao1215/serpscan/internal/throttle"
)

// FetchStep collects and parses every configured SERP page of the keyword.
//
// Design decision: Fetching and parsing share one step because the Spider
// already interleaves them page by page, and rank rebasing needs both.
type FetchStep struct {
	spider *crawler.Spider
}

// NewFetchStep creates a FetchStep.
func NewFetchStep(spider *crawler.Spider) *FetchStep {
	return &FetchStep{spider: spider}
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do executes the fetch step. A failed page request fails the run.
func (s *FetchStep) Do(ctx context.Context, state *CrawlState) error {
	pages, err := s.spider.Crawl(ctx, state.Keyword.Query)
	if err != nil {
		return err
	}
	state.Pages = pages
	return nil
}

// ClassifyStep scores every parsed entry against the keyword targets and
// persists the scored entries.
type ClassifyStep struct {
	classifier *match.Classifier
	store      database.RunStore
}

// NewClassifyStep creates a ClassifyStep.
func NewClassifyStep(classifier *match.Classifier, store database.RunStore) *ClassifyStep {
	return &ClassifyStep{classifier: classifier, store: store}
}

// Name returns the step name.
func (s *ClassifyStep) Name() string {
	return "classify"
}

// Do executes the classify step.
func (s *ClassifyStep) Do(ctx context.Context, state *CrawlState) error {
	entries := crawler.Entries(state.Pages)
	scored := s.classifier.ClassifyAll(entries, match.TargetsFor(state.Keyword))

	state.Run.Entries = scored
	state.MatchedURLs = model.MatchedURLs(scored)

	if len(scored) == 0 {
		return nil
	}
	if err := s.store.AppendEntries(ctx, state.Run.ID, scored); err != nil {
		return storageError("append entries", err)
	}
	return nil
}

// AuditStep checks the HTTPS posture of every matched landing URL.
//
// Audits run one at a time, spaced by the throttle. An audit failure is
// never a step failure: it is recorded in the check itself.
type AuditStep struct {
	auditor  *audit.Auditor
	throttle *throttle.Throttle
	store    database.RunStore
	recorder *metrics.Recorder
	logger   *slog.Logger
}

// NewAuditStep creates an AuditStep. throttle and recorder may be nil.
func NewAuditStep(
	auditor *audit.Auditor,
	throttle *throttle.Throttle,
	store database.RunStore,
	recorder *metrics.Recorder,
	logger *slog.Logger,
) *AuditStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditStep{
		auditor:  auditor,
		throttle: throttle,
		store:    store,
		recorder: recorder,
		logger:   logger,
	}
}

// Name returns the step name.
func (s *AuditStep) Name() string {
	return "audit"
}

// Do executes the audit step.
func (s *AuditStep) Do(ctx context.Context, state *CrawlState) error {
	checks := make([]model.HTTPSCheck, 0, len(state.MatchedURLs))

	for _, u := range state.MatchedURLs {
		// Plain http URLs are judged without a request, so they do not
		// consume a slot of the throttle.
		if audit.Protocol(u) == "https" {
			if err := s.throttle.Wait(ctx); err != nil {
				return err
			}
		}

		check := s.auditor.Audit(ctx, u)
		s.recorder.ObserveCheck(check)

		s.logger.Debug("audited landing page",
			"url", u,
			"valid", check.Valid(),
			"error", check.SSLError,
		)

		checks = append(checks, check)
	}

	state.Run.Checks = checks

	if len(checks) == 0 {
		return nil
	}
	if err := s.store.AppendChecks(ctx, state.Run.ID, checks); err != nil {
		return storageError("append checks", err)
	}
	return nil
}

// FlagStep derives the run verdict from the scored entries and checks.
type FlagStep struct{}

// NewFlagStep creates a FlagStep.
func NewFlagStep() *FlagStep {
	return &FlagStep{}
}

// Name returns the step name.
func (s *FlagStep) Name() string {
	return "flag"
}

// Do executes the flag step.
func (s *FlagStep) Do(_ context.Context, state *CrawlState) error {
	state.Flag = model.DetermineFlag(state.Run.Entries, state.Run.Checks)
	state.Issues = model.CollectHTTPSIssues(state.Run.Checks)
	return nil
}
