package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/serpscan/internal/model"
)

// CrawlState is the working set of one crawl run. Each step reads what
// earlier steps left in it and adds its own results.
type CrawlState struct {
	// Keyword is the keyword being crawled.
	Keyword *model.Keyword

	// Run is the pending run. Steps fill in Entries and Checks.
	Run *model.CrawlRun

	// Pages are the parsed SERP pages, ranks already contiguous.
	Pages []model.SerpPage

	// MatchedURLs are the deduplicated landing URLs of matched entries,
	// in first-seen order.
	MatchedURLs []string

	// Flag and Issues are the verdict computed by the flag step.
	Flag   model.Flag
	Issues map[string]string

	// PerformedSteps lists the names of the steps that completed.
	PerformedSteps []string
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the state
// accumulated by previous steps.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry their collaborators (fetcher, store, auditor)
// 2. It provides a Name() method for logging and debugging
type Step interface {
	// Do executes the pipeline step.
	// Any returned error aborts the run.
	Do(ctx context.Context, state *CrawlState) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence and stops at the first error.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps should handle their own timeouts. A cancelled crawl
// therefore stops between steps, never halfway through a store write.
func (p *Pipeline) Execute(ctx context.Context, state *CrawlState) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"query", state.Keyword.Query,
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"query", state.Keyword.Query,
		)

		if err := step.Do(ctx, state); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"query", state.Keyword.Query,
				"error", err,
			)
			return err
		}

		state.PerformedSteps = append(state.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
