// Package pipeline runs crawl runs: one keyword in, one finalized CrawlRun out.
//
// A run executes four steps in order: fetch (all SERP pages, parsed, ranks
// rebased), classify (score entries, persist them), audit (HTTPS check of
// each deduplicated matched landing URL, persist the checks) and flag
// (derive the verdict). Runner creates the run, executes the steps and
// finalizes the run; Sweeper repeats that for every active keyword.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. Each step is testable in isolation against a fake store
// 2. It provides consistent cancellation checks and logging between steps
//
// Errors leave the package as *RunError with a Kind of fetch, storage,
// cancelled or internal.
package pipeline
