package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/serpscan/internal/config"
	"github.com/nao1215/serpscan/internal/database"
	"github.com/nao1215/serpscan/internal/model"
)

// errNotEnoughRuns is returned by --compare when fewer than two successful
// runs are stored for the keyword.
var errNotEnoughRuns = errors.New("at least two successful runs are required to compare")

// NewRunsCmd creates the runs command.
// It shows stored crawl runs: the history of a keyword, one run in full,
// or the difference between the two latest successful runs.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs <keyword-id|query>",
		Short: "Show stored crawl runs",
		Long: `Runs displays the crawl history stored in the database.

Examples:
  # Latest runs of a keyword, newest first
  serpscan runs "acme coffee"

  # Up to 30 runs as JSON
  serpscan runs --limit 30 --json "acme coffee"

  # Full report of one run
  serpscan runs --run 5f0c3b1e-8a9d-4c21-9f57-3d5c2a6b7e10

  # What changed between the two latest successful runs
  serpscan runs --compare "acme coffee"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRunsCmd,
	}

	cmd.Flags().IntP("limit", "l", config.DefaultRecentRuns, "Maximum number of runs to list")
	cmd.Flags().String("run", "", "Show the full report of the run with this ID")
	cmd.Flags().Bool("compare", false, "Compare the two latest successful runs")
	addStoreFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

// runRunsCmd executes the runs command.
func runRunsCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	runRef, err := flags.GetString("run")
	if err != nil {
		return err
	}
	compare, err := flags.GetBool("compare")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database
	switch {
	case runRef != "" && len(args) > 0:
		return errors.New("--run cannot be combined with a keyword argument")
	case runRef == "" && len(args) == 0:
		return errors.New("keyword is required (or use --run <run-id>)")
	case limit < 1:
		return errors.New("--limit must be positive")
	}

	return withStore(cmd, func(ctx context.Context, cfg *config.Config, store database.Store) error {
		output, closeOutput, err := openReportOutput(cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeOutput()

		if runRef != "" {
			return showRun(ctx, store, runRef, cfg, output)
		}

		kw, err := resolveKeyword(ctx, store, args[0])
		if err != nil {
			return err
		}
		if compare {
			return compareLatestRuns(ctx, store, kw, cfg.JSONReport, output)
		}

		runs, err := store.RecentRuns(ctx, kw.ID, limit)
		if err != nil {
			return fmt.Errorf("failed to load runs: %w", err)
		}
		_, err = newReportWriter(cfg, output).WriteHistory(runs)
		return err
	})
}

// showRun writes the full report of one run.
func showRun(ctx context.Context, store database.RunStore, ref string, cfg *config.Config, output io.Writer) error {
	id, err := uuid.Parse(ref)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", ref, err)
	}

	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	_, err = newReportWriter(cfg, output).Write(run)
	return err
}

// RunComparison describes what changed between two successful runs.
type RunComparison struct {
	Query          string     `json:"query"`
	Previous       runSummary `json:"previous"`
	Current        runSummary `json:"current"`
	FlagChanged    bool       `json:"flag_changed"`
	NewIssues      []string   `json:"new_issues"`
	ResolvedIssues []string   `json:"resolved_issues"`
	NewMatches     []string   `json:"new_matches"`
	LostMatches    []string   `json:"lost_matches"`
}

// runSummary is the per-run part of a comparison.
type runSummary struct {
	ID          uuid.UUID  `json:"id"`
	Flag        model.Flag `json:"flag"`
	CompletedAt string     `json:"completed_at"`
	Matches     int        `json:"matches"`
}

// compareLatestRuns compares the two most recent successful runs of kw.
func compareLatestRuns(ctx context.Context, store database.RunStore, kw *model.Keyword, jsonOutput bool, output io.Writer) error {
	// Failures interleave with successes, so scan a wider window
	recent, err := store.RecentRuns(ctx, kw.ID, 50)
	if err != nil {
		return fmt.Errorf("failed to load runs: %w", err)
	}

	var picked []*model.CrawlRun
	for _, r := range recent {
		if r.Status != model.RunSuccess {
			continue
		}
		full, err := store.GetRun(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("failed to load run %s: %w", r.ID, err)
		}
		picked = append(picked, full)
		if len(picked) == 2 {
			break
		}
	}
	if len(picked) < 2 {
		return errNotEnoughRuns
	}

	result := compareRuns(picked[1], picked[0])
	result.Query = kw.Query

	if jsonOutput {
		encoder := json.NewEncoder(output)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	return writeComparisonText(output, result)
}

// compareRuns diffs the issues and matched landing URLs of two runs.
func compareRuns(previous, current *model.CrawlRun) *RunComparison {
	result := &RunComparison{
		Previous:    summarizeRun(previous),
		Current:     summarizeRun(current),
		FlagChanged: previous.Flag != current.Flag,
	}

	result.NewIssues, result.ResolvedIssues = diffKeys(previous.HTTPSIssues, current.HTTPSIssues)

	prevMatches := make(map[string]string)
	for _, u := range model.MatchedURLs(previous.Entries) {
		prevMatches[u] = ""
	}
	currMatches := make(map[string]string)
	for _, u := range model.MatchedURLs(current.Entries) {
		currMatches[u] = ""
	}
	result.NewMatches, result.LostMatches = diffKeys(prevMatches, currMatches)

	return result
}

func summarizeRun(run *model.CrawlRun) runSummary {
	return runSummary{
		ID:          run.ID,
		Flag:        run.Flag,
		CompletedAt: completedAt(run),
		Matches:     run.MatchCount(),
	}
}

func completedAt(run *model.CrawlRun) string {
	if run.CompletedAt == nil {
		return ""
	}
	return run.CompletedAt.Format("2006-01-02 15:04:05 MST")
}

// diffKeys returns the sorted keys only in current (added) and only in
// previous (removed). Both results are non-nil.
func diffKeys(previous, current map[string]string) (added, removed []string) {
	added = make([]string, 0)
	removed = make([]string, 0)
	for k := range current {
		if _, ok := previous[k]; !ok {
			added = append(added, k)
		}
	}
	for k := range previous {
		if _, ok := current[k]; !ok {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// writeComparisonText renders a comparison for the terminal.
func writeComparisonText(w io.Writer, c *RunComparison) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Comparison for %q\n", c.Query)
	fmt.Fprintf(&sb, "  Previous: %s  %-6s  %d matched\n", c.Previous.CompletedAt, c.Previous.Flag, c.Previous.Matches)
	fmt.Fprintf(&sb, "  Current:  %s  %-6s  %d matched\n", c.Current.CompletedAt, c.Current.Flag, c.Current.Matches)

	if c.FlagChanged {
		fmt.Fprintf(&sb, "\nFlag changed: %s -> %s\n", c.Previous.Flag, c.Current.Flag)
	} else {
		sb.WriteString("\nFlag unchanged.\n")
	}

	writeList := func(title, marker string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n%s:\n", title)
		for _, item := range items {
			fmt.Fprintf(&sb, "  %s %s\n", marker, item)
		}
	}
	writeList("New HTTPS issues", "+", c.NewIssues)
	writeList("Resolved HTTPS issues", "-", c.ResolvedIssues)
	writeList("Newly matched landing pages", "+", c.NewMatches)
	writeList("No longer matched landing pages", "-", c.LostMatches)

	_, err := io.WriteString(w, sb.String())
	return err
}
