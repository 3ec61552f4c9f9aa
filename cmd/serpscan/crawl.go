package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/serpscan/internal/config"
	"github.com/nao1215/serpscan/internal/database"
	"github.com/nao1215/serpscan/internal/model"
	"github.com/nao1215/serpscan/internal/pipeline"
	"github.com/nao1215/serpscan/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [keyword-id|query]...",
		Short: "Crawl search results for one or more keywords",
		Long: `Crawl fetches the result pages of each keyword, classifies the results
against the keyword's tracked names and domains, audits the HTTPS setup of
every matched landing page and stores the flagged run.

Keywords are referenced by ID or by their exact query text. A query that is
not registered yet is added to the registry with status "pending", so it is
kept out of the daily sweep until you activate it.

Examples:
  # Crawl a registered keyword
  serpscan crawl "acme coffee"

  # Crawl every active keyword, like the daily sweep does
  serpscan crawl --all

  # Crawl three pages and write a Markdown report
  serpscan crawl --pages 1,2,3 --markdown -o report.md "acme coffee"

  # Keep raw pages that produced no results for debugging
  serpscan crawl --dump-dir /tmp/serp "acme coffee"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().BoolP("all", "a", false, "Crawl every active keyword")

	// Crawl behavior flags
	cmd.Flags().String("base-url", "", "Search endpoint (default: "+config.DefaultBaseURL+")")
	cmd.Flags().IntSlice("pages", config.DefaultPages(), "Result pages to crawl")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Delay between requests of one crawl")
	cmd.Flags().Duration("keyword-delay", config.DefaultKeywordDelay,
		"Delay between keywords")
	cmd.Flags().DurationP("timeout", "t", config.DefaultFetchTimeout,
		"Timeout for each result page request")
	cmd.Flags().Duration("audit-timeout", config.DefaultAuditTimeout,
		"Timeout for each HTTPS audit")
	cmd.Flags().String("dump-dir", "",
		"Directory for raw result pages that produced no entries")

	addStoreFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	if all && len(args) > 0 {
		return errors.New("--all cannot be combined with keyword arguments")
	}
	if !all && len(args) == 0 {
		return errors.New("no keywords provided (specify keyword IDs or queries, or use --all)")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg)

	ctx, cancel := signalContext(logger)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var source pipeline.KeywordSource = store
	if !all {
		keywords, err := resolveCrawlTargets(ctx, store, args, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		source = keywordList(keywords)
	}

	output, closeOutput, err := openReportOutput(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	runner := pipeline.NewRunnerFromConfig(cfg, store, nil, logger)
	return crawlKeywords(ctx, runner, source, cfg, newReportWriter(cfg, output), cmd.ErrOrStderr(), logger)
}

// crawlKeywords crawls every keyword of source in order, writing a report
// per run, and fails when any crawl failed.
func crawlKeywords(ctx context.Context, crawler pipeline.Crawler, source pipeline.KeywordSource, cfg *config.Config, writer report.Writer, status io.Writer, logger *slog.Logger) error {
	sweeper := pipeline.NewSweeper(crawler, source,
		pipeline.WithKeywordDelay(cfg.KeywordDelay),
		pipeline.WithSweepLogger(logger),
		pipeline.WithSweepCallback(func(kw *model.Keyword, run *model.CrawlRun, err error) {
			if err != nil {
				fmt.Fprintf(status, "Crawl of %q failed: %v\n", kw.Query, err)
			} else {
				fmt.Fprintf(status, "Crawl of %q completed: %s\n", kw.Query, run.Flag.Description())
			}
			// A run that could not be created has nothing to report
			if run == nil {
				return
			}
			if _, werr := writer.Write(run); werr != nil {
				logger.Error("report failed", "query", kw.Query, "error", werr)
			}
		}),
	)

	summary, err := sweeper.Sweep(ctx)
	if summary.Total > 1 {
		fmt.Fprintf(status, "\nCrawled %d keywords: %d succeeded, %d failed\n",
			summary.Total, summary.Succeeded, summary.Failed)
	}
	if err != nil {
		return err
	}
	if summary.Total == 0 {
		fmt.Fprintln(status, "No keywords to crawl.")
		return nil
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d crawls failed", summary.Failed, summary.Total)
	}
	return nil
}

// resolveCrawlTargets resolves every reference before anything is crawled.
// Unknown queries are registered as pending keywords.
func resolveCrawlTargets(ctx context.Context, store database.KeywordStore, refs []string, status io.Writer) ([]*model.Keyword, error) {
	keywords := make([]*model.Keyword, 0, len(refs))
	for _, ref := range refs {
		kw, err := resolveKeyword(ctx, store, ref)
		if err == nil {
			keywords = append(keywords, kw)
			continue
		}
		if !errors.Is(err, database.ErrKeywordNotFound) {
			return nil, err
		}
		if _, parseErr := uuid.Parse(ref); parseErr == nil {
			return nil, fmt.Errorf("keyword %s: %w", ref, err)
		}

		kw = model.NewKeyword(ref)
		kw.Status = model.KeywordPending
		if err := store.CreateKeyword(ctx, kw); err != nil {
			return nil, fmt.Errorf("failed to register %q: %w", ref, err)
		}
		fmt.Fprintf(status, "Registered new keyword %q (%s) as pending\n", kw.Query, kw.ID)
		keywords = append(keywords, kw)
	}
	return keywords, nil
}

// keywordList serves a fixed set of keywords to a sweep.
type keywordList []*model.Keyword

// ListActiveKeywords returns the list unchanged; explicitly named
// keywords are crawled regardless of their status.
func (l keywordList) ListActiveKeywords(context.Context) ([]*model.Keyword, error) {
	return l, nil
}
