package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/serpscan/internal/api"
	"github.com/nao1215/serpscan/internal/config"
	"github.com/nao1215/serpscan/internal/metrics"
	"github.com/nao1215/serpscan/internal/pipeline"
	"github.com/nao1215/serpscan/internal/scheduler"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily sweep",
		Long: `Serve starts the HTTP API and, unless --no-schedule is given, the
scheduler that crawls every active keyword once a day.

The API exposes keywords, crawl runs, on-demand crawls, exports and
Prometheus metrics:

  GET  /healthz
  GET  /metrics
  GET  /api/v1/keywords
  GET  /api/v1/keywords/export?format=csv|xlsx
  GET  /api/v1/keywords/:id/runs?limit=N
  POST /api/v1/keywords/:id/crawl
  GET  /api/v1/crawl-runs/:id

Examples:
  # API on :8080, sweep at 03:00 local time
  serpscan serve

  # Shared PostgreSQL store and Redis-backed rate limiting
  serpscan serve --database-url postgres://serpscan@db/serpscan \
    --redis-url redis://cache:6379/0 --log-json`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("listen", config.DefaultListenAddr, "API listen address")
	cmd.Flags().String("schedule-at", config.DefaultScheduleAt, "Daily sweep time (HH:MM, local time)")
	cmd.Flags().Bool("no-schedule", false, "Serve the API without the daily sweep")
	cmd.Flags().String("redis-url", "", "Redis URL for rate-limit state shared between instances")

	cmd.Flags().String("base-url", "", "Search endpoint (default: "+config.DefaultBaseURL+")")
	cmd.Flags().IntSlice("pages", config.DefaultPages(), "Result pages to crawl")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay, "Delay between requests of one crawl")
	cmd.Flags().Duration("keyword-delay", config.DefaultKeywordDelay, "Delay between keywords of a sweep")
	cmd.Flags().DurationP("timeout", "t", config.DefaultFetchTimeout, "Timeout for each result page request")
	cmd.Flags().Duration("audit-timeout", config.DefaultAuditTimeout, "Timeout for each HTTPS audit")
	cmd.Flags().String("dump-dir", "", "Directory for raw result pages that produced no entries")
	addStoreFlags(cmd)

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	noSchedule, err := cmd.Flags().GetBool("no-schedule")
	if err != nil {
		return err
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.Register(reg, store)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	runner := pipeline.NewRunnerFromConfig(cfg, store, recorder, logger)

	opts := []api.Option{
		api.WithGatherer(reg),
		api.WithVersion(getVersion()),
		api.WithLogger(logger),
		api.WithAccessLog(cmd.ErrOrStderr()),
	}
	if cfg.RedisURL != "" {
		storage, err := api.NewRedisStorage(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer storage.Close()
		opts = append(opts, api.WithLimiterStorage(storage))
		logger.Info("rate limiter uses redis", "redis_url", cfg.RedisURL)
	}
	server := api.New(cfg, store, runner, opts...)

	var sched *scheduler.Scheduler
	if noSchedule {
		logger.Info("daily sweep disabled")
	} else {
		sweeper := pipeline.NewSweeper(runner, store,
			pipeline.WithKeywordDelay(cfg.KeywordDelay),
			pipeline.WithSweepLogger(logger),
		)
		if sched, err = scheduler.New(sweeper, cfg.ScheduleAt, scheduler.WithLogger(logger)); err != nil {
			return fmt.Errorf("invalid schedule: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if sched != nil {
		g.Go(func() error {
			return sched.Run(gctx)
		})
	}

	logger.Info("serpscan serving", "addr", cfg.ListenAddr, "version", getVersion())

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
