package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/serpscan/internal/config"
	"github.com/nao1215/serpscan/internal/database"
	seclog "github.com/nao1215/serpscan/internal/log"
	"github.com/nao1215/serpscan/internal/model"
	"github.com/nao1215/serpscan/internal/report"
)

// loadConfig builds the configuration of a command: defaults, then the
// configuration file, then the environment, then the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.Verbose, err = cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, err
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// applyFlags copies explicitly set command flags into cfg. Flags that a
// command does not define are ignored, so every command shares one loader.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	var err error
	if changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return err
		}
	}
	if changed("database-url") {
		if cfg.DatabaseURL, err = flags.GetString("database-url"); err != nil {
			return err
		}
	}
	if changed("base-url") {
		if cfg.BaseURL, err = flags.GetString("base-url"); err != nil {
			return err
		}
	}
	if changed("pages") {
		if cfg.Pages, err = flags.GetIntSlice("pages"); err != nil {
			return err
		}
	}
	if changed("delay") {
		if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
			return err
		}
	}
	if changed("keyword-delay") {
		if cfg.KeywordDelay, err = flags.GetDuration("keyword-delay"); err != nil {
			return err
		}
	}
	if changed("timeout") {
		if cfg.FetchTimeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if changed("audit-timeout") {
		if cfg.AuditTimeout, err = flags.GetDuration("audit-timeout"); err != nil {
			return err
		}
	}
	if changed("dump-dir") {
		if cfg.DumpDir, err = flags.GetString("dump-dir"); err != nil {
			return err
		}
	}
	if changed("listen") {
		if cfg.ListenAddr, err = flags.GetString("listen"); err != nil {
			return err
		}
	}
	if changed("redis-url") {
		if cfg.RedisURL, err = flags.GetString("redis-url"); err != nil {
			return err
		}
	}
	if changed("schedule-at") {
		if cfg.ScheduleAt, err = flags.GetString("schedule-at"); err != nil {
			return err
		}
	}
	if changed("json") {
		if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
			return err
		}
	}
	if changed("markdown") {
		if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
			return err
		}
	}
	if changed("output") {
		if cfg.ReportFile, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	return nil
}

// addStoreFlags adds the storage flags shared by every command that
// opens the database.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", "",
		"SQLite database directory (default: XDG data directory)")
	cmd.Flags().String("database-url", "",
		"PostgreSQL connection URL, overrides the SQLite database")
}

// addReportFlags adds the report format flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// setupLogger creates the secure logger selected by --log-json and sets
// it as the slog default.
func setupLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	jsonLogs, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		jsonLogs = false
	}

	var logger *slog.Logger
	if jsonLogs {
		logger = seclog.NewSecureJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)
	} else {
		logger = seclog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	}
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// openStore opens PostgreSQL when a database URL is configured, otherwise
// the SQLite database under the data directory.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (database.Store, error) {
	if cfg.UsePostgres() {
		store, err := database.NewPgStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database %s: %w", seclog.RedactURL(cfg.DatabaseURL), err)
		}
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("database opened", "database_url", cfg.DatabaseURL)
		return store, nil
	}

	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database opened", "path", store.Path())
	return store, nil
}

// resolveKeyword finds a keyword by ID or, failing that, by its query text.
func resolveKeyword(ctx context.Context, store database.KeywordStore, ref string) (*model.Keyword, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return store.GetKeyword(ctx, id)
	}

	keywords, err := store.ListKeywords(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.TrimSpace(ref)
	for _, kw := range keywords {
		if strings.EqualFold(kw.Query, needle) {
			return kw, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", database.ErrKeywordNotFound, ref)
}

// openReportOutput returns the report destination: the configured file,
// or out when no file is set. The returned close function is never nil.
func openReportOutput(cfg *config.Config, out io.Writer) (io.Writer, func() error, error) {
	if cfg.ReportFile == "" {
		return out, func() error { return nil }, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports list the tracked business's landing pages, keep them private
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter selects the report writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
