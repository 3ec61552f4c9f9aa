package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	seclog "github.com/nao1215/serpscan/internal/log"
)

// NewRootCmd creates the root command for serpscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serpscan",
		Short: "Search result monitor with HTTPS auditing",
		Long: `serpscan monitors where a business appears in search engine results.

For every tracked keyword it fetches the first result pages, recognises the
results that belong to the business by name or domain, audits the HTTPS
setup of their landing pages and stores a flagged crawl run:

  green   no result matched
  yellow  matched results, all landing pages served safely over HTTPS
  purple  at least one matched landing page has an HTTPS or certificate issue

Runs are stored in SQLite by default, or PostgreSQL when database_url is set.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .serpscan in current or home directory)")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewKeywordCmd())
	cmd.AddCommand(NewRunsCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorMessage(err))
		os.Exit(1)
	}
}

// errorMessage renders a command error for the terminal. Errors bypass the
// secure logger, so connection URL passwords are masked here.
func errorMessage(err error) string {
	return seclog.RedactURL(err.Error())
}
