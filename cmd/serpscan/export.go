package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/serpscan/internal/config"
	"github.com/nao1215/serpscan/internal/database"
	"github.com/nao1215/serpscan/internal/export"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export keywords with their latest results",
		Long: `Export writes one row per keyword with its latest successful crawl:
flag, completion time and HTTPS issues.

Examples:
  # CSV to keywords.csv
  serpscan export

  # Excel workbook at a chosen path
  serpscan export --format xlsx -o reports/keywords.xlsx

  # CSV to stdout
  serpscan export -o -`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	cmd.Flags().StringP("format", "f", string(export.FormatCSV), "Output format: csv or xlsx")
	cmd.Flags().StringP("output", "o", "",
		"Output file path, - for stdout (default: keywords.<format>)")
	addStoreFlags(cmd)

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	formatFlag, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if outputPath == "" {
		outputPath = format.Filename()
	}

	return withStore(cmd, func(ctx context.Context, _ *config.Config, store database.Store) error {
		rows, err := export.Rows(ctx, store)
		if err != nil {
			return err
		}

		if outputPath == "-" {
			return export.Write(cmd.OutOrStdout(), format, rows)
		}

		dir := filepath.Dir(outputPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		if err := export.Write(f, format, rows); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write export: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d keywords to %s\n", len(rows), outputPath)
		return nil
	})
}
