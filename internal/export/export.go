// Package export writes the keyword overview as CSV or XLSX.
//
// Each keyword becomes one row with its latest successful run:
// keyword, category, status, latest_flag, latest_run_completed_at, https_issues.
// Missing values are empty strings, never "null".
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/nao1215/serpscan/internal/database"
	"github.com/nao1215/serpscan/internal/model"
)

// Format selects the output file format.
type Format string

const (
	// FormatCSV is RFC 4180 CSV in UTF-8.
	FormatCSV Format = "csv"

	// FormatXLSX is an Excel workbook with a single sheet.
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet name of XLSX exports.
const SheetName = "keywords"

// ErrUnknownFormat is returned for a format other than csv or xlsx.
var ErrUnknownFormat = errors.New("unknown export format")

// Headers returns the column names of the export.
func Headers() []string {
	return []string{
		"keyword",
		"category",
		"status",
		"latest_flag",
		"latest_run_completed_at",
		"https_issues",
	}
}

// ParseFormat converts user input to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns the default download name for f.
func (f Format) Filename() string {
	return "keywords." + string(f)
}

// BuildRow renders one keyword and its latest successful run, which may be nil.
// Completion times are written in UTC with a Z suffix, and issues as compact
// JSON, so spreadsheets from every deployment compare equal.
func BuildRow(kw *model.Keyword, latest *model.CrawlRun) []string {
	row := []string{kw.Query, kw.Category, string(kw.Status), "", "", ""}
	if latest == nil {
		return row
	}

	row[3] = string(latest.Flag)
	if latest.CompletedAt != nil {
		row[4] = latest.CompletedAt.UTC().Format(time.RFC3339)
	}
	if len(latest.HTTPSIssues) > 0 {
		row[5] = issuesJSON(latest.HTTPSIssues)
	}
	return row
}

// issuesJSON encodes issues with sorted keys and without escaping
// non-ASCII or HTML characters.
func issuesJSON(issues map[string]string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(issues); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Source is the part of the store the export reads.
type Source interface {
	ListKeywords(ctx context.Context) ([]*model.Keyword, error)
	LatestSuccessfulRun(ctx context.Context, keywordID uuid.UUID) (*model.CrawlRun, error)
}

// Rows loads every keyword and its latest successful run.
// The header row is not included.
func Rows(ctx context.Context, src Source) ([][]string, error) {
	keywords, err := src.ListKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}

	rows := make([][]string, 0, len(keywords))
	for _, kw := range keywords {
		run, err := src.LatestSuccessfulRun(ctx, kw.ID)
		if err != nil && !errors.Is(err, database.ErrRunNotFound) {
			return nil, fmt.Errorf("failed to load latest run of %q: %w", kw.Query, err)
		}
		rows = append(rows, BuildRow(kw, run))
	}
	return rows, nil
}

// Write renders rows with the header in format f.
func Write(w io.Writer, f Format, rows [][]string) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// WriteCSV writes the header and rows as CSV.
func WriteCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers()); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteXLSX writes the header and rows as a single-sheet workbook.
func WriteXLSX(w io.Writer, rows [][]string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	write := func(i int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		return f.SetSheetRow(SheetName, cell, &row)
	}

	if err := write(0, Headers()); err != nil {
		return err
	}
	for i, r := range rows {
		if err := write(i+1, r); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return err
	}
	return nil
}
