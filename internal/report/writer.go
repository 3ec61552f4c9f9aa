package report

import (
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/nao1215/serpscan/internal/model"
)

// Writer defines the interface for report output.
// Implementations write crawl runs in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or HTTP
// responses with the same API.
type Writer interface {
	// Write outputs the full report of one run.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.CrawlRun) (int, error)

	// WriteHistory outputs a one-line-per-run summary, newest first as given.
	WriteHistory(runs []*model.CrawlRun) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(run *model.CrawlRun) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteHistory outputs the run history to all configured Writers.
func (m *MultiWriter) WriteHistory(runs []*model.CrawlRun) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteHistory(runs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeLayout is the human-readable timestamp format of text reports.
const timeLayout = "2006-01-02 15:04:05 MST"

// truncateString shortens s to maxLen runes with an ellipsis.
// Titles are often Korean, so the cut never splits a multi-byte rune.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// statusCodeText renders an optional status code.
func statusCodeText(code *int) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(*code)
}

// completedText renders the completion time of a run.
func completedText(run *model.CrawlRun) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Format(timeLayout)
}

// flagText renders the flag of a run, "-" for runs without one.
func flagText(run *model.CrawlRun) string {
	if run.Flag == "" {
		return "-"
	}
	return string(run.Flag)
}
