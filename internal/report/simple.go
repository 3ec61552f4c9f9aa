package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/serpscan/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
type SimpleWriter struct {
	baseWriter

	// verbose lists every result entry instead of the matched ones only.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists unmatched entries too.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one run in human-readable format.
func (w *SimpleWriter) Write(run *model.CrawlRun) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, "SERPSCAN CRAWL REPORT")
	w.writeRunInfo(&sb, run)
	w.writeEntries(&sb, run)
	w.writeChecks(&sb, run)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteHistory outputs one line per run.
func (w *SimpleWriter) WriteHistory(runs []*model.CrawlRun) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, "SERPSCAN RUN HISTORY")

	if len(runs) == 0 {
		sb.WriteString("  No runs recorded\n\n")
	}
	for _, run := range runs {
		sb.WriteString(fmt.Sprintf("  %s  %-8s %-7s %3d entries %3d matched  %s\n",
			run.StartedAt.Format(timeLayout),
			run.Status,
			flagText(run),
			len(run.Entries),
			run.MatchCount(),
			run.ID,
		))
		if run.Status == model.RunFailure && run.Notes != "" {
			sb.WriteString(fmt.Sprintf("      %s\n", run.Notes))
		}
	}
	sb.WriteString("\n")

	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report banner.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	pad := (70 - len(title)) / 2
	sb.WriteString(strings.Repeat(" ", pad) + title + "\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

// writeSection writes a section title between rules.
func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeRunInfo writes the run identification and verdict.
func (w *SimpleWriter) writeRunInfo(sb *strings.Builder, run *model.CrawlRun) {
	if run.Query != "" {
		sb.WriteString(fmt.Sprintf("Keyword:    %s\n", run.Query))
	}
	sb.WriteString(fmt.Sprintf("Run ID:     %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Started:    %s\n", run.StartedAt.Format(timeLayout)))
	sb.WriteString(fmt.Sprintf("Completed:  %s\n", completedText(run)))

	switch run.Status {
	case model.RunSuccess:
		sb.WriteString("Status:     Success\n")
		sb.WriteString(fmt.Sprintf("Flag:       %s (%s)\n",
			strings.ToUpper(string(run.Flag)), run.Flag.Description()))
	case model.RunFailure:
		sb.WriteString(fmt.Sprintf("Status:     FAILURE - %s\n", run.Notes))
	default:
		sb.WriteString("Status:     Pending\n")
	}

	sb.WriteString("\n")
}

// writeEntries writes the result entries, matched ones marked with '*'.
func (w *SimpleWriter) writeEntries(sb *strings.Builder, run *model.CrawlRun) {
	w.writeSection(sb, fmt.Sprintf("RESULTS (%d entries, %d matched)", len(run.Entries), run.MatchCount()))

	shown := 0
	for _, e := range run.Entries {
		if !e.IsMatch && !w.verbose {
			continue
		}
		shown++

		marker := " "
		if e.IsMatch {
			marker = "*"
		}
		sb.WriteString(fmt.Sprintf("  %s %3d. [p%d] %s\n", marker, e.Rank, e.Page, e.Title))
		sb.WriteString(fmt.Sprintf("          %s -> %s\n", e.DisplayURL, e.LandingURL))
		if e.Reason != "" {
			sb.WriteString(fmt.Sprintf("          %s\n", e.Reason))
		}
	}

	if shown == 0 {
		sb.WriteString("  No matching results\n")
	}
	sb.WriteString("\n")
}

// writeChecks writes the HTTPS audit results.
func (w *SimpleWriter) writeChecks(sb *strings.Builder, run *model.CrawlRun) {
	if len(run.Checks) == 0 {
		return
	}

	w.writeSection(sb, "HTTPS CHECKS")

	for _, c := range run.Checks {
		indicator := "NG"
		if c.Valid() {
			indicator = "OK"
		}
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", indicator, c.URL))
		sb.WriteString(fmt.Sprintf("       Status: %s\n", statusCodeText(c.StatusCode)))
		if c.SSLError != "" {
			sb.WriteString(fmt.Sprintf("       Error:  %s\n", c.SSLError))
		}
		if c.TLSVersion != "" {
			sb.WriteString(fmt.Sprintf("       TLS:    %s", c.TLSVersion))
			if c.CertIssuer != "" {
				sb.WriteString(fmt.Sprintf(", issuer %s", c.CertIssuer))
			}
			if c.CertNotAfter != nil {
				sb.WriteString(fmt.Sprintf(", expires %s", c.CertNotAfter.Format("2006-01-02")))
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by serpscan\n")
	sb.WriteString("https://github.com/nao1215/serpscan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
