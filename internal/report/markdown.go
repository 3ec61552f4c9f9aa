package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/serpscan/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs one run in Markdown format.
func (w *MarkdownWriter) Write(run *model.CrawlRun) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeAlert(md, run)
	w.writeEntries(md, run)
	w.writeChecks(md, run)
	w.writeIssues(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteHistory outputs the runs as a Markdown table.
func (w *MarkdownWriter) WriteHistory(runs []*model.CrawlRun) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("serpscan Run History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		md.PlainText("")
	} else {
		rows := make([][]string, len(runs))
		for i, run := range runs {
			rows[i] = []string{
				run.StartedAt.Format(timeLayout),
				string(run.Status),
				flagText(run),
				strconv.Itoa(len(run.Entries)),
				strconv.Itoa(run.MatchCount()),
				"`" + run.ID.String() + "`",
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Started", "Status", "Flag", "Entries", "Matched", "Run ID"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.CrawlRun) {
	md.H1("serpscan Crawl Report")
	md.PlainText("")

	rows := make([][]string, 0, 6)
	if run.Query != "" {
		rows = append(rows, []string{"Keyword", run.Query})
	}
	rows = append(rows,
		[]string{"Run ID", "`" + run.ID.String() + "`"},
		[]string{"Started", run.StartedAt.Format(timeLayout)},
		[]string{"Completed", completedText(run)},
		[]string{"Status", w.getStatusText(run)},
		[]string{"Flag", flagText(run)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// getStatusText returns the status text based on run state.
func (w *MarkdownWriter) getStatusText(run *model.CrawlRun) string {
	switch run.Status {
	case model.RunSuccess:
		return "✅ Success"
	case model.RunFailure:
		return "❌ Failure - " + run.Notes
	default:
		return "⏳ Pending"
	}
}

// writeAlert writes an alert matching the flag.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.CrawlRun) {
	if run.Status == model.RunFailure {
		md.Warningf("The crawl failed: %s", run.Notes)
		md.PlainText("")
		return
	}

	switch run.Flag {
	case model.FlagPurple:
		md.Cautionf("HTTPS or certificate issue detected on %d matched landing page(s).",
			len(run.HTTPSIssues))
	case model.FlagYellow:
		md.Importantf("%d result(s) matched. All matched landing pages are served safely over HTTPS.",
			run.MatchCount())
	case model.FlagGreen:
		md.Note("No result matched the tracked business.")
	default:
		return
	}
	md.PlainText("")
}

// writeEntries writes the result table and a match distribution chart.
func (w *MarkdownWriter) writeEntries(md *markdown.Markdown, run *model.CrawlRun) {
	md.H2("Results")
	md.PlainText("")

	if len(run.Entries) == 0 {
		md.PlainText("No results parsed.")
		md.PlainText("")
		return
	}

	w.writePieChart(md, run)

	rows := make([][]string, len(run.Entries))
	for i, e := range run.Entries {
		matched := "-"
		if e.IsMatch {
			matched = "✅ " + e.Reason
		}
		rows[i] = []string{
			strconv.Itoa(e.Rank),
			strconv.Itoa(e.Page),
			truncateString(e.Title, 50),
			truncateString(e.DisplayURL, 40),
			matched,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Rank", "Page", "Title", "Display URL", "Match"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of matched against other results.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, run *model.CrawlRun) {
	matched := run.MatchCount()
	others := len(run.Entries) - matched

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Result Classification"),
		piechart.WithShowData(true),
	)
	if matched > 0 {
		chart.LabelAndIntValue("Matched", uint64(matched))
	}
	if others > 0 {
		chart.LabelAndIntValue("Other", uint64(others))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeChecks writes the HTTPS audit table.
func (w *MarkdownWriter) writeChecks(md *markdown.Markdown, run *model.CrawlRun) {
	if len(run.Checks) == 0 {
		return
	}

	md.H2("HTTPS Checks")
	md.PlainText("")

	rows := make([][]string, len(run.Checks))
	for i, c := range run.Checks {
		valid := "❌"
		if c.Valid() {
			valid = "✅"
		}
		tlsVersion := c.TLSVersion
		if tlsVersion == "" {
			tlsVersion = "-"
		}
		rows[i] = []string{
			truncateString(c.URL, 60),
			c.Protocol,
			statusCodeText(c.StatusCode),
			valid,
			tlsVersion,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Protocol", "Status", "Valid", "TLS"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeIssues writes the failing URLs with their errors.
func (w *MarkdownWriter) writeIssues(md *markdown.Markdown, run *model.CrawlRun) {
	if len(run.HTTPSIssues) == 0 {
		return
	}

	md.H2("HTTPS Issues")
	md.PlainText("")

	// Checks keep audit order, so walk them instead of the map.
	items := make([]string, 0, len(run.HTTPSIssues))
	for _, c := range run.Checks {
		if msg, ok := run.HTTPSIssues[c.URL]; ok {
			items = append(items, "`"+c.URL+"`: "+msg)
		}
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [serpscan](https://github.com/nao1215/serpscan)*")
}
