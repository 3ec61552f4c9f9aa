package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/serpscan/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because the model types already carry their JSON tags and
// the API serializes the same types through fiber, which also defaults to
// encoding/json.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version, when set, wraps output in a JSONReport envelope.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentString = "  "
	}
}

// WithVersion wraps every report in a JSONReport carrying version.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one run in JSON format.
func (w *JSONWriter) Write(run *model.CrawlRun) (int, error) {
	if w.version != "" {
		return w.writeJSON(&JSONReport{
			Version:     w.version,
			GeneratedAt: time.Now().UTC(),
			Runs:        []*model.CrawlRun{run},
		})
	}
	return w.writeJSON(run)
}

// WriteHistory outputs the runs as a JSON array.
func (w *JSONWriter) WriteHistory(runs []*model.CrawlRun) (int, error) {
	if runs == nil {
		runs = make([]*model.CrawlRun, 0)
	}
	if w.version != "" {
		return w.writeJSON(&JSONReport{
			Version:     w.version,
			GeneratedAt: time.Now().UTC(),
			Runs:        runs,
		})
	}
	return w.writeJSON(runs)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, "", w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONReport is the envelope written when a version is configured.
//
// Design decision: We wrap runs rather than adding fields to CrawlRun
// because output metadata does not belong in the stored record.
type JSONReport struct {
	// Version is the serpscan version that generated this report.
	Version string `json:"version"`

	// GeneratedAt is when the report was written.
	GeneratedAt time.Time `json:"generated_at"`

	// Runs holds one run for crawl reports or the history for run listings.
	Runs []*model.CrawlRun `json:"runs"`
}
