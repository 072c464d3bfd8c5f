package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/quickblock/internal/model"
)

// JSONWriter outputs reports as JSON for other tools.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
	version      string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the generating version in batch output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// BatchReport is the JSON document written for several pages.
type BatchReport struct {
	// Version is the quickblock version that generated the report.
	Version string `json:"version,omitempty"`

	// Summary aggregates the pages.
	Summary model.Summary `json:"summary"`

	// Pages are the per-page reports in input order.
	Pages []*model.FilterReport `json:"pages"`
}

// Write outputs one page report.
func (w *JSONWriter) Write(report *model.FilterReport) (int, error) {
	return w.writeJSON(report)
}

// WriteBatch outputs a BatchReport.
func (w *JSONWriter) WriteBatch(reports []*model.FilterReport) (int, error) {
	pages := nonNil(reports)
	return w.writeJSON(&BatchReport{
		Version: w.version,
		Summary: model.Summarize(pages),
		Pages:   pages,
	})
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
