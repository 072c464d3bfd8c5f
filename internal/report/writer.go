package report

import (
	"io"

	"github.com/nao1215/quickblock/internal/model"
)

// Writer outputs filter reports in one format.
type Writer interface {
	// Write outputs the report of one page.
	Write(report *model.FilterReport) (int, error)

	// WriteBatch outputs the reports of several pages followed by their
	// summary.
	WriteBatch(reports []*model.FilterReport) (int, error)
}

// MultiWriter writes to multiple Writers, e.g. the terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers and stops on the
// first error.
func (m *MultiWriter) Write(report *model.FilterReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteBatch outputs the reports to all configured Writers.
func (m *MultiWriter) WriteBatch(reports []*model.FilterReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteBatch(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// nonNil drops reports of pages that never started.
func nonNil(reports []*model.FilterReport) []*model.FilterReport {
	out := make([]*model.FilterReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// identityOf returns how an item is shown: handle with an @, else the name.
func identityOf(item model.SuppressedItem) string {
	if item.Handle != "" {
		return "@" + item.Handle
	}
	return item.DisplayName
}
