package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/quickblock/internal/model"
)

// SimpleWriter outputs plain text for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists every suppressed fragment instead of a count per channel.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every suppressed fragment.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one page report.
func (w *SimpleWriter) Write(report *model.FilterReport) (int, error) {
	var sb strings.Builder
	w.writePage(&sb, report)
	return io.WriteString(w.output, sb.String())
}

// WriteBatch outputs every page followed by the totals.
func (w *SimpleWriter) WriteBatch(reports []*model.FilterReport) (int, error) {
	pages := nonNil(reports)

	var sb strings.Builder
	for _, r := range pages {
		w.writePage(&sb, r)
	}
	w.writeSummary(&sb, model.Summarize(pages))
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writePage(sb *strings.Builder, r *model.FilterReport) {
	fmt.Fprintf(sb, "%s\n", r.Source)
	if r.Location != "" && r.Location != r.Source {
		fmt.Fprintf(sb, "  Location:   %s\n", r.Location)
	}
	if r.Failed() {
		fmt.Fprintf(sb, "  Status:     ERROR - %s\n\n", r.Error)
		return
	}

	fmt.Fprintf(sb, "  Blocklist:  %d channels\n", r.Blocklist)
	fmt.Fprintf(sb, "  Pass:       %s\n", r.Stats)
	fmt.Fprintf(sb, "  Controls:   %d", r.Controls)
	if r.PageControl {
		sb.WriteString(" (+ channel page)")
	}
	sb.WriteString("\n")
	if r.OutputPath != "" {
		fmt.Fprintf(sb, "  Output:     %s\n", r.OutputPath)
	}

	if len(r.Suppressed) == 0 {
		sb.WriteString("  Hidden:     nothing\n\n")
		return
	}
	fmt.Fprintf(sb, "  Hidden:     %d\n", len(r.Suppressed))
	if w.verbose {
		for _, item := range r.Suppressed {
			fmt.Fprintf(sb, "    - %-10s %-30s <%s>\n", item.Tag, identityOf(item), item.Unit)
		}
	} else {
		for _, c := range countByIdentity(r.Suppressed) {
			fmt.Fprintf(sb, "    - %s (%d)\n", c.identity, c.count)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, s model.Summary) {
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Pages: %d (%d failed)  Hidden: %d  Controls: %d\n",
		s.Pages, s.Failed, s.Suppressed, s.Controls)
}

type identityCount struct {
	identity string
	count    int
}

// countByIdentity groups items by displayed identity in first-seen order.
func countByIdentity(items []model.SuppressedItem) []identityCount {
	var out []identityCount
	index := make(map[string]int)
	for _, item := range items {
		id := identityOf(item)
		if i, ok := index[id]; ok {
			out[i].count++
			continue
		}
		index[id] = len(out)
		out = append(out, identityCount{identity: id, count: 1})
	}
	return out
}
