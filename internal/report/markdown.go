package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/quickblock/internal/model"
)

// MarkdownWriter outputs reports as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs one page report.
func (w *MarkdownWriter) Write(report *model.FilterReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("quickblock Report")
	md.PlainText("")
	w.writePage(md, report)
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteBatch outputs a summary table followed by every page.
func (w *MarkdownWriter) WriteBatch(reports []*model.FilterReport) (int, error) {
	pages := nonNil(reports)
	summary := model.Summarize(pages)

	md := markdown.NewMarkdown(w.output)
	md.H1("quickblock Report")
	md.PlainText("")
	w.writeSummary(md, summary, pages)
	for _, r := range pages {
		w.writePage(md, r)
	}
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s model.Summary, pages []*model.FilterReport) {
	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Pages", "Failed", "Hidden", "Controls"},
		Rows: [][]string{{
			strconv.Itoa(s.Pages),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Suppressed),
			strconv.Itoa(s.Controls),
		}},
	})
	md.PlainText("")

	var all []model.SuppressedItem
	for _, r := range pages {
		all = append(all, r.Suppressed...)
	}
	if len(all) > 0 {
		w.writePieChart(md, all)
	}

	switch {
	case s.Failed > 0:
		md.Warningf("%d of %d page(s) could not be filtered.", s.Failed, s.Pages)
	case s.Suppressed == 0:
		md.Tip("Nothing on these pages comes from a blocked channel.")
	default:
		md.Note(fmt.Sprintf("%d fragment(s) from blocked channels were hidden.", s.Suppressed))
	}
	md.PlainText("")
}

// writePieChart charts hidden fragments by content shape.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, items []model.SuppressedItem) {
	counts := make(map[string]int)
	for _, item := range items {
		counts[item.Tag]++
	}
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Hidden Fragments by Shape"),
		piechart.WithShowData(true),
	)
	for _, tag := range tags {
		chart.LabelAndIntValue(tag, uint64(counts[tag])) //nolint:gosec // counts are positive
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writePage(md *markdown.Markdown, r *model.FilterReport) {
	md.H2(r.Source)
	md.PlainText("")

	status := "✅ Filtered"
	if r.Failed() {
		status = "❌ Error - " + r.Error
	}
	rows := [][]string{
		{"Location", "`" + r.Location + "`"},
		{"Status", status},
	}
	if !r.Failed() {
		rows = append(rows,
			[]string{"Blocklist", strconv.Itoa(r.Blocklist)},
			[]string{"Fragments", strconv.Itoa(r.Stats.Fragments)},
			[]string{"Hidden", strconv.Itoa(len(r.Suppressed))},
			[]string{"Unattributable", strconv.Itoa(r.Stats.Unattributable)},
			[]string{"Controls", strconv.Itoa(r.Controls)},
		)
		if r.OutputPath != "" {
			rows = append(rows, []string{"Output", "`" + r.OutputPath + "`"})
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(r.Suppressed) == 0 {
		return
	}
	hidden := make([][]string, len(r.Suppressed))
	for i, item := range r.Suppressed {
		hidden[i] = []string{item.Tag, identityOf(item), "`" + item.Unit + "`"}
	}
	md.H3("Hidden")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Shape", "Channel", "Hidden Element"},
		Rows:   hidden,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [quickblock](https://github.com/nao1215/quickblock)*")
}
