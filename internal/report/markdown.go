package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/connharvest/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writePages(md, report)
	w.writeEmails(md, report)
	w.writeErrors(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Connection Harvest Report")
	md.PlainText("")

	sources := "-"
	if len(report.SourceProfiles) > 0 {
		quoted := make([]string, len(report.SourceProfiles))
		for i, s := range report.SourceProfiles {
			quoted[i] = "`" + s + "`"
		}
		sources = strings.Join(quoted, ", ")
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source Profile", sources},
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Last Page", strconv.Itoa(report.Progress.LastPage)},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.CrawlReport) string {
	switch {
	case report.Progress.TotalConnections == 0:
		return "⏸️ Not started"
	case report.Done():
		return "✅ Complete"
	default:
		return "🔄 In progress"
	}
}

// writeSummary writes the status summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Status Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows: [][]string{
			{"✅ Completed", strconv.Itoa(report.CompletedCount)},
			{"⏳ Pending", strconv.Itoa(report.PendingCount)},
			{"❌ Error", strconv.Itoa(report.ErrorCount)},
			{"📧 Emails", strconv.Itoa(report.EmailCount)},
			{"**Total**", "**" + strconv.Itoa(report.Progress.TotalConnections) + "**"},
		},
	})
	md.PlainText("")

	if report.Progress.TotalConnections > 0 {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart for the status distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CrawlReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Enrichment Status"),
		piechart.WithShowData(true),
	)

	if report.CompletedCount > 0 {
		chart.LabelAndIntValue("Completed", uint64(report.CompletedCount))
	}
	if report.PendingCount > 0 {
		chart.LabelAndIntValue("Pending", uint64(report.PendingCount))
	}
	if report.ErrorCount > 0 {
		chart.LabelAndIntValue("Error", uint64(report.ErrorCount))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert that tells the reader what to do next.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	switch {
	case report.Progress.TotalConnections == 0:
		md.Note("No connections have been harvested yet.")
	case report.HasErrors():
		md.Warningf(
			"%d lookup(s) failed. Rerun the crawl with --retry-errors to try them again.",
			report.ErrorCount,
		)
	case !report.Done():
		md.Importantf(
			"%d connection(s) are still pending. Rerun the crawl to resume.",
			report.PendingCount,
		)
	default:
		md.Tip("Every harvested connection has been looked up.")
	}
	md.PlainText("")
}

// writePages writes the per-page breakdown.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Pages))
	for i, p := range report.Pages {
		rows[i] = []string{
			strconv.Itoa(p.Page),
			strconv.Itoa(p.Total),
			strconv.Itoa(p.Completed),
			strconv.Itoa(p.Pending),
			strconv.Itoa(p.Errors),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "Total", "Completed", "Pending", "Errors"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeEmails writes the resolved contacts.
func (w *MarkdownWriter) writeEmails(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Emails")
	md.PlainText("")

	if len(report.Emails) == 0 {
		md.PlainText("No emails found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Emails))
	for i, e := range report.Emails {
		rows[i] = []string{
			truncateString(e.FullName, 40),
			e.Email,
			e.DateExtracted.String(),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Name", "Email", "Extracted"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeErrors writes the failed lookups inside a collapsible block.
func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, report *model.CrawlReport) {
	if !report.HasErrors() {
		return
	}

	lines := make([]string, len(report.Errored))
	for i, r := range report.Errored {
		lines[i] = "- " + r.FullName + " (page " + strconv.Itoa(r.PageFound) + "): " + r.ProfileURL
	}
	md.H2("Failed Lookups")
	md.PlainText("")
	md.Details("Show "+strconv.Itoa(len(lines))+" failed lookup(s)", strings.Join(lines, "\n"))
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("*Report generated by [connharvest](https://github.com/nao1215/connharvest)*")
}
