package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/connharvest/internal/model"
)

// defaultListLimit caps the error list unless the writer is verbose.
const defaultListLimit = 10

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose lists every email and error instead of a sample.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
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

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writePages(&sb, report)
	w.writeEmails(&sb, report)
	w.writeErrors(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	rule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	rule(sb, "-")
	sb.WriteString("\n")
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                      CONNECTION HARVEST STATUS\n")
	rule(sb, "=")
	sb.WriteString("\n")

	sources := "-"
	if len(report.SourceProfiles) > 0 {
		sources = strings.Join(report.SourceProfiles, ", ")
	}
	fmt.Fprintf(sb, "Source Profile: %s\n", sources)
	fmt.Fprintf(sb, "Generated:      %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Last Page:      %d\n", report.Progress.LastPage)

	switch {
	case report.Progress.TotalConnections == 0:
		sb.WriteString("Status:         Not started\n")
	case report.Done():
		sb.WriteString("Status:         Complete\n")
	default:
		sb.WriteString("Status:         In progress (resume with the same command)\n")
	}
	sb.WriteString("\n")
}

// writeSummary writes the status counts.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.CrawlReport) {
	section(sb, "STATUS SUMMARY")

	total := report.Progress.TotalConnections
	fmt.Fprintf(sb, "  CONNECTIONS: %d\n", total)
	fmt.Fprintf(sb, "  COMPLETED:   %d (%d%%)\n", report.CompletedCount, percent(report.CompletedCount, total))
	fmt.Fprintf(sb, "  PENDING:     %d\n", report.PendingCount)
	fmt.Fprintf(sb, "  ERRORS:      %d\n", report.ErrorCount)
	fmt.Fprintf(sb, "  EMAILS:      %d\n", report.EmailCount)
	sb.WriteString("\n")
}

// writePages writes the per-page breakdown.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Pages) == 0 && !w.showEmpty {
		return
	}

	section(sb, "PAGES")

	if len(report.Pages) == 0 {
		sb.WriteString("  No pages crawled\n\n")
		return
	}
	fmt.Fprintf(sb, "  %-6s %7s %10s %8s %7s\n", "PAGE", "TOTAL", "COMPLETED", "PENDING", "ERRORS")
	for _, p := range report.Pages {
		fmt.Fprintf(sb, "  %-6d %7d %10d %8d %7d\n", p.Page, p.Total, p.Completed, p.Pending, p.Errors)
	}
	sb.WriteString("\n")
}

// writeEmails writes the resolved contacts. They are only listed in verbose mode.
func (w *SimpleWriter) writeEmails(sb *strings.Builder, report *model.CrawlReport) {
	if !w.verbose || (len(report.Emails) == 0 && !w.showEmpty) {
		return
	}

	section(sb, "EMAILS")

	if len(report.Emails) == 0 {
		sb.WriteString("  No emails found\n\n")
		return
	}
	for _, e := range report.Emails {
		fmt.Fprintf(sb, "  [+] %s <%s>\n", e.FullName, e.Email)
	}
	sb.WriteString("\n")
}

// writeErrors writes the connections whose lookup failed.
func (w *SimpleWriter) writeErrors(sb *strings.Builder, report *model.CrawlReport) {
	if !report.HasErrors() && !w.showEmpty {
		return
	}

	section(sb, "FAILED LOOKUPS")

	if !report.HasErrors() {
		sb.WriteString("  No failed lookups\n\n")
		return
	}

	list := report.Errored
	if !w.verbose && len(list) > defaultListLimit {
		list = list[:defaultListLimit]
	}
	for _, r := range list {
		fmt.Fprintf(sb, "  [!] %s (page %d)\n", r.FullName, r.PageFound)
		fmt.Fprintf(sb, "      %s\n", r.ProfileURL)
	}
	if rest := len(report.Errored) - len(list); rest > 0 {
		fmt.Fprintf(sb, "  ... and %d more (use -v to list all)\n", rest)
	}
	sb.WriteString("\n  Rerun with --retry-errors to look them up again.\n\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by connharvest\n")
	sb.WriteString("https://github.com/nao1215/connharvest\n")
	rule(sb, "=")
}
