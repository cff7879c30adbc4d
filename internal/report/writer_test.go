package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/connharvest/internal/model"
)

const testSource = "https://www.linkedin.com/in/source-owner/"

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.CrawlReport {
	today := model.DateOf(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	newRecord := func(name, slug string, page int, status model.EmailStatus) model.ConnectionRecord {
		r := model.NewConnectionRecord(model.Discovered{
			FullName:   name,
			ProfileURL: "https://www.linkedin.com/in/" + slug + "/",
		}, testSource, page, today)
		if status != model.EmailStatusPending {
			r.ApplyEnrichment(status, today)
		}
		return r
	}

	records := []model.ConnectionRecord{
		newRecord("Ada Lovelace", "ada", 1, model.EmailStatusCompleted),
		newRecord("Alan Turing", "alan", 1, model.EmailStatusError),
		newRecord("Grace Hopper", "grace", 2, model.EmailStatusPending),
	}
	emails := []model.EmailRecord{
		model.NewEmailRecord(records[0], "ada@example.com", today),
	}

	return model.NewCrawlReport(records, emails, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"CONNECTION HARVEST STATUS",
			testSource,
			"In progress",
			"STATUS SUMMARY",
			"CONNECTIONS: 3",
			"COMPLETED:   1 (33%)",
			"PENDING:     1",
			"ERRORS:      1",
			"EMAILS:      1",
			"PAGES",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("lists failed lookups", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "FAILED LOOKUPS") {
			t.Error("expected failed lookups section")
		}
		if !strings.Contains(output, "Alan Turing (page 1)") {
			t.Error("expected errored connection to be listed")
		}
		if !strings.Contains(output, "--retry-errors") {
			t.Error("expected retry hint")
		}
	})

	t.Run("emails only in verbose mode", func(t *testing.T) {
		t.Parallel()

		var quiet bytes.Buffer
		if _, err := NewSimpleWriter(&quiet).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(quiet.String(), "ada@example.com") {
			t.Error("expected emails to be hidden without verbose")
		}

		var verbose bytes.Buffer
		if _, err := NewSimpleWriter(&verbose, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(verbose.String(), "Ada Lovelace <ada@example.com>") {
			t.Error("expected email in verbose output")
		}
	})

	t.Run("truncates long error list", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		for range 12 {
			report.Errored = append(report.Errored, report.Errored[0])
		}
		report.ErrorCount = len(report.Errored)

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "... and 3 more") {
			t.Errorf("expected truncation notice, got:\n%s", buf.String())
		}
	})

	t.Run("empty report", func(t *testing.T) {
		t.Parallel()

		report := model.NewCrawlReport(nil, nil, time.Now())

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "Not started") {
			t.Error("expected not started status")
		}
		if strings.Contains(output, "FAILED LOOKUPS") {
			t.Error("expected no failed lookups section")
		}

		buf.Reset()
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No failed lookups") {
			t.Error("expected empty section with WithShowEmpty")
		}
	})

	t.Run("complete report", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.PendingCount = 0

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Status:         Complete") {
			t.Error("expected complete status")
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Error("expected non-zero byte count")
		}

		output := buf.String()
		for _, want := range []string{
			"# Connection Harvest Report",
			"## Status Summary",
			"```mermaid",
			"Enrichment Status",
			"## Pages",
			"## Emails",
			"ada@example.com",
			"## Failed Lookups",
			"Alan Turing (page 1)",
			"[!WARNING]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("empty report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(model.NewCrawlReport(nil, nil, time.Now())); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if strings.Contains(output, "```mermaid") {
			t.Error("expected no chart for an empty report")
		}
		if !strings.Contains(output, "No pages crawled.") {
			t.Error("expected empty pages notice")
		}
		if !strings.Contains(output, "[!NOTE]") {
			t.Error("expected note alert")
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("compact output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.CrawlReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.ErrorCount != 1 || decoded.EmailCount != 1 {
			t.Errorf("counts = %d errors, %d emails", decoded.ErrorCount, decoded.EmailCount)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected single-line output")
		}
	})

	t.Run("pretty output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"") {
			t.Error("expected indented output")
		}
	})

	t.Run("full writer adds version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewFullJSONWriter(&buf, "v1.2.3").Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded struct {
			Version string             `json:"version"`
			Report  *model.CrawlReport `json:"report"`
		}
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Version != "v1.2.3" {
			t.Errorf("version = %q", decoded.Version)
		}
		if decoded.Report == nil || decoded.Report.Progress.TotalConnections != 3 {
			t.Error("expected wrapped report")
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"日本語のテキスト", 5, "日本..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	t.Parallel()

	if got := percent(1, 3); got != 33 {
		t.Errorf("percent(1, 3) = %d", got)
	}
	if got := percent(5, 0); got != 0 {
		t.Errorf("percent(5, 0) = %d", got)
	}
}
