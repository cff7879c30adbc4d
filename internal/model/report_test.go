package model

import (
	"testing"
	"time"
)

func TestNewCrawlReport(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []ConnectionRecord{
		{CanonicalID: "url/a", SourceProfile: "root", PageFound: 1, EmailStatus: EmailStatusCompleted},
		{CanonicalID: "url/b", SourceProfile: "root", PageFound: 1, EmailStatus: EmailStatusError},
		{CanonicalID: "url/c", SourceProfile: "root", PageFound: 2, EmailStatus: EmailStatusPending},
		{CanonicalID: "url/d", SourceProfile: "other", PageFound: 2, EmailStatus: EmailStatusCompleted},
	}
	emails := []EmailRecord{{CanonicalID: "url/a", Email: "a@example.com"}}

	report := NewCrawlReport(records, emails, now)

	t.Run("status counts", func(t *testing.T) {
		t.Parallel()
		if report.PendingCount != 1 || report.CompletedCount != 2 || report.ErrorCount != 1 {
			t.Errorf("unexpected counts: pending=%d completed=%d error=%d",
				report.PendingCount, report.CompletedCount, report.ErrorCount)
		}
		if report.EmailCount != 1 {
			t.Errorf("expected 1 email, got %d", report.EmailCount)
		}
	})

	t.Run("progress", func(t *testing.T) {
		t.Parallel()
		want := Progress{LastPage: 2, TotalConnections: 4, ProcessedEmails: 2}
		if report.Progress != want {
			t.Errorf("got %+v, want %+v", report.Progress, want)
		}
	})

	t.Run("pages are sorted", func(t *testing.T) {
		t.Parallel()
		if len(report.Pages) != 2 {
			t.Fatalf("expected 2 pages, got %d", len(report.Pages))
		}
		if report.Pages[0].Page != 1 || report.Pages[1].Page != 2 {
			t.Errorf("unexpected page order: %+v", report.Pages)
		}
		if report.Pages[0].Errors != 1 || report.Pages[1].Pending != 1 {
			t.Errorf("unexpected page stats: %+v", report.Pages)
		}
	})

	t.Run("source profiles keep first appearance order", func(t *testing.T) {
		t.Parallel()
		if len(report.SourceProfiles) != 2 || report.SourceProfiles[0] != "root" || report.SourceProfiles[1] != "other" {
			t.Errorf("unexpected source profiles: %v", report.SourceProfiles)
		}
	})

	t.Run("errored rows are listed", func(t *testing.T) {
		t.Parallel()
		if !report.HasErrors() || len(report.Errored) != 1 || report.Errored[0].CanonicalID != "url/b" {
			t.Errorf("unexpected errored rows: %+v", report.Errored)
		}
	})

	t.Run("not done while rows are pending", func(t *testing.T) {
		t.Parallel()
		if report.Done() {
			t.Error("expected Done() to be false")
		}
	})
}

func TestCrawlReportEmpty(t *testing.T) {
	t.Parallel()

	report := NewCrawlReport(nil, nil, time.Now())
	if report.Done() {
		t.Error("empty report should not be done")
	}
	if report.HasErrors() {
		t.Error("empty report should have no errors")
	}
	if len(report.Pages) != 0 {
		t.Errorf("expected no pages, got %d", len(report.Pages))
	}
}
