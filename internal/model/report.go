package model

import (
	"slices"
	"time"
)

// CrawlReport is a summarized view of the durable crawl state.
// It is built from the connections and email tables and consumed by the
// report writers.
type CrawlReport struct {
	// SourceProfiles lists the distinct root profiles found in the table,
	// in order of first appearance.
	SourceProfiles []string `json:"source_profiles,omitempty"`

	// GeneratedAt is when the report was assembled.
	GeneratedAt time.Time `json:"generated_at"`

	// Progress is the resumability summary.
	Progress Progress `json:"progress"`

	// === Status Summary ===

	// PendingCount is the number of rows still waiting for enrichment.
	PendingCount int `json:"pending_count"`

	// CompletedCount is the number of rows whose lookup finished.
	CompletedCount int `json:"completed_count"`

	// ErrorCount is the number of rows whose lookup failed.
	ErrorCount int `json:"error_count"`

	// EmailCount is the number of rows in the email table.
	EmailCount int `json:"email_count"`

	// Pages breaks the status counts down by the page a record was found on.
	Pages []PageStat `json:"pages,omitempty"`

	// Emails lists the resolved contacts.
	Emails []EmailRecord `json:"emails,omitempty"`

	// Errored lists the connections whose last enrichment attempt failed.
	Errored []ConnectionRecord `json:"errored,omitempty"`
}

// PageStat holds the status counts of one result page.
type PageStat struct {
	Page      int `json:"page"`
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Errors    int `json:"errors"`
}

// NewCrawlReport builds a CrawlReport from the stored records.
func NewCrawlReport(records []ConnectionRecord, emails []EmailRecord, now time.Time) *CrawlReport {
	report := &CrawlReport{
		GeneratedAt: now,
		Progress:    SummarizeProgress(records),
		EmailCount:  len(emails),
		Emails:      emails,
	}

	pages := make(map[int]*PageStat)
	for _, r := range records {
		if r.SourceProfile != "" && !slices.Contains(report.SourceProfiles, r.SourceProfile) {
			report.SourceProfiles = append(report.SourceProfiles, r.SourceProfile)
		}

		stat, ok := pages[r.PageFound]
		if !ok {
			stat = &PageStat{Page: r.PageFound}
			pages[r.PageFound] = stat
		}
		stat.Total++

		switch r.EmailStatus {
		case EmailStatusPending:
			report.PendingCount++
			stat.Pending++
		case EmailStatusCompleted:
			report.CompletedCount++
			stat.Completed++
		case EmailStatusError:
			report.ErrorCount++
			stat.Errors++
			report.Errored = append(report.Errored, r)
		}
	}

	report.Pages = make([]PageStat, 0, len(pages))
	for _, stat := range pages {
		report.Pages = append(report.Pages, *stat)
	}
	slices.SortFunc(report.Pages, func(a, b PageStat) int {
		return a.Page - b.Page
	})

	return report
}

// HasErrors reports whether any connection is in the error state.
func (r *CrawlReport) HasErrors() bool {
	return r.ErrorCount > 0
}

// Done reports whether every known connection has been enriched.
func (r *CrawlReport) Done() bool {
	return r.Progress.TotalConnections > 0 && r.PendingCount == 0
}
