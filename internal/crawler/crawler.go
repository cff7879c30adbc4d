package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/connharvest/internal/model"
	"github.com/nao1215/connharvest/internal/pacing"
)

// PageReport is delivered after every processed page.
type PageReport struct {
	Page     int               `json:"page"`
	Merge    model.MergeResult `json:"merge"`
	Enrich   EnrichResult      `json:"enrich"`
	Progress model.Progress    `json:"progress"`
}

// RunResult summarizes one Run.
type RunResult struct {
	// SourceProfile is the root profile of the run.
	SourceProfile string `json:"source_profile"`
	// Pages is the number of pages listed and enriched.
	Pages int `json:"pages"`
	// Stop is why the run stopped walking pages.
	Stop StopReason `json:"stop"`
	// Merge totals the merge results of all pages.
	Merge model.MergeResult `json:"merge"`
	// Enrich totals the lookup results of all pages.
	Enrich EnrichResult `json:"enrich"`
	// Start and End are the stored progress before and after the run.
	Start model.Progress `json:"start"`
	End   model.Progress `json:"end"`
}

// Crawler runs the page loop: list, merge, enrich, advance.
// It keeps no state of its own between runs; everything durable lives in
// the RecordStore.
type Crawler struct {
	store     RecordStore
	paginator *Paginator
	enricher  *Enricher
	pace      pacing.Controller
	bands     pacing.Bands
	maxPages  int
	onPage    func(PageReport)
	logger    *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithPacing sets the pacing used between pages.
func WithPacing(c pacing.Controller, b pacing.Bands) Option {
	return func(cr *Crawler) {
		cr.pace = c
		cr.bands = b
	}
}

// WithMaxPages stops the run after n pages. Zero means no limit.
func WithMaxPages(n int) Option {
	return func(cr *Crawler) {
		cr.maxPages = n
	}
}

// WithPageCallback registers fn to receive a PageReport after every page.
func WithPageCallback(fn func(PageReport)) Option {
	return func(cr *Crawler) {
		cr.onPage = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cr *Crawler) {
		cr.logger = l
	}
}

// New returns a Crawler over the given components.
func New(store RecordStore, paginator *Paginator, enricher *Enricher, opts ...Option) *Crawler {
	c := &Crawler{
		store:     store,
		paginator: paginator,
		enricher:  enricher,
		pace:      pacing.NewHuman(),
		bands:     pacing.DefaultBands(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run walks the result pages starting at the paginator's current page.
// Only store failures and context cancellation are returned as errors; the
// partial RunResult is returned alongside them.
func (c *Crawler) Run(ctx context.Context, sourceProfile string) (*RunResult, error) {
	result := &RunResult{SourceProfile: sourceProfile}

	start, err := c.store.ProgressSummary(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to read progress: %w", err)
	}
	result.Start = start
	result.End = start
	c.logger.Info("crawl starting",
		"source_profile", sourceProfile,
		"total_connections", start.TotalConnections,
		"processed_emails", start.ProcessedEmails,
		"last_page", start.LastPage,
	)

	for {
		page := c.paginator.Page()

		items, err := c.paginator.List(ctx)
		if err != nil {
			return result, err
		}
		if c.paginator.State() == StateExhausted {
			break
		}

		merge, err := c.store.MergeDiscovered(ctx, items, sourceProfile, page)
		if err != nil {
			return result, fmt.Errorf("failed to merge page %d: %w", page, err)
		}
		result.Merge.New += merge.New
		result.Merge.Duplicate += merge.Duplicate

		enrich, err := c.enricher.ProcessPage(ctx, page)
		result.Enrich.Add(enrich)
		if err != nil {
			return result, err
		}

		progress, err := c.store.ProgressSummary(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to read progress: %w", err)
		}
		result.End = progress
		result.Pages++

		report := PageReport{Page: page, Merge: merge, Enrich: enrich, Progress: progress}
		c.logger.Info("page done",
			"page", page,
			"new", merge.New,
			"duplicate", merge.Duplicate,
			"emails_found", enrich.Found,
			"lookup_errors", enrich.Errors,
		)
		if c.onPage != nil {
			c.onPage(report)
		}

		if page > 1 {
			if err := pacing.Wait(ctx, c.pace, c.bands.BetweenPages); err != nil {
				return result, err
			}
		}

		if c.maxPages > 0 && result.Pages >= c.maxPages {
			result.Stop = StopMaxPages
			c.logger.Info("page limit reached", "max_pages", c.maxPages)
			return result, nil
		}

		more, err := c.paginator.Advance(ctx)
		if err != nil {
			return result, err
		}
		if !more {
			break
		}
	}

	result.Stop = c.paginator.Reason()
	return result, nil
}
