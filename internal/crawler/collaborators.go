package crawler

import (
	"context"
	"time"

	"github.com/nao1215/connharvest/internal/model"
	"github.com/nao1215/connharvest/internal/pacing"
)

// Navigator drives the single browsing context the crawl runs in.
//
// WaitForSelector reports false, not an error, when selector does not appear
// within timeout. Errors are reserved for a broken browser or a canceled
// context.
type Navigator interface {
	Goto(ctx context.Context, url string) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	Click(ctx context.Context, selector string) error
	Hover(ctx context.Context, selector string) error
	CurrentAddress(ctx context.Context) (string, error)
	Attribute(ctx context.Context, selector, name string) (string, bool, error)
	Disabled(ctx context.Context, selector string) (bool, error)
	Scroll(ctx context.Context) error
	MoveMouse(ctx context.Context, to pacing.Point) error
	Viewport() pacing.Viewport
}

// Extractor reads structured data from the current page.
type Extractor interface {
	// ExtractListItems returns at most limit connections from the items
	// matched by selector.
	ExtractListItems(ctx context.Context, selector string, limit int) ([]model.Discovered, error)
	// ExtractEmail returns the contact email of the current detail view,
	// or false when the view shows none.
	ExtractEmail(ctx context.Context) (string, bool, error)
}

// Session reports and establishes the authenticated state of the browser.
type Session interface {
	IsAuthenticated(ctx context.Context) (bool, error)
	// AwaitManualAuthentication opens the login view and blocks until the
	// operator confirms they have signed in.
	AwaitManualAuthentication(ctx context.Context) error
}

// RecordStore is the durable crawl state consumed by the engine.
// store.RecordStore and database.CrawlDB implement it.
type RecordStore interface {
	MergeDiscovered(ctx context.Context, items []model.Discovered, sourceProfile string, page int) (model.MergeResult, error)
	MarkEnrichment(ctx context.Context, canonicalID, email string, status model.EmailStatus) error
	PendingForPage(ctx context.Context, page int) ([]model.ConnectionRecord, error)
	RecordsForPage(ctx context.Context, page int, statuses ...model.EmailStatus) ([]model.ConnectionRecord, error)
	ProgressSummary(ctx context.Context) (model.Progress, error)
}
