package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/connharvest/internal/model"
	"github.com/nao1215/connharvest/internal/pacing"
)

// EnrichResult counts the outcome of one ProcessPage call.
type EnrichResult struct {
	// Attempted is the number of records looked up.
	Attempted int `json:"attempted"`
	// Completed is the number of lookups that finished, with or without an email.
	Completed int `json:"completed"`
	// Found is the number of completed lookups that produced an email.
	Found int `json:"found"`
	// Errors is the number of lookups that failed.
	Errors int `json:"errors"`
}

// Add accumulates other into r.
func (r *EnrichResult) Add(other EnrichResult) {
	r.Attempted += other.Attempted
	r.Completed += other.Completed
	r.Found += other.Found
	r.Errors += other.Errors
}

// Enricher visits the contact detail view of each pending record on a page
// and stores what it finds.
//
// A failed lookup marks the record as error and the batch continues. Store
// failures abort the batch. The long pause counter carries over between
// pages.
type Enricher struct {
	h           humanizer
	store       RecordStore
	ext         Extractor
	selectors   Selectors
	retryErrors bool

	// untilPause counts the lookups left before the next long pause.
	untilPause int
	drawn      bool
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithEnricherPacing sets the pacing controller and bands.
func WithEnricherPacing(c pacing.Controller, b pacing.Bands) EnricherOption {
	return func(e *Enricher) {
		e.h.pace = c
		e.h.bands = b
	}
}

// WithEnricherSelectors overrides the default selectors.
func WithEnricherSelectors(s Selectors) EnricherOption {
	return func(e *Enricher) {
		e.selectors = s
	}
}

// WithRetryErrors makes the Enricher also pick up records whose previous
// lookup failed.
func WithRetryErrors(retry bool) EnricherOption {
	return func(e *Enricher) {
		e.retryErrors = retry
	}
}

// WithEnricherLogger sets the logger.
func WithEnricherLogger(l *slog.Logger) EnricherOption {
	return func(e *Enricher) {
		e.h.logger = l
	}
}

// NewEnricher returns an Enricher writing to store.
func NewEnricher(store RecordStore, nav Navigator, ext Extractor, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		h: humanizer{
			nav:    nav,
			pace:   pacing.NewHuman(),
			bands:  pacing.DefaultBands(),
			logger: slog.New(slog.DiscardHandler),
		},
		store:     store,
		ext:       ext,
		selectors: DefaultSelectors(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Enricher) queue(ctx context.Context, page int) ([]model.ConnectionRecord, error) {
	if e.retryErrors {
		return e.store.RecordsForPage(ctx, page, model.EmailStatusPending, model.EmailStatusError)
	}
	return e.store.PendingForPage(ctx, page)
}

// ProcessPage looks up every pending record found on page, in storage order.
func (e *Enricher) ProcessPage(ctx context.Context, page int) (EnrichResult, error) {
	var result EnrichResult

	records, err := e.queue(ctx, page)
	if err != nil {
		return result, fmt.Errorf("failed to load pending records for page %d: %w", page, err)
	}
	if len(records) == 0 {
		e.h.logger.Info("no pending lookups", "page", page)
		return result, nil
	}
	e.h.logger.Info("processing lookups", "page", page, "count", len(records))

	if !e.drawn {
		e.untilPause = e.h.pace.LongPauseAfter(e.h.bands.LongPauseEvery)
		e.drawn = true
	}

	// Start from the neutral base view so detail visits do not chain.
	if err := e.h.wait(ctx, e.h.bands.Action); err != nil {
		return result, err
	}
	if err := e.h.nav.Goto(ctx, e.selectors.FeedURL); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		e.h.logger.Warn("failed to open base view", "error", err)
	}
	if err := e.h.wait(ctx, e.h.bands.Settle); err != nil {
		return result, err
	}

	for _, rec := range records {
		value, status, err := e.lookup(ctx, rec)
		if err != nil {
			return result, err
		}
		result.Attempted++

		if err := e.store.MarkEnrichment(ctx, rec.CanonicalID, value, status); err != nil {
			return result, fmt.Errorf("failed to store lookup for %s: %w", rec.CanonicalID, err)
		}

		switch {
		case status == model.EmailStatusError:
			result.Errors++
		case value == model.NotAvailable:
			result.Completed++
		default:
			result.Completed++
			result.Found++
		}
		e.h.logger.Info("lookup finished", "name", rec.FullName, "status", status.String(), "email", value)

		if err := e.h.wait(ctx, e.h.bands.BetweenItems); err != nil {
			return result, err
		}
		if err := e.maybeLongPause(ctx); err != nil {
			return result, err
		}
	}

	return result, nil
}

// lookup visits the detail view of rec and returns the value and status to
// store. Only a canceled context is returned as an error; the record then
// stays pending.
func (e *Enricher) lookup(ctx context.Context, rec model.ConnectionRecord) (string, model.EmailStatus, error) {
	if err := e.h.wait(ctx, e.h.bands.Action); err != nil {
		return "", "", err
	}

	detail := model.DetailURL(rec.CanonicalID, e.selectors.ContactInfo)
	if err := e.h.nav.Goto(ctx, detail); err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		e.h.logger.Warn("failed to open contact details", "name", rec.FullName, "error", err)
		return model.ErrorValue, model.EmailStatusError, nil
	}

	if err := e.h.wait(ctx, e.h.bands.Settle); err != nil {
		return "", "", err
	}
	e.h.wiggle(ctx)
	if err := e.h.wait(ctx, e.h.bands.PreExtract); err != nil {
		return "", "", err
	}

	email, ok, err := e.ext.ExtractEmail(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		e.h.logger.Warn("failed to read contact details", "name", rec.FullName, "error", err)
		return model.ErrorValue, model.EmailStatusError, nil
	}
	if !ok || model.IsNotAvailable(email) {
		return model.NotAvailable, model.EmailStatusCompleted, nil
	}
	return email, model.EmailStatusCompleted, nil
}

// maybeLongPause counts down to the next long pause and takes it when due.
func (e *Enricher) maybeLongPause(ctx context.Context) error {
	if e.untilPause <= 0 {
		return nil
	}
	e.untilPause--
	if e.untilPause > 0 {
		return nil
	}

	e.h.logger.Info("taking a longer break")
	if err := e.h.wait(ctx, e.h.bands.LongPause); err != nil {
		return err
	}
	e.h.wiggle(ctx)
	e.untilPause = e.h.pace.LongPauseAfter(e.h.bands.LongPauseEvery)
	return nil
}
