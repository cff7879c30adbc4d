package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/nao1215/connharvest/internal/model"
	"github.com/nao1215/connharvest/internal/pacing"
)

// State is the position of the Paginator in the result sequence.
type State int

const (
	// StateListing means the current page has not been listed yet.
	StateListing State = iota
	// StatePaginating means the current page was listed and the next one is due.
	StatePaginating
	// StateExhausted is terminal.
	StateExhausted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateListing:
		return "listing"
	case StatePaginating:
		return "paginating"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StopReason records why a crawl stopped walking pages.
type StopReason string

const (
	StopNone         StopReason = ""
	StopEmptyPage    StopReason = "empty-page"
	StopListFailed   StopReason = "list-failed"
	StopNoControl    StopReason = "no-control"
	StopNextDisabled StopReason = "next-disabled"
	StopClickFailed  StopReason = "click-failed"
	StopUnconfirmed  StopReason = "unconfirmed"
	StopMaxPages     StopReason = "max-pages"
)

// ErrWrongState is returned when List or Advance is called out of order.
var ErrWrongState = errors.New("paginator is in the wrong state")

// Paginator walks the numbered result pages in order.
//
// It starts in Listing(1). List moves Listing(N) to Paginating(N), and
// Advance moves Paginating(N) to Listing(N+1). Every other outcome lands in
// Exhausted with a StopReason. Collaborator failures never escape; only a
// canceled context is returned as an error.
type Paginator struct {
	h         humanizer
	ext       Extractor
	selectors Selectors
	timeouts  Timeouts
	pageSize  int

	// listFirst is tried before the other list selector.
	listFirst string

	state  State
	page   int
	reason StopReason
}

// PaginatorOption configures a Paginator.
type PaginatorOption func(*Paginator)

// WithPaginatorPacing sets the pacing controller and bands.
func WithPaginatorPacing(c pacing.Controller, b pacing.Bands) PaginatorOption {
	return func(p *Paginator) {
		p.h.pace = c
		p.h.bands = b
	}
}

// WithPaginatorSelectors overrides the default selectors.
func WithPaginatorSelectors(s Selectors) PaginatorOption {
	return func(p *Paginator) {
		p.selectors = s
	}
}

// WithPaginatorTimeouts overrides the default timeouts.
func WithPaginatorTimeouts(t Timeouts) PaginatorOption {
	return func(p *Paginator) {
		p.timeouts = t
	}
}

// WithPageSize sets the maximum number of items taken from one page.
func WithPageSize(n int) PaginatorOption {
	return func(p *Paginator) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithListSelector sets the list selector to try first, typically the one
// the bootstrap found on the first page.
func WithListSelector(s string) PaginatorOption {
	return func(p *Paginator) {
		p.listFirst = s
	}
}

// WithPaginatorLogger sets the logger.
func WithPaginatorLogger(l *slog.Logger) PaginatorOption {
	return func(p *Paginator) {
		p.h.logger = l
	}
}

// NewPaginator returns a Paginator in Listing(1).
func NewPaginator(nav Navigator, ext Extractor, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		h: humanizer{
			nav:    nav,
			pace:   pacing.NewHuman(),
			bands:  pacing.DefaultBands(),
			logger: slog.New(slog.DiscardHandler),
		},
		ext:       ext,
		selectors: DefaultSelectors(),
		timeouts:  DefaultTimeouts(),
		pageSize:  DefaultPageSize,
		state:     StateListing,
		page:      1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current state.
func (p *Paginator) State() State {
	return p.state
}

// Page returns the current 1-based page number.
func (p *Paginator) Page() int {
	return p.page
}

// Reason returns why the Paginator is exhausted, or StopNone.
func (p *Paginator) Reason() StopReason {
	return p.reason
}

// exhaust moves to the terminal state.
func (p *Paginator) exhaust(reason StopReason, attrs ...any) {
	p.state = StateExhausted
	p.reason = reason
	p.h.logger.Info("pagination finished", append([]any{"page", p.page, "reason", string(reason)}, attrs...)...)
}

// listSelectors returns the list selectors in the order they are tried.
func (p *Paginator) listSelectors() []string {
	order := []string{p.selectors.List, p.selectors.ListFallback}
	if p.listFirst != "" && p.listFirst == p.selectors.ListFallback {
		order[0], order[1] = order[1], order[0]
	}
	return order
}

// locateList waits for a list container and returns the selector that matched.
func (p *Paginator) locateList(ctx context.Context) (string, error) {
	for _, sel := range p.listSelectors() {
		if sel == "" {
			continue
		}
		found, err := p.h.nav.WaitForSelector(ctx, sel, p.timeouts.List)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			p.h.logger.Debug("list wait failed", "selector", sel, "error", err)
			continue
		}
		if found {
			return sel, nil
		}
	}
	return "", nil
}

// List extracts the items of the current page.
//
// On success the Paginator moves to Paginating. An empty page, a missing
// list, or an extraction failure exhausts it and returns no items.
func (p *Paginator) List(ctx context.Context) ([]model.Discovered, error) {
	switch p.state {
	case StateExhausted:
		return nil, nil
	case StatePaginating:
		return nil, fmt.Errorf("%w: List called in %s", ErrWrongState, p.state)
	}

	sel, err := p.locateList(ctx)
	if err != nil {
		return nil, err
	}
	if sel == "" {
		p.exhaust(StopListFailed, "detail", "no list container")
		return nil, nil
	}

	p.h.scroll(ctx)
	if err := p.h.wait(ctx, p.h.bands.Action); err != nil {
		return nil, err
	}
	p.h.wiggle(ctx)
	if err := p.h.wait(ctx, p.h.bands.PreExtract); err != nil {
		return nil, err
	}

	items, err := p.ext.ExtractListItems(ctx, sel, p.pageSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.exhaust(StopListFailed, "error", err)
		return nil, nil
	}
	if len(items) == 0 {
		p.exhaust(StopEmptyPage)
		return nil, nil
	}

	p.h.logger.Debug("listed page", "page", p.page, "items", len(items), "selector", sel)
	p.state = StatePaginating
	return items, nil
}

// Advance moves to the next page.
//
// It reports true when the next page is confirmed loaded and the Paginator
// is back in Listing. It reports false once exhausted.
func (p *Paginator) Advance(ctx context.Context) (bool, error) {
	switch p.state {
	case StateExhausted:
		return false, nil
	case StateListing:
		return false, fmt.Errorf("%w: Advance called in %s", ErrWrongState, p.state)
	}

	next := p.page + 1
	nav := p.h.nav

	p.h.scroll(ctx)
	if err := p.h.wait(ctx, p.h.bands.Action); err != nil {
		return false, err
	}
	p.h.wiggle(ctx)

	prevURN, _, err := nav.Attribute(ctx, p.selectors.ResultURN, p.selectors.ResultURNAttr)
	if err != nil && ctx.Err() != nil {
		return false, ctx.Err()
	}
	prevAddr, err := nav.CurrentAddress(ctx)
	if err != nil && ctx.Err() != nil {
		return false, ctx.Err()
	}

	found, err := p.waitFor(ctx, p.selectors.Pagination, p.timeouts.Pagination)
	if err != nil {
		return false, err
	}
	if !found {
		p.exhaust(StopNoControl, "detail", "no pagination container")
		return false, nil
	}

	if err := p.h.wait(ctx, p.h.bands.Action); err != nil {
		return false, err
	}
	p.h.wiggle(ctx)

	target, ok, err := p.findControl(ctx, next)
	if err != nil || !ok {
		return false, err
	}

	p.h.hover(ctx, target)
	if err := p.h.wait(ctx, p.h.bands.Hover); err != nil {
		return false, err
	}
	if err := nav.Click(ctx, target); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.exhaust(StopClickFailed, "selector", target, "error", err)
		return false, nil
	}

	confirmed, err := p.confirm(ctx, next, prevURN, prevAddr)
	if err != nil {
		return false, err
	}
	if !confirmed {
		p.exhaust(StopUnconfirmed)
		return false, nil
	}

	p.h.logger.Info("advanced to next page", "page", next)
	p.page = next
	p.state = StateListing
	if err := p.h.wait(ctx, p.h.bands.AfterAdvance); err != nil {
		return false, err
	}
	return true, nil
}

// waitFor wraps WaitForSelector, treating a non-context error as not found.
func (p *Paginator) waitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	found, err := p.h.nav.WaitForSelector(ctx, selector, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.h.logger.Debug("wait failed", "selector", selector, "error", err)
		return false, nil
	}
	return found, nil
}

// findControl picks the control that leads to page next: the numbered page
// button if present, otherwise the generic next button. A disabled next
// button exhausts the Paginator without clicking.
func (p *Paginator) findControl(ctx context.Context, next int) (string, bool, error) {
	direct := fmt.Sprintf(p.selectors.PageButton, next)
	found, err := p.waitFor(ctx, direct, p.timeouts.PageButton)
	if err != nil {
		return "", false, err
	}
	if found {
		return direct, true, nil
	}
	p.h.logger.Debug("page button not found, trying next button", "page", next)

	generic := p.selectors.NextButton
	found, err = p.waitFor(ctx, generic, p.timeouts.NextButton)
	if err != nil {
		return "", false, err
	}
	if !found {
		p.exhaust(StopNoControl, "detail", "no page or next button")
		return "", false, nil
	}

	disabled, err := p.h.nav.Disabled(ctx, generic)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		p.exhaust(StopNoControl, "error", err)
		return "", false, nil
	}
	if disabled {
		p.exhaust(StopNextDisabled)
		return "", false, nil
	}
	return generic, true, nil
}

// pageAddress matches an address that points at page n or at a result offset.
func pageAddress(n int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`[?&](?:page=%d(?:[&#]|$)|start=\d+)`, n))
}

// confirm polls until the result list shows a different first entry, or the
// address changed to one that points at page next.
func (p *Paginator) confirm(ctx context.Context, next int, prevURN, prevAddr string) (bool, error) {
	nav := p.h.nav
	addrPattern := pageAddress(next)

	poll := p.timeouts.Poll
	if poll <= 0 {
		poll = DefaultTimeouts().Poll
	}
	deadline := time.NewTimer(p.timeouts.Confirm)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		urn, ok, err := nav.Attribute(ctx, p.selectors.ResultURN, p.selectors.ResultURNAttr)
		if err == nil && ok && urn != "" && urn != prevURN {
			return true, nil
		}
		addr, err := nav.CurrentAddress(ctx)
		if err == nil && addr != prevAddr && addrPattern.MatchString(addr) {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}
