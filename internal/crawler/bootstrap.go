package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/connharvest/internal/model"
	"github.com/nao1215/connharvest/internal/pacing"
)

// Bootstrap errors.
var (
	// ErrProfileUnreachable is returned when the starting profile could not
	// be opened after every attempt.
	ErrProfileUnreachable = errors.New("profile page could not be opened")
	// ErrConnectionsUnavailable is returned when the connections list of the
	// starting profile could not be reached. The profile may hide its
	// connections, or the markup may have changed.
	ErrConnectionsUnavailable = errors.New("connections list is not available")
)

// DefaultProfileAttempts is how many times the starting profile is requested.
const DefaultProfileAttempts = 3

// Bootstrapper takes the browser from a fresh start to the first page of
// the first-degree connections of a profile.
type Bootstrapper struct {
	h         humanizer
	session   Session
	selectors Selectors
	timeouts  Timeouts
	attempts  int
}

// BootstrapOption configures a Bootstrapper.
type BootstrapOption func(*Bootstrapper)

// WithBootstrapPacing sets the pacing controller and bands.
func WithBootstrapPacing(c pacing.Controller, b pacing.Bands) BootstrapOption {
	return func(bs *Bootstrapper) {
		bs.h.pace = c
		bs.h.bands = b
	}
}

// WithBootstrapSelectors overrides the default selectors.
func WithBootstrapSelectors(s Selectors) BootstrapOption {
	return func(bs *Bootstrapper) {
		bs.selectors = s
	}
}

// WithBootstrapTimeouts overrides the default timeouts.
func WithBootstrapTimeouts(t Timeouts) BootstrapOption {
	return func(bs *Bootstrapper) {
		bs.timeouts = t
	}
}

// WithProfileAttempts sets how many times the starting profile is requested.
func WithProfileAttempts(n int) BootstrapOption {
	return func(bs *Bootstrapper) {
		if n > 0 {
			bs.attempts = n
		}
	}
}

// WithBootstrapLogger sets the logger.
func WithBootstrapLogger(l *slog.Logger) BootstrapOption {
	return func(bs *Bootstrapper) {
		bs.h.logger = l
	}
}

// NewBootstrapper returns a Bootstrapper.
func NewBootstrapper(session Session, nav Navigator, opts ...BootstrapOption) *Bootstrapper {
	b := &Bootstrapper{
		h: humanizer{
			nav:    nav,
			pace:   pacing.NewHuman(),
			bands:  pacing.DefaultBands(),
			logger: slog.New(slog.DiscardHandler),
		},
		session:   session,
		selectors: DefaultSelectors(),
		timeouts:  DefaultTimeouts(),
		attempts:  DefaultProfileAttempts,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Prepare signs in if needed, opens profileURL, follows its connections
// link, and narrows the results to first-degree connections. It returns the
// list selector that matched the results page.
func (b *Bootstrapper) Prepare(ctx context.Context, profileURL string) (string, error) {
	if err := b.authenticate(ctx); err != nil {
		return "", err
	}
	if err := b.openProfile(ctx, profileURL); err != nil {
		return "", err
	}
	if err := b.openConnections(ctx); err != nil {
		return "", err
	}
	sel, err := b.waitForList(ctx)
	if err != nil {
		return "", err
	}
	changed, err := b.narrowToFirstDegree(ctx)
	if err != nil || !changed {
		return sel, err
	}
	return b.waitForList(ctx)
}

func (b *Bootstrapper) authenticate(ctx context.Context) error {
	ok, err := b.session.IsAuthenticated(ctx)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if ok {
		b.h.logger.Info("session is signed in")
		return nil
	}
	b.h.logger.Info("session is not signed in, waiting for manual sign-in")
	if err := b.session.AwaitManualAuthentication(ctx); err != nil {
		return fmt.Errorf("failed to wait for sign-in: %w", err)
	}
	return nil
}

func (b *Bootstrapper) openProfile(ctx context.Context, profileURL string) error {
	var lastErr error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		if err := b.h.wait(ctx, b.h.bands.Action); err != nil {
			return err
		}
		err := b.h.nav.Goto(ctx, profileURL)
		if err == nil {
			b.h.logger.Info("opened profile", "url", profileURL, "attempt", attempt)
			return b.h.wait(ctx, b.h.bands.Settle)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		b.h.logger.Warn("profile navigation failed", "attempt", attempt, "max_attempts", b.attempts, "error", err)
		if attempt < b.attempts {
			if err := b.h.wait(ctx, b.h.bands.Retry); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrProfileUnreachable, profileURL, lastErr)
}

func (b *Bootstrapper) openConnections(ctx context.Context) error {
	link := b.selectors.ConnectionsLink
	found, err := b.h.nav.WaitForSelector(ctx, link, b.timeouts.ConnectionsLink)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if !found {
		return fmt.Errorf("%w: no connections link on the profile", ErrConnectionsUnavailable)
	}

	b.h.wiggle(ctx)
	if err := b.h.wait(ctx, b.h.bands.Action); err != nil {
		return err
	}
	b.h.hover(ctx, link)
	if err := b.h.wait(ctx, b.h.bands.Hover); err != nil {
		return err
	}
	if err := b.h.nav.Click(ctx, link); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrConnectionsUnavailable, err)
	}
	return b.h.wait(ctx, b.h.bands.Settle)
}

// narrowToFirstDegree reloads the results with only direct connections when
// the search includes wider circles, and reports whether it did. An
// unreadable filter is left alone.
func (b *Bootstrapper) narrowToFirstDegree(ctx context.Context) (bool, error) {
	addr, err := b.h.nav.CurrentAddress(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		b.h.logger.Warn("failed to read results address", "error", err)
		return false, nil
	}

	filtered, changed, err := model.FirstDegreeURL(addr)
	if err != nil {
		b.h.logger.Warn("could not parse network filter", "url", addr, "error", err)
		return false, nil
	}
	if !changed {
		b.h.logger.Info("results already limited to first-degree connections")
		return false, nil
	}

	b.h.logger.Info("limiting results to first-degree connections", "url", filtered)
	if err := b.h.wait(ctx, b.h.bands.Action); err != nil {
		return false, err
	}
	if err := b.h.nav.Goto(ctx, filtered); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("%w: %w", ErrConnectionsUnavailable, err)
	}
	return true, b.h.wait(ctx, b.h.bands.Settle)
}

func (b *Bootstrapper) waitForList(ctx context.Context) (string, error) {
	for _, sel := range []string{b.selectors.List, b.selectors.ListFallback} {
		if sel == "" {
			continue
		}
		found, err := b.h.nav.WaitForSelector(ctx, sel, b.timeouts.List)
		if err != nil && ctx.Err() != nil {
			return "", ctx.Err()
		}
		if found {
			return sel, nil
		}
		b.h.logger.Debug("results list not found", "selector", sel)
	}
	return "", fmt.Errorf("%w: results list did not load", ErrConnectionsUnavailable)
}
