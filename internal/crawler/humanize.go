package crawler

import (
	"context"
	"log/slog"

	"github.com/nao1215/connharvest/internal/pacing"
)

// humanizer wraps the pacing controller with the pointer and scroll
// gestures shared by every stage.
type humanizer struct {
	nav    Navigator
	pace   pacing.Controller
	bands  pacing.Bands
	logger *slog.Logger
}

func (h humanizer) wait(ctx context.Context, b pacing.Band) error {
	return pacing.Wait(ctx, h.pace, b)
}

// wiggle moves the pointer to a random spot. A failed move is not worth
// stopping for.
func (h humanizer) wiggle(ctx context.Context) {
	to := h.pace.Pointer(h.nav.Viewport())
	if err := h.nav.MoveMouse(ctx, to); err != nil && ctx.Err() == nil {
		h.logger.Debug("pointer move failed", "error", err)
	}
}

// scroll walks the page down to load lazy content.
func (h humanizer) scroll(ctx context.Context) {
	if err := h.nav.Scroll(ctx); err != nil && ctx.Err() == nil {
		h.logger.Debug("scroll failed", "error", err)
	}
}

// hover points at selector before a click.
func (h humanizer) hover(ctx context.Context, selector string) {
	if err := h.nav.Hover(ctx, selector); err != nil && ctx.Err() == nil {
		h.logger.Debug("hover failed", "selector", selector, "error", err)
	}
}
