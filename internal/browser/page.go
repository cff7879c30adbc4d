package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/time/rate"

	"github.com/nao1215/connharvest/internal/extract"
	"github.com/nao1215/connharvest/internal/pacing"
)

// Page drives one browser tab.
type Page struct {
	page       *rod.Page
	limiter    *rate.Limiter
	navTimeout time.Duration
	viewport   pacing.Viewport
	scroll     pacing.ScrollRange
	pace       pacing.Controller
	logger     *slog.Logger
}

// Goto loads url and waits for it to settle. A load that lands on a
// checkpoint, captcha, or login wall returns ErrBlocked, unless url itself
// is such a page.
func (p *Page) Goto(ctx context.Context, url string) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	page := p.page.Context(ctx).Timeout(p.navTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}

	if requested, _ := extract.DetectBlock(url, nil); requested {
		return nil
	}
	addr, err := p.CurrentAddress(ctx)
	if err != nil {
		return err
	}
	html, err := p.HTML(ctx)
	if err != nil {
		p.logger.Debug("failed to read page for block check", "error", err)
	}
	if blocked, kind := extract.DetectBlock(addr, []byte(html)); blocked {
		return fmt.Errorf("%w: %s at %s", ErrBlocked, kind, addr)
	}
	return nil
}

// WaitForSelector reports whether selector appears within timeout.
func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	_, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return false, fmt.Errorf("failed to wait for %s: %w", selector, err)
}

// element returns the first match of selector without waiting.
func (p *Page) element(ctx context.Context, selector string) (*rod.Element, error) {
	ok, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	if !ok {
		return nil, fmt.Errorf("no element matches %s", selector)
	}
	return el, nil
}

// Click clicks the first element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

// Hover moves the pointer over the first element matching selector.
func (p *Page) Hover(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Hover(); err != nil {
		return fmt.Errorf("failed to hover %s: %w", selector, err)
	}
	return nil
}

// CurrentAddress returns the address of the loaded document.
func (p *Page) CurrentAddress(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page address: %w", err)
	}
	return info.URL, nil
}

// Attribute returns attribute name of the first element matching selector.
// It reports false when either the element or the attribute is missing.
func (p *Page) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	ok, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return "", false, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	if !ok {
		return "", false, nil
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s of %s: %w", name, selector, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// Disabled reports whether the first element matching selector is disabled,
// either natively or through aria-disabled.
func (p *Page) Disabled(ctx context.Context, selector string) (bool, error) {
	if _, ok, err := p.Attribute(ctx, selector, "disabled"); err != nil || ok {
		return ok, err
	}
	v, ok, err := p.Attribute(ctx, selector, "aria-disabled")
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

// Scroll walks the page down in small steps until the position stops
// changing.
func (p *Page) Scroll(ctx context.Context) error {
	return humanScroll(ctx, rodScroller{page: p.page.Context(ctx)}, p.pace, p.scroll)
}

// MoveMouse moves the pointer to the given point in a few linear steps.
func (p *Page) MoveMouse(ctx context.Context, to pacing.Point) error {
	steps := p.pace.Jitter(5, 15)
	return p.page.Context(ctx).Mouse.MoveLinear(proto.Point{X: float64(to.X), Y: float64(to.Y)}, steps)
}

// Viewport returns the window size chosen at launch.
func (p *Page) Viewport() pacing.Viewport {
	return p.viewport
}

// HTML returns the serialized document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

// Screenshot writes a full-page PNG to path.
func (p *Page) Screenshot(ctx context.Context, path string) error {
	img, err := p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.WriteFile(path, img, 0600); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

// rodScroller scrolls a rod page with the mouse wheel.
type rodScroller struct {
	page *rod.Page
}

func (s rodScroller) scrollBy(dy int) error {
	return s.page.Mouse.Scroll(0, float64(dy), 1)
}

func (s rodScroller) position() (int, error) {
	res, err := s.page.Eval(`() => Math.round(window.scrollY + window.innerHeight)`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}
