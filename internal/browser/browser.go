package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/time/rate"

	"github.com/nao1215/connharvest/internal/pacing"
)

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"

const (
	// DefaultNavigationTimeout bounds a single page load.
	DefaultNavigationTimeout = 45 * time.Second
	// DefaultNavigationsPerMinute caps how often Goto may load a page.
	DefaultNavigationsPerMinute = 20
)

// Options configures Launch.
type Options struct {
	// Bin is the browser executable. Empty lets rod find or download one.
	Bin string
	// UserDataDir holds the persistent browser profile.
	UserDataDir string
	Headless    bool
	UserAgent   string
	// Viewport is the range the window size is drawn from.
	Viewport          pacing.ViewportRange
	Scroll            pacing.ScrollRange
	NavigationTimeout time.Duration
	// NavigationsPerMinute caps page loads. Zero disables the cap.
	NavigationsPerMinute int
	Pacing               pacing.Controller
	Logger               *slog.Logger
}

// DefaultOptions returns options for a visible browser using dataDir as its
// profile directory.
func DefaultOptions(dataDir string) Options {
	bands := pacing.DefaultBands()
	return Options{
		UserDataDir:          dataDir,
		UserAgent:            DefaultUserAgent,
		Viewport:             bands.Viewport,
		Scroll:               bands.Scroll,
		NavigationTimeout:    DefaultNavigationTimeout,
		NavigationsPerMinute: DefaultNavigationsPerMinute,
		Pacing:               pacing.NewHuman(),
	}
}

// Browser owns the launched process and its single page.
type Browser struct {
	launcher *launcher.Launcher
	rod      *rod.Browser
	page     *Page
	logger   *slog.Logger
}

// Launch starts the browser and opens the page the crawl runs in.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Pacing == nil {
		opts.Pacing = pacing.NewHuman()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.UserDataDir != "" {
		if err := os.MkdirAll(opts.UserDataDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	if opts.UserDataDir != "" {
		l = l.UserDataDir(opts.UserDataDir)
	}
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	rb := rod.New().ControlURL(controlURL)
	if err := rb.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	rp, err := rb.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = rb.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	vp := opts.Pacing.Size(opts.Viewport)
	if err := rp.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		opts.Logger.Warn("failed to set viewport", "error", err)
	}
	if err := rp.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
		opts.Logger.Warn("failed to set user agent", "error", err)
	}
	opts.Logger.Debug("browser launched", "headless", opts.Headless, "width", vp.Width, "height", vp.Height)

	var limiter *rate.Limiter
	if opts.NavigationsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.NavigationsPerMinute)), 1)
	}

	return &Browser{
		launcher: l,
		rod:      rb,
		page: &Page{
			page:       rp,
			limiter:    limiter,
			navTimeout: opts.NavigationTimeout,
			viewport:   vp,
			scroll:     opts.Scroll,
			pace:       opts.Pacing,
			logger:     opts.Logger,
		},
		logger: opts.Logger,
	}, nil
}

// Page returns the page the crawl runs in.
func (b *Browser) Page() *Page {
	return b.page
}

// Close shuts the browser down. The profile directory is kept.
func (b *Browser) Close() error {
	var errs []error
	if b.rod != nil {
		if err := b.rod.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return errors.Join(errs...)
}
