package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/connharvest/internal/browser"
	"github.com/nao1215/connharvest/internal/config"
	"github.com/nao1215/connharvest/internal/crawler"
	"github.com/nao1215/connharvest/internal/report"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <profile-url>",
		Short: "Harvest the connections of a profile and look up their emails",
		Long: `Crawl opens the profile in a browser, walks its connections list page by
page, records every connection, and visits each new connection's contact
info to extract an email address.

The first run opens a browser window; sign in there and press Enter in the
terminal. The browser session is kept, so later runs start signed in.

Everything is written to the output directory as soon as it is known.
Interrupting the crawl (Ctrl+C) is safe: run the same command again and it
skips connections that were already looked up.

Examples:
  # Crawl a profile, writing CSV files to the current directory
  connharvest crawl https://www.linkedin.com/in/some-member/

  # Stop after three result pages and use SQLite
  connharvest crawl --max-pages 3 --backend sqlite https://www.linkedin.com/in/some-member/

  # Look up connections whose previous lookup failed
  connharvest crawl --retry-errors https://www.linkedin.com/in/some-member/`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .connharvest in current or home directory)")
	cmd.Flags().StringP("output-dir", "d", config.DefaultOutputDir,
		"Directory for the connection and email tables")
	cmd.Flags().String("backend", config.DefaultBackend,
		"Storage backend: csv or sqlite")

	cmd.Flags().Bool("headless", false,
		"Run the browser without a window (sign-in must already be stored)")
	cmd.Flags().String("session-dir", "",
		"Browser profile directory (default: XDG data dir)")
	cmd.Flags().String("browser-bin", "",
		"Browser executable (default: detected or downloaded)")

	cmd.Flags().IntP("max-pages", "p", 0,
		"Stop after this many result pages (0 means no limit)")
	cmd.Flags().Bool("retry-errors", false,
		"Also look up connections whose previous lookup failed")
	cmd.Flags().Bool("no-humanize", false,
		"Disable randomized delays and pointer movement")
	cmd.Flags().DurationP("timeout", "t", 0,
		"Stop the crawl after this long (0 means no limit)")
	cmd.Flags().Bool("debug-dump", false,
		"Save a screenshot and the page HTML when the connections list cannot be opened")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.ValidateCrawl(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	return runCrawl(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
}

// buildCrawlConfig loads the configuration file and overlays the flags that
// were set explicitly.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("headless") {
		if cfg.Headless, err = flags.GetBool("headless"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("session-dir") {
		if cfg.SessionDir, err = flags.GetString("session-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("browser-bin") {
		if cfg.BrowserBin, err = flags.GetString("browser-bin"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("retry-errors") {
		if cfg.RetryErrors, err = flags.GetBool("retry-errors"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("no-humanize") {
		noHumanize, err := flags.GetBool("no-humanize")
		if err != nil {
			return nil, err
		}
		cfg.Humanize = !noHumanize
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if cfg.DebugDump, err = flags.GetBool("debug-dump"); err != nil {
		return nil, err
	}

	cfg.ProfileURL = args[0]
	return cfg, nil
}

// loadConfig builds the configuration shared by crawl and status: defaults,
// then the configuration file, then the storage flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("backend") {
		if cfg.Backend, err = flags.GetString("backend"); err != nil {
			return nil, err
		}
	}
	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// runCrawl launches the browser, opens the connections list and runs the
// page loop. The text summary is printed even when the run fails.
func runCrawl(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *slog.Logger) error {
	b, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	pace := cfg.PacingController()

	fmt.Fprintln(out, "Starting browser...")
	br, err := browser.Launch(ctx, browser.Options{
		Bin:                  cfg.BrowserBin,
		UserDataDir:          cfg.SessionDir,
		Headless:             cfg.Headless,
		UserAgent:            cfg.UserAgent,
		Viewport:             cfg.Pacing.Viewport,
		Scroll:               cfg.Pacing.Scroll,
		NavigationTimeout:    cfg.NavigationTimeout,
		NavigationsPerMinute: cfg.NavigationsPerMinute,
		Pacing:               pace,
		Logger:               logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := br.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()
	page := br.Page()

	session := browser.NewSession(page, in, out, browser.WithSessionLogger(logger))
	boot := crawler.NewBootstrapper(session, page,
		crawler.WithBootstrapPacing(pace, cfg.Pacing),
		crawler.WithBootstrapSelectors(cfg.Selectors),
		crawler.WithBootstrapTimeouts(cfg.Timeouts),
		crawler.WithBootstrapLogger(logger),
	)

	fmt.Fprintf(out, "Opening connections of %s...\n", cfg.ProfileURL)
	listSelector, err := boot.Prepare(ctx, cfg.ProfileURL)
	if err != nil {
		if cfg.DebugDump {
			dumpPage(context.WithoutCancel(ctx), page, cfg.OutputDir, out, logger)
		}
		return fmt.Errorf("failed to open the connections list: %w", err)
	}

	ext := browser.NewExtractor(page, cfg.Items)
	paginator := crawler.NewPaginator(page, ext,
		crawler.WithPaginatorPacing(pace, cfg.Pacing),
		crawler.WithPaginatorSelectors(cfg.Selectors),
		crawler.WithPaginatorTimeouts(cfg.Timeouts),
		crawler.WithPageSize(cfg.PageSize),
		crawler.WithListSelector(listSelector),
		crawler.WithPaginatorLogger(logger),
	)
	enricher := crawler.NewEnricher(b.records, page, ext,
		crawler.WithEnricherPacing(pace, cfg.Pacing),
		crawler.WithEnricherSelectors(cfg.Selectors),
		crawler.WithRetryErrors(cfg.RetryErrors),
		crawler.WithEnricherLogger(logger),
	)
	c := crawler.New(b.records, paginator, enricher,
		crawler.WithPacing(pace, cfg.Pacing),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithPageCallback(func(r crawler.PageReport) {
			printPageReport(out, r)
		}),
		crawler.WithLogger(logger),
	)

	startTime := time.Now()
	result, runErr := c.Run(ctx, cfg.ProfileURL)
	printRunResult(out, result, time.Since(startTime))

	// The summary is read from durable state, so it is written even when
	// ctx is already canceled.
	if err := writeSummary(context.WithoutCancel(ctx), b, out, cfg.Verbose); err != nil {
		logger.Warn("failed to write summary", "error", err)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			fmt.Fprintln(out, "Crawl stopped early. Run the same command again to resume.")
		}
		return fmt.Errorf("crawl failed: %w", runErr)
	}
	return nil
}

// printPageReport prints one progress line per processed page.
func printPageReport(out io.Writer, r crawler.PageReport) {
	fmt.Fprintf(out, "[page %d] %d new, %d known; looked up %d, %d email(s), %d error(s); %d/%d done\n",
		r.Page,
		r.Merge.New,
		r.Merge.Duplicate,
		r.Enrich.Attempted,
		r.Enrich.Found,
		r.Enrich.Errors,
		r.Progress.ProcessedEmails,
		r.Progress.TotalConnections,
	)
}

// printRunResult prints how the run ended.
func printRunResult(out io.Writer, r *crawler.RunResult, elapsed time.Duration) {
	if r == nil {
		return
	}
	stop := string(r.Stop)
	if stop == "" {
		stop = "interrupted"
	}
	fmt.Fprintf(out, "\nCrawl finished in %s after %d page(s) (%s)\n", elapsed.Round(time.Second), r.Pages, stop)
	fmt.Fprintf(out, "  connections: %d new, %d already known\n", r.Merge.New, r.Merge.Duplicate)
	fmt.Fprintf(out, "  lookups:     %d attempted, %d email(s) found, %d error(s)\n",
		r.Enrich.Attempted, r.Enrich.Found, r.Enrich.Errors)
}

// writeSummary prints the text report of the stored state.
func writeSummary(ctx context.Context, b *backend, out io.Writer, verbose bool) error {
	rep, err := loadReport(ctx, b, time.Now())
	if err != nil {
		return err
	}
	_, err = report.NewSimpleWriter(out, report.WithVerbose(verbose)).Write(rep)
	return err
}

// pageDumper is the part of the browser page a debug dump needs.
type pageDumper interface {
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
}

// dumpPage saves a screenshot and the HTML of the current page into dir.
// Failures are logged only.
func dumpPage(ctx context.Context, page pageDumper, dir string, out io.Writer, logger *slog.Logger) {
	base := filepath.Join(dir, "connharvest-debug-"+time.Now().Format("20060102-150405"))

	if err := page.Screenshot(ctx, base+".png"); err != nil {
		logger.Warn("failed to save debug screenshot", "error", err)
	} else {
		fmt.Fprintf(out, "Saved screenshot: %s.png\n", base)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		logger.Warn("failed to read page HTML", "error", err)
		return
	}
	if err := os.WriteFile(base+".html", []byte(html), 0600); err != nil {
		logger.Warn("failed to save debug HTML", "error", err)
		return
	}
	fmt.Fprintf(out, "Saved page HTML: %s.html\n", base)
}
