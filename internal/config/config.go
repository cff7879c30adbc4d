package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/andybalholm/cascadia"

	"github.com/nao1215/connharvest/internal/browser"
	"github.com/nao1215/connharvest/internal/crawler"
	"github.com/nao1215/connharvest/internal/extract"
	"github.com/nao1215/connharvest/internal/model"
	"github.com/nao1215/connharvest/internal/pacing"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "connharvest"

	// BackendCSV keeps the crawl state in two CSV files.
	BackendCSV = "csv"
	// BackendSQLite keeps the crawl state in one SQLite database.
	BackendSQLite = "sqlite"

	// DefaultBackend is the storage used when none is configured.
	DefaultBackend = BackendCSV

	// DefaultProfilePrefix is what every starting profile address begins with.
	DefaultProfilePrefix = "https://www.linkedin.com/in/"

	// DefaultOutputDir is where the tables are written.
	DefaultOutputDir = "."

	// sessionDirName is the browser profile directory under the XDG data dir.
	sessionDirName = "browser-session"
)

// Config holds all settings of a run. It is built by NewConfig, overlaid by
// a File, then by command line flags, and passed down explicitly.
type Config struct {
	// ProfileURL is the member whose connections are crawled.
	ProfileURL string
	// ProfilePrefix is the prefix ProfileURL must carry.
	ProfilePrefix string

	// OutputDir receives the CSV tables or the database.
	OutputDir string
	// Backend is BackendCSV or BackendSQLite.
	Backend string
	// ConnectionsFile and EmailsFile name the CSV tables.
	ConnectionsFile string
	EmailsFile      string
	// DatabaseFile names the SQLite database.
	DatabaseFile string

	// SessionDir is the persistent browser profile. It keeps the sign-in
	// between runs.
	SessionDir string
	// BrowserBin is the browser executable. Empty lets rod choose.
	BrowserBin           string
	Headless             bool
	UserAgent            string
	NavigationTimeout    time.Duration
	NavigationsPerMinute int

	// MaxPages stops the crawl after that many pages. Zero means no limit.
	MaxPages int
	// PageSize is the number of connections taken from each result page.
	PageSize int
	// RetryErrors also revisits connections whose lookup failed before.
	RetryErrors bool
	// Humanize enables randomized delays and pointer movement.
	Humanize bool
	// Timeout bounds the whole crawl. Zero means no limit.
	Timeout time.Duration
	// DebugDump saves a screenshot and the page HTML when bootstrap fails.
	DebugDump bool

	Pacing    pacing.Bands
	Selectors crawler.Selectors
	Items     extract.ItemSelectors
	Timeouts  crawler.Timeouts

	// Verbose enables debug logging.
	Verbose bool
	// ConfigFilePath is an explicit configuration file. If empty, the tool
	// looks for .connharvest in the current and home directories.
	ConfigFilePath string

	// JSONReport and MarkdownReport select the status report format.
	// They are mutually exclusive.
	JSONReport     bool
	MarkdownReport bool
	// ReportFile receives the report instead of stdout.
	ReportFile string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		ProfilePrefix:        DefaultProfilePrefix,
		OutputDir:            DefaultOutputDir,
		Backend:              DefaultBackend,
		SessionDir:           DefaultSessionDir(),
		UserAgent:            browser.DefaultUserAgent,
		NavigationTimeout:    browser.DefaultNavigationTimeout,
		NavigationsPerMinute: browser.DefaultNavigationsPerMinute,
		PageSize:             crawler.DefaultPageSize,
		Humanize:             true,
		Pacing:               pacing.DefaultBands(),
		Selectors:            crawler.DefaultSelectors(),
		Items:                extract.DefaultItemSelectors(),
		Timeouts:             crawler.DefaultTimeouts(),
	}
}

// XDGDataDir returns the XDG data directory for connharvest.
// On Linux: ~/.local/share/connharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for connharvest.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultSessionDir returns the default browser profile directory.
func DefaultSessionDir() string {
	return filepath.Join(XDGDataDir(), sessionDirName)
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	if c.Backend != BackendCSV && c.Backend != BackendSQLite {
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Backend)
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// ValidateCrawl checks everything a crawl needs on top of Validate.
func (c *Config) ValidateCrawl() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.ProfileURL) == "" {
		return ErrNoProfile
	}
	if err := model.ValidateProfileURL(c.ProfileURL, c.ProfilePrefix); err != nil {
		return err
	}
	if c.Timeout < 0 || c.NavigationTimeout < 0 {
		return ErrInvalidTimeout
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.PageSize <= 0 {
		return ErrInvalidPageSize
	}
	if c.NavigationsPerMinute < 0 {
		return ErrInvalidNavigationRate
	}
	if err := c.Pacing.Validate(); err != nil {
		return err
	}
	return c.validateSelectors()
}

// validateSelectors compiles every configured CSS selector.
func (c *Config) validateSelectors() error {
	if !strings.Contains(c.Selectors.PageButton, "%d") {
		return fmt.Errorf("%w: page_button %q needs a %%d for the page number", ErrInvalidSelector, c.Selectors.PageButton)
	}
	selectors := map[string]string{
		"connections_link": c.Selectors.ConnectionsLink,
		"list":             c.Selectors.List,
		"list_fallback":    c.Selectors.ListFallback,
		"result_urn":       c.Selectors.ResultURN,
		"pagination":       c.Selectors.Pagination,
		"page_button":      fmt.Sprintf(c.Selectors.PageButton, 1),
		"next_button":      c.Selectors.NextButton,
		"items.name":       c.Items.Name,
		"items.name_text":  c.Items.NameText,
		"items.employer":   c.Items.Employer,
	}
	for name, sel := range selectors {
		if sel == "" {
			if name == "list_fallback" || name == "items.name_text" || name == "items.employer" {
				continue
			}
			return fmt.Errorf("%w: %s is empty", ErrInvalidSelector, name)
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("%w: %s %q: %w", ErrInvalidSelector, name, sel, err)
		}
	}
	return nil
}

// PacingController returns the controller for the configured humanization.
func (c *Config) PacingController() pacing.Controller {
	if !c.Humanize {
		return pacing.Zero{}
	}
	return pacing.NewHuman()
}
