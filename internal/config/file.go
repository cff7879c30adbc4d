package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/connharvest/internal/crawler"
	"github.com/nao1215/connharvest/internal/extract"
)

// StorageSection is the storage part of the configuration file.
type StorageSection struct {
	Dir             string `yaml:"dir,omitempty"`
	Backend         string `yaml:"backend,omitempty"`
	ConnectionsFile string `yaml:"connections_file,omitempty"`
	EmailsFile      string `yaml:"emails_file,omitempty"`
	Database        string `yaml:"database,omitempty"`
}

// BrowserSection is the browser part of the configuration file.
type BrowserSection struct {
	Bin                  string        `yaml:"bin,omitempty"`
	SessionDir           string        `yaml:"session_dir,omitempty"`
	Headless             *bool         `yaml:"headless,omitempty"`
	UserAgent            string        `yaml:"user_agent,omitempty"`
	NavigationTimeout    time.Duration `yaml:"navigation_timeout,omitempty"`
	NavigationsPerMinute *int          `yaml:"navigations_per_minute,omitempty"`
}

// CrawlSection is the crawl part of the configuration file.
type CrawlSection struct {
	ProfilePrefix string        `yaml:"profile_prefix,omitempty"`
	MaxPages      *int          `yaml:"max_pages,omitempty"`
	PageSize      int           `yaml:"page_size,omitempty"`
	RetryErrors   *bool         `yaml:"retry_errors,omitempty"`
	Humanize      *bool         `yaml:"humanize,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
}

// selectorSection is the layout of the selectors part: the crawler
// selectors inline plus the list item selectors under items.
type selectorSection struct {
	crawler.Selectors `yaml:",inline"`
	Items             extract.ItemSelectors `yaml:"items"`
}

// File represents the structure of the .connharvest configuration file.
//
// The pacing, selectors, and timeouts sections are kept as raw nodes and
// decoded over the defaults, so a file only needs the keys it changes.
type File struct {
	Storage   StorageSection `yaml:"storage,omitempty"`
	Browser   BrowserSection `yaml:"browser,omitempty"`
	Crawl     CrawlSection   `yaml:"crawl,omitempty"`
	Pacing    yaml.Node      `yaml:"pacing,omitempty"`
	Selectors yaml.Node      `yaml:"selectors,omitempty"`
	Timeouts  yaml.Node      `yaml:"timeouts,omitempty"`
}

// ApplyTo overlays the values present in the file onto cfg.
func (f *File) ApplyTo(cfg *Config) error {
	f.applyStorage(cfg)
	f.applyBrowser(cfg)
	f.applyCrawl(cfg)

	if !f.Pacing.IsZero() {
		if err := f.Pacing.Decode(&cfg.Pacing); err != nil {
			return fmt.Errorf("failed to read pacing section: %w", err)
		}
	}
	if !f.Selectors.IsZero() {
		sel := selectorSection{Selectors: cfg.Selectors, Items: cfg.Items}
		if err := f.Selectors.Decode(&sel); err != nil {
			return fmt.Errorf("failed to read selectors section: %w", err)
		}
		cfg.Selectors = sel.Selectors
		cfg.Items = sel.Items
	}
	if !f.Timeouts.IsZero() {
		if err := f.Timeouts.Decode(&cfg.Timeouts); err != nil {
			return fmt.Errorf("failed to read timeouts section: %w", err)
		}
	}
	return nil
}

func (f *File) applyStorage(cfg *Config) {
	s := f.Storage
	if s.Dir != "" {
		cfg.OutputDir = s.Dir
	}
	if s.Backend != "" {
		cfg.Backend = s.Backend
	}
	if s.ConnectionsFile != "" {
		cfg.ConnectionsFile = s.ConnectionsFile
	}
	if s.EmailsFile != "" {
		cfg.EmailsFile = s.EmailsFile
	}
	if s.Database != "" {
		cfg.DatabaseFile = s.Database
	}
}

func (f *File) applyBrowser(cfg *Config) {
	b := f.Browser
	if b.Bin != "" {
		cfg.BrowserBin = b.Bin
	}
	if b.SessionDir != "" {
		cfg.SessionDir = b.SessionDir
	}
	if b.Headless != nil {
		cfg.Headless = *b.Headless
	}
	if b.UserAgent != "" {
		cfg.UserAgent = b.UserAgent
	}
	if b.NavigationTimeout != 0 {
		cfg.NavigationTimeout = b.NavigationTimeout
	}
	if b.NavigationsPerMinute != nil {
		cfg.NavigationsPerMinute = *b.NavigationsPerMinute
	}
}

func (f *File) applyCrawl(cfg *Config) {
	c := f.Crawl
	if c.ProfilePrefix != "" {
		cfg.ProfilePrefix = c.ProfilePrefix
	}
	if c.MaxPages != nil {
		cfg.MaxPages = *c.MaxPages
	}
	if c.PageSize != 0 {
		cfg.PageSize = c.PageSize
	}
	if c.RetryErrors != nil {
		cfg.RetryErrors = *c.RetryErrors
	}
	if c.Humanize != nil {
		cfg.Humanize = *c.Humanize
	}
	if c.Timeout != 0 {
		cfg.Timeout = c.Timeout
	}
}
