package config

import "errors"

// Configuration validation errors.
// These are returned by Config.Validate and Config.ValidateCrawl so callers
// can match them with errors.Is.
var (
	// ErrNoProfile is returned when the crawl has no starting profile.
	ErrNoProfile = errors.New("no profile specified: provide the profile URL to crawl")

	// ErrInvalidBackend is returned for a storage backend other than csv or sqlite.
	ErrInvalidBackend = errors.New("invalid backend: must be csv or sqlite")

	// ErrInvalidTimeout is returned when a timeout is negative.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidPageSize is returned when the page size is not positive.
	ErrInvalidPageSize = errors.New("invalid page size: must be positive")

	// ErrInvalidNavigationRate is returned when the navigation cap is negative.
	ErrInvalidNavigationRate = errors.New("invalid navigations per minute: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidSelector is returned when a configured CSS selector does not compile.
	ErrInvalidSelector = errors.New("invalid selector")
)
