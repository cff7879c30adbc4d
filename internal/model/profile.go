package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Profile address errors.
var (
	// ErrEmptyProfileURL is returned when no starting profile is given.
	ErrEmptyProfileURL = errors.New("profile URL cannot be empty")
	// ErrInvalidProfileURL is returned when the starting profile does not match the expected prefix.
	ErrInvalidProfileURL = errors.New("invalid profile URL")
)

const (
	// networkParam is the search parameter that selects connection degrees.
	networkParam = "network"
	// firstDegree is the network code for direct connections.
	firstDegree = "F"
	// secondDegree is the network code for connections of connections.
	secondDegree = "S"
)

// ValidateProfileURL checks that raw is a profile address starting with prefix.
func ValidateProfileURL(raw, prefix string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmptyProfileURL
	}
	if !strings.HasPrefix(raw, prefix) {
		return fmt.Errorf("%w: %q must start with %q", ErrInvalidProfileURL, raw, prefix)
	}
	if len(raw) == len(prefix) {
		return fmt.Errorf("%w: %q has no profile identifier", ErrInvalidProfileURL, raw)
	}
	if _, err := url.Parse(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfileURL, err)
	}
	return nil
}

// Canonicalize strips the query string and fragment from a profile reference.
// The result is the deduplication key of a connection.
func Canonicalize(profileURL string) string {
	s := strings.TrimSpace(profileURL)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

// DetailURL derives the contact detail address of a connection by appending
// suffix to its canonical identity.
func DetailURL(canonicalID, suffix string) string {
	base := Canonicalize(canonicalID)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.TrimPrefix(suffix, "/")
}

// FirstDegreeURL narrows a people-search address to direct connections.
// It returns the rewritten address and whether anything changed. Addresses
// without a network filter, or already filtered to direct connections only,
// are returned unchanged.
func FirstDegreeURL(searchURL string) (string, bool, error) {
	u, err := url.Parse(searchURL)
	if err != nil {
		return searchURL, false, fmt.Errorf("failed to parse search URL: %w", err)
	}

	q := u.Query()
	raw := q.Get(networkParam)
	if raw == "" {
		return searchURL, false, nil
	}

	var networks []string
	if err := json.Unmarshal([]byte(raw), &networks); err != nil {
		return searchURL, false, fmt.Errorf("failed to parse network filter %q: %w", raw, err)
	}

	if !slices.Contains(networks, secondDegree) && len(networks) <= 1 {
		return searchURL, false, nil
	}

	q.Set(networkParam, `["`+firstDegree+`"]`)
	u.RawQuery = q.Encode()
	return u.String(), true, nil
}
