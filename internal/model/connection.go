package model

import (
	"errors"
	"fmt"
	"strings"
)

// NotAvailable is the sentinel written when an employer or email could not be found.
const NotAvailable = "Not available"

// ErrorValue is the email value recorded alongside EmailStatusError.
const ErrorValue = "Error"

// ErrUnknownStatus is returned when a persisted status value is not recognized.
var ErrUnknownStatus = errors.New("unknown status value")

// IsNotAvailable reports whether v is empty or the NotAvailable sentinel.
func IsNotAvailable(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, NotAvailable)
}

// EmailStatus tracks whether a connection still needs its contact lookup.
type EmailStatus string

const (
	// EmailStatusPending marks a record that has not been enriched yet.
	EmailStatusPending EmailStatus = "pending"
	// EmailStatusCompleted marks a finished lookup, with or without an email.
	EmailStatusCompleted EmailStatus = "completed"
	// EmailStatusError marks a lookup that failed on navigation or extraction.
	EmailStatusError EmailStatus = "error"
)

// ParseEmailStatus converts a stored value into an EmailStatus.
func ParseEmailStatus(s string) (EmailStatus, error) {
	switch st := EmailStatus(strings.TrimSpace(s)); st {
	case EmailStatusPending, EmailStatusCompleted, EmailStatusError:
		return st, nil
	default:
		return "", fmt.Errorf("%w: email status %q", ErrUnknownStatus, s)
	}
}

// String returns the stored representation.
func (s EmailStatus) String() string {
	return string(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s EmailStatus) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *EmailStatus) UnmarshalText(text []byte) error {
	st, err := ParseEmailStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ProcessingStatus changes together with EmailStatus on every enrichment write.
type ProcessingStatus string

const (
	// ProcessingStatusNew marks a record that no enrichment attempt has touched.
	ProcessingStatusNew ProcessingStatus = "new"
	// ProcessingStatusProcessed marks a record with at least one enrichment attempt.
	ProcessingStatusProcessed ProcessingStatus = "processed"
)

// ParseProcessingStatus converts a stored value into a ProcessingStatus.
func ParseProcessingStatus(s string) (ProcessingStatus, error) {
	switch st := ProcessingStatus(strings.TrimSpace(s)); st {
	case ProcessingStatusNew, ProcessingStatusProcessed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: processing status %q", ErrUnknownStatus, s)
	}
}

// String returns the stored representation.
func (s ProcessingStatus) String() string {
	return string(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s ProcessingStatus) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ProcessingStatus) UnmarshalText(text []byte) error {
	st, err := ParseProcessingStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Discovered is a raw tuple returned by the page extractor for one list item.
type Discovered struct {
	FullName        string `json:"full_name"`
	ProfileURL      string `json:"profile_url"`
	CurrentEmployer string `json:"current_employer"`
}

// ConnectionRecord is one row of the connections table.
//
// FullName, ProfileURL, CurrentEmployer, PageFound and DateAdded are written
// once, when the connection is first seen. Only the storage backends mutate
// the status fields, and only through their enrichment update.
type ConnectionRecord struct {
	FullName         string           `json:"full_name"`
	ProfileURL       string           `json:"profile_url"`
	CanonicalID      string           `json:"canonical_id"`
	CurrentEmployer  string           `json:"current_employer"`
	SourceProfile    string           `json:"source_profile"`
	PageFound        int              `json:"page_found"`
	DateAdded        Date             `json:"date_added"`
	EmailStatus      EmailStatus      `json:"email_status"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	LastProcessed    Date             `json:"last_processed,omitzero"`
}

// NewConnectionRecord builds the record for a first sighting of d.
func NewConnectionRecord(d Discovered, sourceProfile string, page int, today Date) ConnectionRecord {
	employer := strings.TrimSpace(d.CurrentEmployer)
	if employer == "" {
		employer = NotAvailable
	}
	return ConnectionRecord{
		FullName:         strings.TrimSpace(d.FullName),
		ProfileURL:       strings.TrimSpace(d.ProfileURL),
		CanonicalID:      Canonicalize(d.ProfileURL),
		CurrentEmployer:  employer,
		SourceProfile:    sourceProfile,
		PageFound:        page,
		DateAdded:        today,
		EmailStatus:      EmailStatusPending,
		ProcessingStatus: ProcessingStatusNew,
	}
}

// ApplyEnrichment records the outcome of one enrichment attempt.
func (r *ConnectionRecord) ApplyEnrichment(status EmailStatus, today Date) {
	r.EmailStatus = status
	r.ProcessingStatus = ProcessingStatusProcessed
	r.LastProcessed = today
}

// Valid reports whether d carries the fields required to create a record.
func (d Discovered) Valid() bool {
	return strings.TrimSpace(d.FullName) != "" && Canonicalize(d.ProfileURL) != ""
}

// EmailRecord is one row of the email table.
type EmailRecord struct {
	CanonicalID   string `json:"canonical_id"`
	FullName      string `json:"full_name"`
	ProfileURL    string `json:"profile_url"`
	Email         string `json:"email"`
	DateExtracted Date   `json:"date_extracted"`
	SourceProfile string `json:"source_profile"`
}

// NewEmailRecord builds the ledger entry for a confirmed email of r.
func NewEmailRecord(r ConnectionRecord, email string, today Date) EmailRecord {
	return EmailRecord{
		CanonicalID:   r.CanonicalID,
		FullName:      r.FullName,
		ProfileURL:    r.ProfileURL,
		Email:         strings.TrimSpace(email),
		DateExtracted: today,
		SourceProfile: r.SourceProfile,
	}
}

// MergeResult counts the outcome of merging one page of discovered items.
type MergeResult struct {
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
}

// Progress is the resumability summary derived from the connections table.
type Progress struct {
	// LastPage is the highest PageFound, or 0 for an empty table.
	LastPage int `json:"last_page"`
	// TotalConnections is the number of rows.
	TotalConnections int `json:"total_connections"`
	// ProcessedEmails counts rows with EmailStatusCompleted.
	ProcessedEmails int `json:"processed_emails"`
}

// SummarizeProgress computes the Progress of records.
func SummarizeProgress(records []ConnectionRecord) Progress {
	var p Progress
	for _, r := range records {
		p.TotalConnections++
		if r.PageFound > p.LastPage {
			p.LastPage = r.PageFound
		}
		if r.EmailStatus == EmailStatusCompleted {
			p.ProcessedEmails++
		}
	}
	return p
}
