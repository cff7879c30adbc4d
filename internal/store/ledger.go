package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/connharvest/internal/model"
)

// DefaultEmailsFile is the default file name of the email table.
const DefaultEmailsFile = "connections_emails.csv"

// Ledger maps a connection's canonical identity to its extracted email.
// Entries are inserted once and never overwritten.
type Ledger interface {
	// Has reports whether an email is recorded for canonicalID.
	Has(ctx context.Context, canonicalID string) (bool, error)
	// InsertIfAbsent records rec unless its identity is already present.
	// It reports whether a row was inserted.
	InsertIfAbsent(ctx context.Context, rec model.EmailRecord) (bool, error)
	// Records returns every entry in insertion order.
	Records(ctx context.Context) ([]model.EmailRecord, error)
}

// emailRow is the on-disk layout of the email table.
type emailRow struct {
	FullName      string     `csv:"Full Name"`
	ProfileURL    string     `csv:"Profile URL"`
	BaseURL       string     `csv:"Base URL"`
	Email         string     `csv:"Email"`
	DateExtracted model.Date `csv:"Date Extracted"`
	SourceProfile string     `csv:"Source Profile"`
}

var requiredEmailColumns = []string{"Profile URL", "Base URL", "Email"}

func newEmailRow(rec model.EmailRecord) emailRow {
	return emailRow{
		FullName:      rec.FullName,
		ProfileURL:    rec.ProfileURL,
		BaseURL:       rec.CanonicalID,
		Email:         rec.Email,
		DateExtracted: rec.DateExtracted,
		SourceProfile: rec.SourceProfile,
	}
}

func (r emailRow) record() model.EmailRecord {
	return model.EmailRecord{
		CanonicalID:   canonicalOf(r.ProfileURL, r.BaseURL),
		FullName:      r.FullName,
		ProfileURL:    r.ProfileURL,
		Email:         r.Email,
		DateExtracted: r.DateExtracted,
		SourceProfile: r.SourceProfile,
	}
}

// canonicalOf derives the identity of a stored row. The profile address is
// authoritative; the stored base address is used only when it is missing.
func canonicalOf(profileURL, baseURL string) string {
	if id := model.Canonicalize(profileURL); id != "" {
		return id
	}
	return model.Canonicalize(baseURL)
}

// EmailLedger is a Ledger backed by a CSV file.
type EmailLedger struct {
	path   string
	logger *slog.Logger
}

// NewEmailLedger returns a ledger stored at dir/name.
// The file is created on the first insert.
func NewEmailLedger(dir, name string, logger *slog.Logger) *EmailLedger {
	if name == "" {
		name = DefaultEmailsFile
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EmailLedger{
		path:   filepath.Join(dir, name),
		logger: logger,
	}
}

// Path returns the location of the email table.
func (l *EmailLedger) Path() string {
	return l.path
}

func (l *EmailLedger) load(ctx context.Context) ([]model.EmailRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, _, err := readTable[emailRow](l.path, requiredEmailColumns)
	if err != nil {
		return nil, err
	}
	records := make([]model.EmailRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

// Has implements Ledger.
func (l *EmailLedger) Has(ctx context.Context, canonicalID string) (bool, error) {
	records, err := l.load(ctx)
	if err != nil {
		return false, err
	}
	canonicalID = model.Canonicalize(canonicalID)
	for _, r := range records {
		if r.CanonicalID == canonicalID {
			return true, nil
		}
	}
	return false, nil
}

// InsertIfAbsent implements Ledger.
func (l *EmailLedger) InsertIfAbsent(ctx context.Context, rec model.EmailRecord) (bool, error) {
	records, err := l.load(ctx)
	if err != nil {
		return false, err
	}
	rec.CanonicalID = model.Canonicalize(rec.CanonicalID)
	for _, r := range records {
		if r.CanonicalID == rec.CanonicalID {
			l.logger.Debug("email already recorded", "canonical_id", rec.CanonicalID)
			return false, nil
		}
	}

	rows := make([]emailRow, 0, len(records)+1)
	for _, r := range records {
		rows = append(rows, newEmailRow(r))
	}
	rows = append(rows, newEmailRow(rec))

	if err := os.MkdirAll(filepath.Dir(l.path), 0750); err != nil {
		return false, fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := writeTable(l.path, rows); err != nil {
		return false, fmt.Errorf("failed to write email table: %w", err)
	}
	l.logger.Debug("email recorded", "canonical_id", rec.CanonicalID, "email", rec.Email)
	return true, nil
}

// Records implements Ledger.
func (l *EmailLedger) Records(ctx context.Context) ([]model.EmailRecord, error) {
	return l.load(ctx)
}
