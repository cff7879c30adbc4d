package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nao1215/connharvest/internal/model"
	"github.com/nao1215/connharvest/internal/store"
)

// execer is implemented by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertEmail adds rec unless its identity already has an email.
func insertEmail(ctx context.Context, e execer, rec model.EmailRecord) (bool, error) {
	res, err := e.ExecContext(ctx, `
	INSERT INTO emails (canonical_id, full_name, profile_url, email, date_extracted, source_profile)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(canonical_id) DO NOTHING
	`,
		model.Canonicalize(rec.CanonicalID),
		rec.FullName,
		rec.ProfileURL,
		rec.Email,
		rec.DateExtracted.String(),
		rec.SourceProfile,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert email: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count inserted rows: %w", err)
	}
	return n > 0, nil
}

// EmailLedger is the email table of a CrawlDB.
type EmailLedger struct {
	cdb *CrawlDB
}

var _ store.Ledger = (*EmailLedger)(nil)

// Ledger returns the email table of cdb.
func (cdb *CrawlDB) Ledger() *EmailLedger {
	return &EmailLedger{cdb: cdb}
}

// Has reports whether an email is recorded for canonicalID.
func (l *EmailLedger) Has(ctx context.Context, canonicalID string) (bool, error) {
	var count int
	err := l.cdb.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM emails WHERE canonical_id = ?`,
		model.Canonicalize(canonicalID),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

// InsertIfAbsent records rec unless its identity is already present.
func (l *EmailLedger) InsertIfAbsent(ctx context.Context, rec model.EmailRecord) (bool, error) {
	inserted, err := insertEmail(ctx, l.cdb.db, rec)
	if err != nil {
		return false, err
	}
	if !inserted {
		l.cdb.logger.Debug("email already recorded", "canonical_id", rec.CanonicalID)
	}
	return inserted, nil
}

// Records returns every email in insertion order.
func (l *EmailLedger) Records(ctx context.Context) ([]model.EmailRecord, error) {
	rows, err := l.cdb.db.QueryContext(ctx, `
	SELECT canonical_id, full_name, profile_url, email, date_extracted, source_profile
	FROM emails
	ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer rows.Close()

	var records []model.EmailRecord
	for rows.Next() {
		var (
			rec  model.EmailRecord
			date string
		)
		if err := rows.Scan(&rec.CanonicalID, &rec.FullName, &rec.ProfileURL, &rec.Email, &date, &rec.SourceProfile); err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		if rec.DateExtracted, err = model.ParseDate(date); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", store.ErrStoreCorrupt, rec.CanonicalID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
