package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/connharvest/internal/model"
	"github.com/nao1215/connharvest/internal/store"
)

// DefaultFileName is the database file created inside the output directory.
const DefaultFileName = "connharvest.db"

// CrawlDB stores connections and emails in a single SQLite file.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	now    func() time.Time
	logger *slog.Logger
}

// Options configures CrawlDB behavior.
type Options struct {
	// FileName is the database file name. Defaults to DefaultFileName.
	FileName string

	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger receives diagnostics. Defaults to a discarding logger.
	Logger *slog.Logger
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		FileName:          DefaultFileName,
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	if opts.FileName == "" {
		opts.FileName = DefaultFileName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	dbPath := filepath.Join(dbDir, opts.FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
		now:    opts.Now,
		logger: opts.Logger,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the location of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per discovered connection; seq preserves first-discovery order
	CREATE TABLE IF NOT EXISTS connections (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		canonical_id TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		profile_url TEXT NOT NULL,
		current_employer TEXT NOT NULL,
		source_profile TEXT NOT NULL,
		page_found INTEGER NOT NULL,
		date_added TEXT NOT NULL,
		email_status TEXT NOT NULL DEFAULT 'pending',
		processing_status TEXT NOT NULL DEFAULT 'new',
		last_processed TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_connections_page ON connections(page_found, email_status);

	-- At most one email per connection, never overwritten
	CREATE TABLE IF NOT EXISTS emails (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		canonical_id TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		profile_url TEXT NOT NULL,
		email TEXT NOT NULL,
		date_extracted TEXT NOT NULL,
		source_profile TEXT NOT NULL
	);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

func (cdb *CrawlDB) today() model.Date {
	return model.DateOf(cdb.now())
}

const connectionColumns = `canonical_id, full_name, profile_url, current_employer, source_profile,
	page_found, date_added, email_status, processing_status, last_processed`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanConnection reads one connections row. Unparsable dates or statuses
// are reported as store.ErrStoreCorrupt.
func scanConnection(s rowScanner) (model.ConnectionRecord, error) {
	var (
		rec                           model.ConnectionRecord
		dateAdded, lastProcessed      string
		emailStatus, processingStatus string
	)
	if err := s.Scan(
		&rec.CanonicalID,
		&rec.FullName,
		&rec.ProfileURL,
		&rec.CurrentEmployer,
		&rec.SourceProfile,
		&rec.PageFound,
		&dateAdded,
		&emailStatus,
		&processingStatus,
		&lastProcessed,
	); err != nil {
		return rec, err
	}

	var err error
	if rec.DateAdded, err = model.ParseDate(dateAdded); err != nil {
		return rec, fmt.Errorf("%w: %s: %v", store.ErrStoreCorrupt, rec.CanonicalID, err)
	}
	if rec.LastProcessed, err = model.ParseDate(lastProcessed); err != nil {
		return rec, fmt.Errorf("%w: %s: %v", store.ErrStoreCorrupt, rec.CanonicalID, err)
	}
	if rec.EmailStatus, err = model.ParseEmailStatus(emailStatus); err != nil {
		return rec, fmt.Errorf("%w: %s: %v", store.ErrStoreCorrupt, rec.CanonicalID, err)
	}
	if rec.ProcessingStatus, err = model.ParseProcessingStatus(processingStatus); err != nil {
		return rec, fmt.Errorf("%w: %s: %v", store.ErrStoreCorrupt, rec.CanonicalID, err)
	}
	return rec, nil
}

// queryConnections runs query and scans every resulting connections row.
func (cdb *CrawlDB) queryConnections(ctx context.Context, query string, args ...any) ([]model.ConnectionRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	var records []model.ConnectionRecord
	for rows.Next() {
		rec, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LoadAll returns every stored record keyed by canonical identity.
func (cdb *CrawlDB) LoadAll(ctx context.Context) (map[string]model.ConnectionRecord, error) {
	records, err := cdb.Records(ctx)
	if err != nil {
		return nil, err
	}
	all := make(map[string]model.ConnectionRecord, len(records))
	for _, r := range records {
		all[r.CanonicalID] = r
	}
	return all, nil
}

// Records returns every stored record in first-discovery order.
func (cdb *CrawlDB) Records(ctx context.Context) ([]model.ConnectionRecord, error) {
	return cdb.queryConnections(ctx, `SELECT `+connectionColumns+` FROM connections ORDER BY seq`)
}

// MergeDiscovered inserts the items not yet known and counts the rest as duplicates.
func (cdb *CrawlDB) MergeDiscovered(ctx context.Context, items []model.Discovered, sourceProfile string, page int) (model.MergeResult, error) {
	var result model.MergeResult

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO connections (` + connectionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(canonical_id) DO NOTHING
	`

	today := cdb.today()
	for _, item := range items {
		if !item.Valid() {
			cdb.logger.Debug("skipping incomplete list item", "name", item.FullName, "profile_url", item.ProfileURL)
			continue
		}
		rec := model.NewConnectionRecord(item, sourceProfile, page, today)
		res, err := tx.ExecContext(ctx, query,
			rec.CanonicalID,
			rec.FullName,
			rec.ProfileURL,
			rec.CurrentEmployer,
			rec.SourceProfile,
			rec.PageFound,
			rec.DateAdded.String(),
			rec.EmailStatus.String(),
			rec.ProcessingStatus.String(),
			rec.LastProcessed.String(),
		)
		if err != nil {
			return model.MergeResult{}, fmt.Errorf("failed to insert connection: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return model.MergeResult{}, fmt.Errorf("failed to count inserted rows: %w", err)
		}
		if n == 0 {
			result.Duplicate++
		} else {
			result.New++
		}
	}

	if err := tx.Commit(); err != nil {
		return model.MergeResult{}, fmt.Errorf("failed to commit merge: %w", err)
	}
	return result, nil
}

// MarkEnrichment records the outcome of a contact lookup for canonicalID.
// An unknown identity is logged and ignored.
func (cdb *CrawlDB) MarkEnrichment(ctx context.Context, canonicalID, email string, status model.EmailStatus) error {
	id := model.Canonicalize(canonicalID)

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanConnection(tx.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE canonical_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		cdb.logger.Warn("enrichment for unknown connection ignored", "canonical_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}

	today := cdb.today()
	if status == model.EmailStatusCompleted && !model.IsNotAvailable(email) && email != model.ErrorValue {
		if _, err := insertEmail(ctx, tx, model.NewEmailRecord(rec, email, today)); err != nil {
			return err
		}
	}

	rec.ApplyEnrichment(status, today)
	_, err = tx.ExecContext(ctx, `
	UPDATE connections
	SET email_status = ?, processing_status = ?, last_processed = ?
	WHERE canonical_id = ?
	`, rec.EmailStatus.String(), rec.ProcessingStatus.String(), rec.LastProcessed.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit enrichment: %w", err)
	}
	return nil
}

// PendingForPage returns the records found on page that still await a lookup.
func (cdb *CrawlDB) PendingForPage(ctx context.Context, page int) ([]model.ConnectionRecord, error) {
	return cdb.RecordsForPage(ctx, page, model.EmailStatusPending)
}

// RecordsForPage returns the records found on page whose status is one of statuses.
func (cdb *CrawlDB) RecordsForPage(ctx context.Context, page int, statuses ...model.EmailStatus) ([]model.ConnectionRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, 0, len(statuses)+1)
	args = append(args, page)
	for _, s := range statuses {
		args = append(args, s.String())
	}
	query := `SELECT ` + connectionColumns + ` FROM connections
	WHERE page_found = ? AND email_status IN (` + placeholders + `)
	ORDER BY seq`
	return cdb.queryConnections(ctx, query, args...)
}

// ProgressSummary returns the resumability summary of the stored table.
func (cdb *CrawlDB) ProgressSummary(ctx context.Context) (model.Progress, error) {
	var p model.Progress
	err := cdb.db.QueryRowContext(ctx, `
	SELECT
		COALESCE(MAX(page_found), 0),
		COUNT(*),
		COALESCE(SUM(CASE WHEN email_status = ? THEN 1 ELSE 0 END), 0)
	FROM connections
	`, model.EmailStatusCompleted.String()).Scan(&p.LastPage, &p.TotalConnections, &p.ProcessedEmails)
	if err != nil {
		return model.Progress{}, fmt.Errorf("failed to summarize progress: %w", err)
	}
	return p, nil
}
