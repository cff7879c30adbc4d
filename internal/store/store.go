package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/nao1215/connharvest/internal/model"
)

// DefaultConnectionsFile is the default file name of the connections table.
const DefaultConnectionsFile = "master_connections.csv"

const lastProcessedColumn = "Last Processed"

var requiredConnectionColumns = []string{
	"Full Name",
	"Profile URL",
	"Source Profile",
	"Page Found",
	"Date Added",
	"Email Status",
	"Processing Status",
}

// connectionRow is the on-disk layout of the connections table before any
// enrichment has been written.
type connectionRow struct {
	FullName         string                 `csv:"Full Name"`
	ProfileURL       string                 `csv:"Profile URL"`
	CurrentEmployer  string                 `csv:"Current Employer"`
	BaseURL          string                 `csv:"Base URL"`
	SourceProfile    string                 `csv:"Source Profile"`
	PageFound        int                    `csv:"Page Found"`
	DateAdded        model.Date             `csv:"Date Added"`
	EmailStatus      model.EmailStatus      `csv:"Email Status"`
	ProcessingStatus model.ProcessingStatus `csv:"Processing Status"`
}

// processedRow adds the Last Processed column, which appears once the first
// enrichment result is written and stays from then on.
type processedRow struct {
	connectionRow
	LastProcessed model.Date `csv:"Last Processed"`
}

func newProcessedRow(r model.ConnectionRecord) processedRow {
	return processedRow{
		connectionRow: connectionRow{
			FullName:         r.FullName,
			ProfileURL:       r.ProfileURL,
			CurrentEmployer:  r.CurrentEmployer,
			BaseURL:          r.CanonicalID,
			SourceProfile:    r.SourceProfile,
			PageFound:        r.PageFound,
			DateAdded:        r.DateAdded,
			EmailStatus:      r.EmailStatus,
			ProcessingStatus: r.ProcessingStatus,
		},
		LastProcessed: r.LastProcessed,
	}
}

func (r processedRow) record() model.ConnectionRecord {
	employer := r.CurrentEmployer
	if employer == "" {
		employer = model.NotAvailable
	}
	return model.ConnectionRecord{
		FullName:         r.FullName,
		ProfileURL:       r.ProfileURL,
		CanonicalID:      canonicalOf(r.ProfileURL, r.BaseURL),
		CurrentEmployer:  employer,
		SourceProfile:    r.SourceProfile,
		PageFound:        r.PageFound,
		DateAdded:        r.DateAdded,
		EmailStatus:      r.EmailStatus,
		ProcessingStatus: r.ProcessingStatus,
		LastProcessed:    r.LastProcessed,
	}
}

// Options configures a RecordStore.
type Options struct {
	// Dir is the directory holding both tables.
	Dir string

	// ConnectionsFile is the connections table file name.
	ConnectionsFile string

	// EmailsFile is the email table file name. Ignored when Ledger is set.
	EmailsFile string

	// Ledger receives confirmed emails. Defaults to an EmailLedger in Dir.
	Ledger Ledger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger receives diagnostics. Defaults to a discarding logger.
	Logger *slog.Logger
}

// DefaultOptions returns Options for the standard file names in dir.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:             dir,
		ConnectionsFile: DefaultConnectionsFile,
		EmailsFile:      DefaultEmailsFile,
	}
}

// RecordStore is the CSV-backed table of discovered connections.
type RecordStore struct {
	path   string
	ledger Ledger
	now    func() time.Time
	logger *slog.Logger
}

// Open prepares a RecordStore in opts.Dir, creating the directory if needed.
// The tables themselves are created on the first write.
func Open(opts Options) (*RecordStore, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.ConnectionsFile == "" {
		opts.ConnectionsFile = DefaultConnectionsFile
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(opts.Dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if opts.Ledger == nil {
		opts.Ledger = NewEmailLedger(opts.Dir, opts.EmailsFile, opts.Logger)
	}

	return &RecordStore{
		path:   filepath.Join(opts.Dir, opts.ConnectionsFile),
		ledger: opts.Ledger,
		now:    opts.Now,
		logger: opts.Logger,
	}, nil
}

// Path returns the location of the connections table.
func (s *RecordStore) Path() string {
	return s.path
}

// Ledger returns the ledger that receives confirmed emails.
func (s *RecordStore) Ledger() Ledger {
	return s.ledger
}

// table is the in-memory copy of the connections table for one call.
type table struct {
	records []model.ConnectionRecord
	index   map[string]int
	// processed records whether the Last Processed column is present.
	processed bool
}

func (s *RecordStore) load(ctx context.Context) (*table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, header, err := readTable[processedRow](s.path, requiredConnectionColumns)
	if err != nil {
		return nil, err
	}

	t := &table{
		records:   make([]model.ConnectionRecord, 0, len(rows)),
		index:     make(map[string]int, len(rows)),
		processed: slices.Contains(header, lastProcessedColumn),
	}
	for _, row := range rows {
		rec := row.record()
		if rec.CanonicalID == "" {
			return nil, fmt.Errorf("%w: %s: row for %q has no profile address", ErrStoreCorrupt, s.path, rec.FullName)
		}
		if _, dup := t.index[rec.CanonicalID]; dup {
			s.logger.Warn("duplicate row in connections table", "canonical_id", rec.CanonicalID)
			continue
		}
		t.index[rec.CanonicalID] = len(t.records)
		t.records = append(t.records, rec)
	}
	return t, nil
}

func (s *RecordStore) save(t *table) error {
	var err error
	if t.processed {
		rows := make([]processedRow, 0, len(t.records))
		for _, r := range t.records {
			rows = append(rows, newProcessedRow(r))
		}
		err = writeTable(s.path, rows)
	} else {
		rows := make([]connectionRow, 0, len(t.records))
		for _, r := range t.records {
			rows = append(rows, newProcessedRow(r).connectionRow)
		}
		err = writeTable(s.path, rows)
	}
	if err != nil {
		return fmt.Errorf("failed to write connections table: %w", err)
	}
	return nil
}

func (s *RecordStore) today() model.Date {
	return model.DateOf(s.now())
}

// LoadAll returns every stored record keyed by canonical identity.
// An absent or empty table yields an empty map.
func (s *RecordStore) LoadAll(ctx context.Context) (map[string]model.ConnectionRecord, error) {
	t, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	all := make(map[string]model.ConnectionRecord, len(t.records))
	for _, r := range t.records {
		all[r.CanonicalID] = r
	}
	return all, nil
}

// Records returns every stored record in first-discovery order.
func (s *RecordStore) Records(ctx context.Context) ([]model.ConnectionRecord, error) {
	t, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return t.records, nil
}

// MergeDiscovered adds the items not yet known and counts the rest as duplicates.
// Existing rows are never modified. Items without a name or profile address
// are skipped and counted as neither.
func (s *RecordStore) MergeDiscovered(ctx context.Context, items []model.Discovered, sourceProfile string, page int) (model.MergeResult, error) {
	var result model.MergeResult

	t, err := s.load(ctx)
	if err != nil {
		return result, err
	}

	today := s.today()
	for _, item := range items {
		if !item.Valid() {
			s.logger.Debug("skipping incomplete list item", "name", item.FullName, "profile_url", item.ProfileURL)
			continue
		}
		id := model.Canonicalize(item.ProfileURL)
		if _, ok := t.index[id]; ok {
			result.Duplicate++
			continue
		}
		t.index[id] = len(t.records)
		t.records = append(t.records, model.NewConnectionRecord(item, sourceProfile, page, today))
		result.New++
	}

	if result.New == 0 {
		return result, nil
	}
	if err := s.save(t); err != nil {
		return model.MergeResult{}, err
	}
	return result, nil
}

// MarkEnrichment records the outcome of a contact lookup for canonicalID.
// An unknown identity is logged and ignored. A completed lookup with a real
// email is written to the ledger before the record itself, so a crash in
// between leaves the record pending and the retry is a ledger no-op.
func (s *RecordStore) MarkEnrichment(ctx context.Context, canonicalID, email string, status model.EmailStatus) error {
	t, err := s.load(ctx)
	if err != nil {
		return err
	}

	id := model.Canonicalize(canonicalID)
	i, ok := t.index[id]
	if !ok {
		s.logger.Warn("enrichment for unknown connection ignored", "canonical_id", id)
		return nil
	}

	today := s.today()
	if status == model.EmailStatusCompleted && !model.IsNotAvailable(email) && email != model.ErrorValue {
		if _, err := s.ledger.InsertIfAbsent(ctx, model.NewEmailRecord(t.records[i], email, today)); err != nil {
			return fmt.Errorf("failed to record email: %w", err)
		}
	}

	t.records[i].ApplyEnrichment(status, today)
	t.processed = true
	return s.save(t)
}

// PendingForPage returns the records found on page that still await a lookup,
// in storage order.
func (s *RecordStore) PendingForPage(ctx context.Context, page int) ([]model.ConnectionRecord, error) {
	return s.RecordsForPage(ctx, page, model.EmailStatusPending)
}

// RecordsForPage returns the records found on page whose status is one of
// statuses, in storage order.
func (s *RecordStore) RecordsForPage(ctx context.Context, page int, statuses ...model.EmailStatus) ([]model.ConnectionRecord, error) {
	t, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.ConnectionRecord
	for _, r := range t.records {
		if r.PageFound == page && slices.Contains(statuses, r.EmailStatus) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ProgressSummary returns the resumability summary of the stored table.
func (s *RecordStore) ProgressSummary(ctx context.Context) (model.Progress, error) {
	t, err := s.load(ctx)
	if err != nil {
		return model.Progress{}, err
	}
	return model.SummarizeProgress(t.records), nil
}
