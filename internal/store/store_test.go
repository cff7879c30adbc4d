package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/connharvest/internal/model"
)

var fixedNow = time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

// openTestStore creates a RecordStore in a temporary directory with a fixed clock.
func openTestStore(t *testing.T) (*RecordStore, string) {
	t.Helper()

	dir := t.TempDir()
	opts := DefaultOptions(dir)
	opts.Now = func() time.Time { return fixedNow }

	s, err := Open(opts)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return s, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoadAllEmpty(t *testing.T) {
	t.Parallel()

	t.Run("missing table", func(t *testing.T) {
		t.Parallel()

		s, _ := openTestStore(t)
		all, err := s.LoadAll(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(all) != 0 {
			t.Errorf("expected empty map, got %d entries", len(all))
		}
	})

	t.Run("zero byte table", func(t *testing.T) {
		t.Parallel()

		s, _ := openTestStore(t)
		writeFile(t, s.Path(), "")

		all, err := s.LoadAll(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(all) != 0 {
			t.Errorf("expected empty map, got %d entries", len(all))
		}
	})

	t.Run("progress of empty table", func(t *testing.T) {
		t.Parallel()

		s, _ := openTestStore(t)
		p, err := s.ProgressSummary(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p != (model.Progress{}) {
			t.Errorf("expected zero progress, got %+v", p)
		}
	})
}

func TestMergeDiscovered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("inserts new records as pending", func(t *testing.T) {
		t.Parallel()

		s, _ := openTestStore(t)
		res, err := s.MergeDiscovered(ctx, []model.Discovered{
			{FullName: "Alice", ProfileURL: "url/a", CurrentEmployer: "Acme"},
			{FullName: "Bob", ProfileURL: "url/b"},
		}, "root", 1)
		if err != nil {
			t.Fatalf("merge failed: %v", err)
		}
		if res.New != 2 || res.Duplicate != 0 {
			t.Errorf("unexpected result %+v", res)
		}

		records, err := s.Records(ctx)
		if err != nil {
			t.Fatalf("records failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		if records[0].FullName != "Alice" || records[1].FullName != "Bob" {
			t.Errorf("unexpected order: %q, %q", records[0].FullName, records[1].FullName)
		}
		for _, r := range records {
			if r.EmailStatus != model.EmailStatusPending || r.ProcessingStatus != model.ProcessingStatusNew {
				t.Errorf("%s: unexpected statuses %q/%q", r.FullName, r.EmailStatus, r.ProcessingStatus)
			}
			if r.DateAdded.String() != "2025-04-02" {
				t.Errorf("%s: unexpected date %q", r.FullName, r.DateAdded)
			}
			if r.SourceProfile != "root" || r.PageFound != 1 {
				t.Errorf("%s: unexpected source/page %q/%d", r.FullName, r.SourceProfile, r.PageFound)
			}
		}
		if records[1].CurrentEmployer != model.NotAvailable {
			t.Errorf("expected sentinel employer, got %q", records[1].CurrentEmployer)
		}
	})

	t.Run("query variants collapse to one record", func(t *testing.T) {
		t.Parallel()

		s, _ := openTestStore(t)
		res, err := s.MergeDiscovered(ctx, []model.Discovered{
			{FullName: "A", ProfileURL: "url/a"},
			{FullName: "B", ProfileURL: "url/a?x=1"},
		}, "root", 1)
		if err != nil {
			t.Fatalf("merge failed: %v", err)
		}
		if res.New != 1 || res.Duplicate != 1 {
			t.Errorf("expected 1 new and 1 duplicate, got %+v", res)
		}

		all, err := s.LoadAll(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		rec, ok := all["url/a"]
		if !ok || len(all) != 1 {
			t.Fatalf("expected exactly url/a, got %v", all)
		}
		if rec.FullName != "A" {
			t.Errorf("expected first sighting to win, got %q", rec.FullName)
		}
	})

	t.Run("merging twice is idempotent", func(t *testing.T) {
		t.Parallel()

		s, _ := openTestStore(t)
		items := []model.Discovered{
			{FullName: "A", ProfileURL: "url/a"},
			{FullName: "B", ProfileURL: "url/b"},
		}
		if _, err := s.MergeDiscovered(ctx, items, "root", 1); err != nil {
			t.Fatalf("first merge failed: %v", err)
		}
		before, err := os.ReadFile(s.Path())
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}

		res, err := s.MergeDiscovered(ctx, items, "root", 2)
		if err != nil {
			t.Fatalf("second merge failed: %v", err)
		}
		if res.New != 0 || res.Duplicate != 2 {
			t.Errorf("expected 0 new and 2 duplicates, got %+v", res)
		}

		after, err := os.ReadFile(s.Path())
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if string(before) != string(after) {
			t.Errorf("table changed on duplicate merge:\n%s\n---\n%s", before, after)
		}
	})

	t.Run("skips incomplete items", func(t *testing.T) {
		t.Parallel()

		s, _ := openTestStore(t)
		res, err := s.MergeDiscovered(ctx, []model.Discovered{
			{FullName: "", ProfileURL: "url/a"},
			{FullName: "B", ProfileURL: ""},
			{FullName: "C", ProfileURL: "url/c"},
		}, "root", 1)
		if err != nil {
			t.Fatalf("merge failed: %v", err)
		}
		if res.New != 1 || res.Duplicate != 0 {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		s, _ := openTestStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.MergeDiscovered(cctx, []model.Discovered{{FullName: "A", ProfileURL: "url/a"}}, "root", 1)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestTableFormat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, dir := openTestStore(t)

	if _, err := s.MergeDiscovered(ctx, []model.Discovered{
		{FullName: `Jane "JJ" Doe`, ProfileURL: "url/j?trk=1", CurrentEmployer: "Acme, Inc."},
	}, "root", 1); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines:\n%s", len(lines), data)
	}

	wantHeader := `"Full Name","Profile URL","Current Employer","Base URL","Source Profile","Page Found","Date Added","Email Status","Processing Status"`
	if lines[0] != wantHeader {
		t.Errorf("unexpected header:\n got %s\nwant %s", lines[0], wantHeader)
	}
	wantRow := `"Jane ""JJ"" Doe","url/j?trk=1","Acme, Inc.","url/j","root","1","2025-04-02","pending","new"`
	if lines[1] != wantRow {
		t.Errorf("unexpected row:\n got %s\nwant %s", lines[1], wantRow)
	}

	t.Run("no temp files are left behind", func(t *testing.T) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("read dir failed: %v", err)
		}
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".tmp") {
				t.Errorf("leftover temp file %s", e.Name())
			}
		}
	})

	t.Run("last processed column appears after enrichment", func(t *testing.T) {
		if err := s.MarkEnrichment(ctx, "url/j", model.NotAvailable, model.EmailStatusCompleted); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		data, err := os.ReadFile(s.Path())
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		if !strings.HasSuffix(lines[0], `,"Last Processed"`) {
			t.Errorf("expected Last Processed column, got %s", lines[0])
		}
		if !strings.HasSuffix(lines[1], `"completed","processed","2025-04-02"`) {
			t.Errorf("unexpected enriched row %s", lines[1])
		}
	})
}

func TestMarkEnrichment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seed := func(t *testing.T) *RecordStore {
		t.Helper()
		s, _ := openTestStore(t)
		if _, err := s.MergeDiscovered(ctx, []model.Discovered{
			{FullName: "A", ProfileURL: "url/a?x=1", CurrentEmployer: "E"},
			{FullName: "B", ProfileURL: "url/b"},
		}, "root", 2); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		return s
	}

	t.Run("discovery fields are write-once", func(t *testing.T) {
		t.Parallel()

		s := seed(t)
		before, err := s.LoadAll(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if err := s.MarkEnrichment(ctx, "url/a", "a@example.com", model.EmailStatusCompleted); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		after, err := s.LoadAll(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}

		b, a := before["url/a"], after["url/a"]
		if a.FullName != b.FullName || a.ProfileURL != b.ProfileURL ||
			a.PageFound != b.PageFound || !a.DateAdded.Equal(b.DateAdded) {
			t.Errorf("discovery fields changed: before=%+v after=%+v", b, a)
		}
		if a.EmailStatus != model.EmailStatusCompleted || a.ProcessingStatus != model.ProcessingStatusProcessed {
			t.Errorf("unexpected statuses %q/%q", a.EmailStatus, a.ProcessingStatus)
		}
		if a.LastProcessed.String() != "2025-04-02" {
			t.Errorf("unexpected last processed %q", a.LastProcessed)
		}
		if after["url/b"].EmailStatus != model.EmailStatusPending {
			t.Errorf("other record changed: %+v", after["url/b"])
		}
	})

	t.Run("email is written to the ledger", func(t *testing.T) {
		t.Parallel()

		s := seed(t)
		if err := s.MarkEnrichment(ctx, "url/a", "a@example.com", model.EmailStatusCompleted); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		emails, err := s.Ledger().Records(ctx)
		if err != nil {
			t.Fatalf("ledger records failed: %v", err)
		}
		if len(emails) != 1 {
			t.Fatalf("expected 1 email, got %d", len(emails))
		}
		got := emails[0]
		if got.CanonicalID != "url/a" || got.Email != "a@example.com" || got.FullName != "A" ||
			got.ProfileURL != "url/a?x=1" || got.SourceProfile != "root" || got.DateExtracted.String() != "2025-04-02" {
			t.Errorf("unexpected email record %+v", got)
		}
	})

	t.Run("not available counts as processed without an email", func(t *testing.T) {
		t.Parallel()

		s, _ := openTestStore(t)
		if _, err := s.MergeDiscovered(ctx, []model.Discovered{{FullName: "A", ProfileURL: "url/a"}}, "root", 1); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		if err := s.MarkEnrichment(ctx, "url/a", "not available", model.EmailStatusCompleted); err != nil {
			t.Fatalf("mark failed: %v", err)
		}

		p, err := s.ProgressSummary(ctx)
		if err != nil {
			t.Fatalf("progress failed: %v", err)
		}
		if p.ProcessedEmails != 1 {
			t.Errorf("expected 1 processed email, got %d", p.ProcessedEmails)
		}
		has, err := s.Ledger().Has(ctx, "url/a")
		if err != nil {
			t.Fatalf("ledger has failed: %v", err)
		}
		if has {
			t.Error("expected no email record")
		}
	})

	t.Run("error status records no email", func(t *testing.T) {
		t.Parallel()

		s := seed(t)
		if err := s.MarkEnrichment(ctx, "url/b", model.ErrorValue, model.EmailStatusError); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		emails, err := s.Ledger().Records(ctx)
		if err != nil {
			t.Fatalf("ledger records failed: %v", err)
		}
		if len(emails) != 0 {
			t.Errorf("expected no emails, got %+v", emails)
		}
		all, err := s.LoadAll(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if all["url/b"].EmailStatus != model.EmailStatusError {
			t.Errorf("expected error status, got %q", all["url/b"].EmailStatus)
		}
	})

	t.Run("unknown identity is a no-op", func(t *testing.T) {
		t.Parallel()

		s := seed(t)
		before, err := os.ReadFile(s.Path())
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if err := s.MarkEnrichment(ctx, "url/zzz", "z@example.com", model.EmailStatusCompleted); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		after, err := os.ReadFile(s.Path())
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if string(before) != string(after) {
			t.Error("table changed for unknown identity")
		}
		if has, _ := s.Ledger().Has(ctx, "url/zzz"); has {
			t.Error("ledger written for unknown identity")
		}
	})
}

func TestResumability(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	opts := DefaultOptions(dir)
	opts.Now = func() time.Time { return fixedNow }

	first, err := Open(opts)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := first.MergeDiscovered(ctx, []model.Discovered{
		{FullName: "A", ProfileURL: "url/a"},
		{FullName: "B", ProfileURL: "url/b"},
		{FullName: "C", ProfileURL: "url/c"},
	}, "root", 1); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if _, err := first.MergeDiscovered(ctx, []model.Discovered{{FullName: "D", ProfileURL: "url/d"}}, "root", 2); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if err := first.MarkEnrichment(ctx, "url/a", "a@example.com", model.EmailStatusCompleted); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	wantProgress, err := first.ProgressSummary(ctx)
	if err != nil {
		t.Fatalf("progress failed: %v", err)
	}

	second, err := Open(opts)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	gotProgress, err := second.ProgressSummary(ctx)
	if err != nil {
		t.Fatalf("progress failed: %v", err)
	}
	if gotProgress != wantProgress {
		t.Errorf("progress differs after reopen: %+v vs %+v", gotProgress, wantProgress)
	}
	want := model.Progress{LastPage: 2, TotalConnections: 4, ProcessedEmails: 1}
	if gotProgress != want {
		t.Errorf("got %+v, want %+v", gotProgress, want)
	}

	pending, err := second.PendingForPage(ctx, 1)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].CanonicalID != "url/b" || pending[1].CanonicalID != "url/c" {
		t.Errorf("unexpected pending set %+v", pending)
	}
}

func TestRecordsForPage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := openTestStore(t)
	if _, err := s.MergeDiscovered(ctx, []model.Discovered{
		{FullName: "A", ProfileURL: "url/a"},
		{FullName: "B", ProfileURL: "url/b"},
		{FullName: "C", ProfileURL: "url/c"},
	}, "root", 1); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if err := s.MarkEnrichment(ctx, "url/b", model.ErrorValue, model.EmailStatusError); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, err := s.PendingForPage(ctx, 1)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("expected 2 pending, got %d", len(pending))
	}

	retry, err := s.RecordsForPage(ctx, 1, model.EmailStatusPending, model.EmailStatusError)
	if err != nil {
		t.Fatalf("records for page failed: %v", err)
	}
	if len(retry) != 3 || retry[1].CanonicalID != "url/b" {
		t.Errorf("expected all three rows in storage order, got %+v", retry)
	}

	none, err := s.PendingForPage(ctx, 2)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected nothing on page 2, got %d", len(none))
	}
}

func TestCorruptTable(t *testing.T) {
	t.Parallel()

	const header = `"Full Name","Profile URL","Current Employer","Base URL","Source Profile","Page Found","Date Added","Email Status","Processing Status"` + "\n"

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing required column",
			content: `"Full Name","Profile URL"` + "\n" + `"A","url/a"` + "\n",
		},
		{
			name:    "non numeric page",
			content: header + `"A","url/a","E","url/a","root","one","2025-01-01","pending","new"` + "\n",
		},
		{
			name:    "unknown status",
			content: header + `"A","url/a","E","url/a","root","1","2025-01-01","done","new"` + "\n",
		},
		{
			name:    "invalid date",
			content: header + `"A","url/a","E","url/a","root","1","01/01/2025","pending","new"` + "\n",
		},
		{
			name:    "wrong field count",
			content: header + `"A","url/a"` + "\n",
		},
		{
			name:    "unterminated quote",
			content: header + `"A,"url/a","E","url/a","root","1","2025-01-01","pending","new"` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, _ := openTestStore(t)
			writeFile(t, s.Path(), tt.content)

			if _, err := s.LoadAll(context.Background()); !errors.Is(err, ErrStoreCorrupt) {
				t.Errorf("expected ErrStoreCorrupt, got %v", err)
			}
			_, err := s.MergeDiscovered(context.Background(), []model.Discovered{{FullName: "Z", ProfileURL: "url/z"}}, "root", 1)
			if !errors.Is(err, ErrStoreCorrupt) {
				t.Errorf("expected merge to refuse a corrupt table, got %v", err)
			}
		})
	}
}

func TestLegacyTableWithoutBaseURL(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	writeFile(t, s.Path(),
		`"Full Name","Profile URL","Current Employer","Source Profile","Page Found","Date Added","Email Status","Processing Status"`+"\n"+
			`"A","url/a?x=1","","root","3","2025-01-01","pending","new"`+"\n")

	all, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := all["url/a"]
	if !ok {
		t.Fatalf("expected url/a, got %v", all)
	}
	if rec.PageFound != 3 || rec.CurrentEmployer != model.NotAvailable {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestEmailLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("insert if absent is idempotent", func(t *testing.T) {
		t.Parallel()

		l := NewEmailLedger(t.TempDir(), "", nil)
		rec := model.EmailRecord{CanonicalID: "url/a", FullName: "A", ProfileURL: "url/a", Email: "a@example.com"}

		inserted, err := l.InsertIfAbsent(ctx, rec)
		if err != nil || !inserted {
			t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
		}

		rec.Email = "other@example.com"
		inserted, err = l.InsertIfAbsent(ctx, rec)
		if err != nil {
			t.Fatalf("second insert failed: %v", err)
		}
		if inserted {
			t.Error("second insert should be a no-op")
		}

		records, err := l.Records(ctx)
		if err != nil {
			t.Fatalf("records failed: %v", err)
		}
		if len(records) != 1 || records[0].Email != "a@example.com" {
			t.Errorf("expected the original email only, got %+v", records)
		}
	})

	t.Run("identity ignores query", func(t *testing.T) {
		t.Parallel()

		l := NewEmailLedger(t.TempDir(), "", nil)
		if _, err := l.InsertIfAbsent(ctx, model.EmailRecord{CanonicalID: "url/a", ProfileURL: "url/a", Email: "a@example.com"}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		has, err := l.Has(ctx, "url/a?x=1")
		if err != nil {
			t.Fatalf("has failed: %v", err)
		}
		if !has {
			t.Error("expected query variant to be found")
		}
	})

	t.Run("writes the email header", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		l := NewEmailLedger(dir, "", nil)
		if _, err := l.InsertIfAbsent(ctx, model.EmailRecord{CanonicalID: "url/a", ProfileURL: "url/a", Email: "a@example.com"}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(dir, DefaultEmailsFile))
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		want := `"Full Name","Profile URL","Base URL","Email","Date Extracted","Source Profile"`
		if !strings.HasPrefix(string(data), want+"\n") {
			t.Errorf("unexpected header:\n%s", data)
		}
	})

	t.Run("corrupt ledger", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, DefaultEmailsFile), `"Full Name"`+"\n"+`"A"`+"\n")
		l := NewEmailLedger(dir, "", nil)
		if _, err := l.Records(ctx); !errors.Is(err, ErrStoreCorrupt) {
			t.Errorf("expected ErrStoreCorrupt, got %v", err)
		}
	})
}
