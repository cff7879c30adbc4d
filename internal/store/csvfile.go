package store

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"
)

// quotingWriter writes CSV records with every field quoted.
// encoding/csv only quotes fields that need it.
type quotingWriter struct {
	w *bufio.Writer
}

// Write implements csvutil.Writer.
func (q quotingWriter) Write(record []string) error {
	var b strings.Builder
	for i, field := range record {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	_, err := q.w.WriteString(b.String())
	return err
}

// readTable decodes every row of the CSV file at path into T.
// A missing or empty file yields no rows and a nil header.
// Every name in required must be present in the header.
func readTable[T any](path string, required []string) ([]T, []string, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from configured storage names
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))

	dec, err := csvutil.NewDecoder(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrStoreCorrupt, path, err)
	}

	header := dec.Header()
	for _, col := range required {
		if !slices.Contains(header, col) {
			return nil, nil, fmt.Errorf("%w: %s: missing required column %q", ErrStoreCorrupt, path, col)
		}
	}

	var rows []T
	for line := 2; ; line++ {
		var row T
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("%w: %s: row %d: %v", ErrStoreCorrupt, path, line, err)
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

// writeTable atomically replaces the file at path with a header row for T
// followed by rows. The data is written to a temp file in the same
// directory, synced, and renamed over path.
func writeTable[T any](path string, rows []T) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	bw := bufio.NewWriter(tmp)
	enc := csvutil.NewEncoder(quotingWriter{w: bw})
	enc.AutoHeader = false

	var zero T
	if err := enc.EncodeHeader(zero); err != nil {
		return fail(fmt.Errorf("writing header: %w", err))
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fail(fmt.Errorf("writing row: %w", err))
		}
	}
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
