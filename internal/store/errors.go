package store

import "errors"

// ErrStoreCorrupt is returned when a persisted table cannot be parsed.
// It is fatal for a crawl run: continuing would rewrite the table and lose data.
var ErrStoreCorrupt = errors.New("store is corrupt")
