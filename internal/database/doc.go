// Package database provides SQLite-based storage for the crawl state.
//
// CrawlDB implements the same contract as the CSV record store in
// internal/store: a merge-only connections table keyed by canonical
// identity, and an email table with insert-if-absent semantics. It is
// selected with --backend sqlite.
//
// Each mutating call runs in its own transaction, so a crash leaves either
// the previous or the new state. Enrichment writes the email row and the
// status update in the same transaction.
//
// The driver is modernc.org/sqlite, which needs no cgo.
package database
