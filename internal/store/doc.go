// Package store persists the crawl state as two CSV tables.
//
// The connections table holds one row per discovered connection, keyed by
// the profile address without its query string. The email table holds at
// most one row per connection and is never rewritten for an existing key.
//
// Every call reads the whole table, changes it in memory, and writes it back
// through a temp file that is synced and renamed over the original, so an
// interrupted write never leaves a half-written table behind. A single
// process is assumed to own the files.
//
// Every field is written double-quoted, with inner quotes doubled.
package store
