// Package model defines the records shared by the crawl engine, the storage
// backends and the report writers.
//
// This package contains the following main types:
//   - ConnectionRecord: one discovered connection and its enrichment state
//   - EmailRecord: one resolved contact value, written at most once
//   - Discovered: a raw tuple returned by the page extractor
//   - CrawlReport: a summarized view of the durable state for reporting
//
// It also provides the profile address helpers that derive the canonical
// identity used as the deduplication key.
package model
