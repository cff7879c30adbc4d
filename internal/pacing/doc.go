// Package pacing decides how long to wait between observable browser actions.
//
// Every navigation, click, and extraction in the crawl engine is preceded by
// a call into a Controller. Human draws uniformly random values from the
// configured bands. Zero never waits, which keeps tests fast and
// deterministic.
//
// # Bands
//
// A Band is an inclusive {Min, Max} duration range. Bands groups the named
// ranges the engine uses:
//
//   - Action: before a navigation or click
//   - Settle: after a page load
//   - Hover: between pointer hover and click
//   - BetweenItems: between two contact lookups
//   - LongPause: the occasional long break
//   - BetweenPages: between two result pages
//   - Retry: between navigation attempts
//
// LongPauseEvery sets how many lookups run before the next LongPause.
package pacing
