// Package crawler implements the stateful crawl engine.
//
// # Components
//
//   - Bootstrapper: signs in if needed and opens the first page of a
//     profile's first-degree connections
//   - Paginator: walks the result pages (Listing, Paginating, Exhausted)
//   - Enricher: visits the contact details of each pending record on a page
//   - Crawler: the page loop tying the three together
//
// The engine talks to the browser only through the Navigator, Extractor and
// Session interfaces, and to storage only through RecordStore. Every action
// the site can observe is preceded by a wait drawn from a pacing.Controller.
//
// # Resumability
//
// Nothing is kept in memory across runs. Merging is idempotent and lookups
// are recorded per item, so a restarted run walks the pages again, counts
// the known connections as duplicates, and picks up the pending lookups.
//
// # Usage
//
//	boot := crawler.NewBootstrapper(session, page)
//	listSel, err := boot.Prepare(ctx, profileURL)
//	pag := crawler.NewPaginator(page, extractor, crawler.WithListSelector(listSel))
//	enr := crawler.NewEnricher(store, page, extractor)
//	result, err := crawler.New(store, pag, enr).Run(ctx, profileURL)
package crawler
