package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/connharvest/internal/model"
	"github.com/nao1215/connharvest/internal/pacing"
	"github.com/nao1215/connharvest/internal/store"
)

const (
	testSearchURL = "https://www.linkedin.com/search/results/people/?connectionOf=%5B%22abc%22%5D&network=%5B%22F%22%5D"
	testProfile   = "https://www.linkedin.com/in/root/"
)

var errFake = errors.New("fake failure")

// fakeSite simulates the result pages and detail views behind a Navigator
// and an Extractor.
type fakeSite struct {
	mu sync.Mutex

	sel   Selectors
	pages [][]model.Discovered
	page  int
	addr  string

	// listMissing hides both list containers.
	listMissing bool
	// fallbackOnly hides the primary list container.
	fallbackOnly bool
	listErr      error

	noPagination bool
	noPageButton bool
	noNextButton bool
	nextDisabled bool
	clickErr     error
	// stuck makes clicks do nothing.
	stuck bool
	// staticURN keeps the first result URN constant across pages.
	staticURN bool

	connectionsLink bool
	searchURL       string

	gotoErrs   map[string][]error
	emails     map[string]string
	extractErr map[string]error

	gotos   []string
	clicks  []string
	hovers  int
	scrolls int
	moves   int
}

func newFakeSite(pages ...[]model.Discovered) *fakeSite {
	return &fakeSite{
		sel:             DefaultSelectors(),
		pages:           pages,
		page:            1,
		addr:            testSearchURL,
		connectionsLink: true,
		searchURL:       testSearchURL,
		gotoErrs:        map[string][]error{},
		emails:          map[string]string{},
		extractErr:      map[string]error{},
	}
}

// people returns n discovered connections with ids prefix-1..prefix-n.
func people(prefix string, n int) []model.Discovered {
	out := make([]model.Discovered, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, model.Discovered{
			FullName:        fmt.Sprintf("%s %d", prefix, i),
			ProfileURL:      fmt.Sprintf("https://www.linkedin.com/in/%s-%d/?trk=x", prefix, i),
			CurrentEmployer: "Acme",
		})
	}
	return out
}

func detailOf(d model.Discovered) string {
	return model.DetailURL(model.Canonicalize(d.ProfileURL), DefaultSelectors().ContactInfo)
}

func (f *fakeSite) pageButton(n int) string {
	return fmt.Sprintf(f.sel.PageButton, n)
}

func (f *fakeSite) has(selector string) bool {
	switch selector {
	case f.sel.List:
		return !f.listMissing && !f.fallbackOnly
	case f.sel.ListFallback:
		return !f.listMissing
	case f.sel.Pagination:
		return !f.noPagination
	case f.sel.NextButton:
		return !f.noNextButton
	case f.sel.ConnectionsLink:
		return f.connectionsLink
	}
	for n := 1; n <= len(f.pages)+1; n++ {
		if selector == f.pageButton(n) {
			return !f.noPageButton && n <= len(f.pages)
		}
	}
	return false
}

func (f *fakeSite) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotos = append(f.gotos, url)
	if errs := f.gotoErrs[url]; len(errs) > 0 {
		err := errs[0]
		f.gotoErrs[url] = errs[1:]
		if err != nil {
			return err
		}
	}
	f.addr = url
	return nil
}

func (f *fakeSite) WaitForSelector(ctx context.Context, selector string, _ time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.has(selector), nil
}

func (f *fakeSite) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, selector)
	if f.clickErr != nil {
		return f.clickErr
	}
	if selector == f.sel.ConnectionsLink {
		f.addr = f.searchURL
		return nil
	}
	if f.stuck {
		return nil
	}
	if selector == f.sel.NextButton || selector == f.pageButton(f.page+1) {
		f.page++
		f.addr = fmt.Sprintf("%s&page=%d", testSearchURL, f.page)
	}
	return nil
}

func (f *fakeSite) Hover(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hovers++
	return nil
}

func (f *fakeSite) CurrentAddress(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addr, nil
}

func (f *fakeSite) Attribute(_ context.Context, selector, _ string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if selector != f.sel.ResultURN {
		return "", false, nil
	}
	if f.staticURN {
		return "urn:static", true, nil
	}
	return fmt.Sprintf("urn:page:%d", f.page), true, nil
}

func (f *fakeSite) Disabled(_ context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return selector == f.sel.NextButton && (f.nextDisabled || f.page >= len(f.pages)), nil
}

func (f *fakeSite) Scroll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls++
	return nil
}

func (f *fakeSite) MoveMouse(context.Context, pacing.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves++
	return nil
}

func (f *fakeSite) Viewport() pacing.Viewport {
	return pacing.Viewport{Width: 1200, Height: 800}
}

func (f *fakeSite) ExtractListItems(ctx context.Context, _ string, limit int) ([]model.Discovered, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.page > len(f.pages) {
		return nil, nil
	}
	items := f.pages[f.page-1]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *fakeSite) ExtractEmail(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.extractErr[f.addr]; err != nil {
		return "", false, err
	}
	email, ok := f.emails[f.addr]
	return email, ok, nil
}

func (f *fakeSite) clickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clicks)
}

func (f *fakeSite) gotoCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, g := range f.gotos {
		if strings.HasPrefix(g, prefix) {
			n++
		}
	}
	return n
}

// recordingPacer is a zero-delay pacer that records every band it is asked
// to draw from.
type recordingPacer struct {
	pacing.Zero

	mu         sync.Mutex
	bands      []pacing.Band
	pauseEvery int
}

func (r *recordingPacer) Delay(b pacing.Band) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bands = append(r.bands, b)
	return 0
}

func (r *recordingPacer) LongPauseAfter(pacing.Schedule) int {
	return r.pauseEvery
}

func (r *recordingPacer) count(b pacing.Band) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.bands {
		if got == b {
			n++
		}
	}
	return n
}

// testBands returns bands whose ranges are all distinct so recorded draws
// can be told apart.
func testBands() pacing.Bands {
	b := pacing.DefaultBands()
	b.Hover = pacing.Band{Min: 201 * time.Millisecond, Max: 601 * time.Millisecond}
	return b
}

func testTimeouts() Timeouts {
	t := DefaultTimeouts()
	t.Confirm = 50 * time.Millisecond
	t.Poll = 5 * time.Millisecond
	return t
}

func openTestStore(t *testing.T) *store.RecordStore {
	t.Helper()
	s, err := store.Open(store.DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return s
}

// failingStore wraps a RecordStore and fails MarkEnrichment after n calls.
type failingStore struct {
	RecordStore
	mu    sync.Mutex
	after int
	calls int
}

func (f *failingStore) MarkEnrichment(ctx context.Context, id, email string, status model.EmailStatus) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls > f.after
	f.mu.Unlock()
	if fail {
		return errFake
	}
	return f.RecordStore.MarkEnrichment(ctx, id, email, status)
}

func newTestPaginator(site *fakeSite, opts ...PaginatorOption) *Paginator {
	base := []PaginatorOption{
		WithPaginatorPacing(pacing.Zero{}, testBands()),
		WithPaginatorTimeouts(testTimeouts()),
	}
	return NewPaginator(site, site, append(base, opts...)...)
}

func newTestEnricher(s RecordStore, site *fakeSite, opts ...EnricherOption) *Enricher {
	base := []EnricherOption{WithEnricherPacing(pacing.Zero{}, testBands())}
	return NewEnricher(s, site, site, append(base, opts...)...)
}
