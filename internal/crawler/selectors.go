package crawler

import "time"

// Selectors holds the addresses and CSS selectors the engine navigates by.
type Selectors struct {
	FeedURL         string `yaml:"feed_url"`
	ConnectionsLink string `yaml:"connections_link"`
	List            string `yaml:"list"`
	ListFallback    string `yaml:"list_fallback"`
	ResultURN       string `yaml:"result_urn"`
	ResultURNAttr   string `yaml:"result_urn_attr"`
	Pagination      string `yaml:"pagination"`
	// PageButton is a format string taking the target page number.
	PageButton  string `yaml:"page_button"`
	NextButton  string `yaml:"next_button"`
	ContactInfo string `yaml:"contact_info_suffix"`
}

// DefaultSelectors returns selectors for the current site markup.
func DefaultSelectors() Selectors {
	return Selectors{
		FeedURL:         "https://www.linkedin.com/feed/",
		ConnectionsLink: `a[href*="/search/results/people/?connectionOf="]`,
		List:            `ul[role="list"] > li`,
		ListFallback:    `div[data-chameleon-result-urn]`,
		ResultURN:       `div[data-chameleon-result-urn]`,
		ResultURNAttr:   "data-chameleon-result-urn",
		Pagination:      `div.artdeco-pagination`,
		PageButton:      `li[data-test-pagination-page-btn="%d"] > button`,
		NextButton:      `button.artdeco-pagination__button--next[aria-label="Next"]`,
		ContactInfo:     "overlay/contact-info/",
	}
}

// Timeouts bounds every wait for an element. Expiry of any of them is a
// local outcome, never a crawl failure.
type Timeouts struct {
	ConnectionsLink time.Duration `yaml:"connections_link"`
	List            time.Duration `yaml:"list"`
	Pagination      time.Duration `yaml:"pagination"`
	PageButton      time.Duration `yaml:"page_button"`
	NextButton      time.Duration `yaml:"next_button"`
	Confirm         time.Duration `yaml:"confirm"`
	// Poll is the interval between page change checks while confirming.
	Poll time.Duration `yaml:"poll"`
}

// DefaultTimeouts returns the production waits.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		ConnectionsLink: 30 * time.Second,
		List:            20 * time.Second,
		Pagination:      20 * time.Second,
		PageButton:      7 * time.Second,
		NextButton:      10 * time.Second,
		Confirm:         20 * time.Second,
		Poll:            250 * time.Millisecond,
	}
}

// DefaultPageSize is the number of list items taken from each result page.
const DefaultPageSize = 10
