package extract

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/connharvest/internal/model"
)

const mailtoPrefix = "mailto:"

// ItemSelectors locate the fields inside one result list item.
type ItemSelectors struct {
	// Name matches the element holding the display name. Its closest
	// enclosing anchor supplies the profile address.
	Name string `yaml:"name"`

	// NameText narrows Name to the visible text when the element also
	// carries screen-reader copy.
	NameText string `yaml:"name_text"`

	// Employer matches the subtitle with the current position.
	Employer string `yaml:"employer"`
}

// DefaultItemSelectors returns selectors for the current result markup.
func DefaultItemSelectors() ItemSelectors {
	return ItemSelectors{
		Name:     `span[dir="ltr"]`,
		NameText: `span[aria-hidden="true"]`,
		Employer: `.t-14.t-normal, .entity-result__primary-subtitle`,
	}
}

// CleanText normalizes s to NFC and collapses runs of whitespace.
func CleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func parse(r io.Reader) (*goquery.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// resolve makes href absolute against base. Unparsable references are
// returned unchanged.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil || href == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// ListItems returns up to limit connections from the items matched by
// itemSelector. Items without a name element, an enclosing link, or a
// non-empty name are skipped. A missing employer yields model.NotAvailable.
// A limit of zero or less means no limit.
func ListItems(r io.Reader, pageURL, itemSelector string, sel ItemSelectors, limit int) ([]model.Discovered, error) {
	doc, err := parse(r)
	if err != nil {
		return nil, err
	}

	var base *url.URL
	if pageURL != "" {
		if base, err = url.Parse(pageURL); err != nil {
			return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
		}
	}

	var items []model.Discovered
	doc.Find(itemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		nameEl := item.Find(sel.Name).First()
		if nameEl.Length() == 0 {
			return true
		}
		link := nameEl.Closest("a")
		if link.Length() == 0 {
			return true
		}
		href, _ := link.Attr("href")

		name := nameEl.Text()
		if sel.NameText != "" {
			if inner := nameEl.Find(sel.NameText).First(); inner.Length() > 0 {
				name = inner.Text()
			}
		}

		employer := model.NotAvailable
		if sel.Employer != "" {
			if el := item.Find(sel.Employer).First(); el.Length() > 0 {
				employer = CleanText(el.Text())
			}
		}

		d := model.Discovered{
			FullName:        CleanText(name),
			ProfileURL:      resolve(base, href),
			CurrentEmployer: employer,
		}
		if d.Valid() {
			items = append(items, d)
		}
		return limit <= 0 || len(items) < limit
	})

	return items, nil
}

// Email returns the address of the first mailto link in the page.
func Email(r io.Reader) (string, bool, error) {
	doc, err := parse(r)
	if err != nil {
		return "", false, err
	}

	var email string
	doc.Find(`a[href^="mailto:"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		addr := strings.TrimSpace(strings.TrimPrefix(href, mailtoPrefix))
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		if unescaped, err := url.PathUnescape(addr); err == nil {
			addr = unescaped
		}
		email = addr
		return email == ""
	})

	return email, email != "", nil
}
