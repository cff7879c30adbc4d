package browser

import (
	"context"
	"strings"

	"github.com/nao1215/connharvest/internal/extract"
	"github.com/nao1215/connharvest/internal/model"
)

// Document is the part of a page the Extractor reads.
type Document interface {
	HTML(ctx context.Context) (string, error)
	CurrentAddress(ctx context.Context) (string, error)
}

// Extractor parses the current document of a page.
type Extractor struct {
	doc   Document
	items extract.ItemSelectors
}

// NewExtractor returns an Extractor reading doc with the given item selectors.
func NewExtractor(doc Document, items extract.ItemSelectors) *Extractor {
	return &Extractor{doc: doc, items: items}
}

// ExtractListItems implements crawler.Extractor.
func (e *Extractor) ExtractListItems(ctx context.Context, selector string, limit int) ([]model.Discovered, error) {
	html, err := e.doc.HTML(ctx)
	if err != nil {
		return nil, err
	}
	addr, err := e.doc.CurrentAddress(ctx)
	if err != nil {
		return nil, err
	}
	return extract.ListItems(strings.NewReader(html), addr, selector, e.items, limit)
}

// ExtractEmail implements crawler.Extractor.
func (e *Extractor) ExtractEmail(ctx context.Context) (string, bool, error) {
	html, err := e.doc.HTML(ctx)
	if err != nil {
		return "", false, err
	}
	return extract.Email(strings.NewReader(html))
}
