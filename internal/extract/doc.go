// Package extract pulls connection data out of rendered result pages.
//
// The functions here work on an HTML snapshot of the live page, taken by the
// browser adapter, and use goquery selectors over golang.org/x/net/html.
// Text is NFC-normalized and whitespace-collapsed so the same name always
// produces the same bytes in the tables.
//
// Selectors are supplied by the caller and come from configuration; the
// defaults match the current markup of the connections search results.
package extract
