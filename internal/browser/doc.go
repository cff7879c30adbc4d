// Package browser connects the crawl engine to a real Chromium instance
// through go-rod.
//
// Launch starts the browser with a persistent profile directory so the
// signed-in session survives between runs. The returned Page implements
// crawler.Navigator, Extractor implements crawler.Extractor over the page
// HTML, and Session implements crawler.Session.
package browser
