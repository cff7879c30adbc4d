// Package main provides the entry point for the connharvest CLI.
//
// connharvest walks the connections list of a LinkedIn profile in a real
// browser, stores every connection it finds, and looks up the contact
// email of each one. All state is durable, so an interrupted crawl resumes
// where it stopped.
//
// Usage:
//
//	connharvest crawl <profile-url>
//	connharvest status
//
// See --help for all available options.
package main

func main() {
	Execute()
}
