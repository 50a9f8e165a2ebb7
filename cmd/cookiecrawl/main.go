// Package main provides the entry point for the cookiecrawl CLI.
//
// cookiecrawl visits websites with a real browser, dismisses cookie consent
// banners and records the third parties, trackers, redirects and cookies
// each page loads.
//
// Usage:
//
//	cookiecrawl crawl -u example.com -v headless
//	cookiecrawl crawl -i sites.csv -v headless --mobile
//	cookiecrawl summary
//
// See --help for all available options.
package main

func main() {
	Execute()
}
