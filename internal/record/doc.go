// Package record assembles the CrawlRecord of a visit from the results of
// the crawl steps. It performs no I/O.
package record
