// Package model defines the data structures shared by the crawler:
// crawl targets, captured network exchanges, cookies, consent outcomes
// and the per-visit CrawlRecord.
//
// The types are plain values that serialize to JSON for report output and
// database storage. Header collections are typed and ordered; header names
// are lower-cased once, when they are stored.
package model
