// Package database stores crawl records in SQLite (modernc.org/sqlite, no
// cgo).
//
// Every record is kept as JSON together with indexed columns for the site,
// mode, status and consent outcome, and the third-party and tracker domains
// of successful visits are stored in their own table so that summaries can
// be computed with SQL.
package database
