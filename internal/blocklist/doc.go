// Package blocklist loads a tracker catalog in the Disconnect
// services.json format and exposes it as a read-only domain to entity index.
//
// The catalog groups tracking domains by category and owning entity:
//
//	{"categories": {"Advertising": [{"Google": {"http://www.google.com/": ["doubleclick.net", "google-analytics.com"]}}]}}
//
// An Index is built once and never modified, so it can be shared by any
// number of concurrent crawls without locking.
package blocklist
