// Package preflight probes a site over plain HTTP before a browser session
// is spent on it.
//
// The probe either succeeds (any HTTP status counts as reachable) or fails
// with one of three kinds: TLS for certificate and handshake problems,
// Timeout when the bounded probe runs out of time, and Connection for every
// other transport failure. Redirect loops are not failures; the browser
// follows redirects on its own.
package preflight
