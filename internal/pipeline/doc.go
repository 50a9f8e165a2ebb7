// Package pipeline runs the steps of a site visit in sequence.
//
// A visit is preflight, session open, navigation, consent handling,
// screenshot, exchange collection, session close and analysis. Each stage is
// a Step that reads and updates a shared Visit. A step that hits an expected
// failure, such as an unreachable site or a navigation timeout, marks the
// Visit as failed and the remaining steps are skipped. The browser session is
// released on every path before Execute returns.
//
// BatchProcessor runs independent pipelines concurrently with a limit,
// using errgroup.
package pipeline
