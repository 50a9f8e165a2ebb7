// Package analysis derives privacy facts from the network exchanges captured
// during a visit.
//
// Given the target, the captured exchanges and the final landing URL, the
// Analyzer computes:
//   - third-party registrable domains (the target's own domain excluded)
//   - tracker domains and the entities owning them, via a blocklist.Index
//   - redirect pairs between registrable domains
//   - cookies set by responses, deduplicated by full attribute set
//   - per-exchange facts such as the number of cookies sent
//
// Items that cannot be parsed are skipped and reported as diagnostics.
// Nothing in this package returns an error for malformed input.
package analysis
