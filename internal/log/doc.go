// Package log provides slog handlers that keep captured secrets out of log
// output.
//
// A crawl observes every request and response a page makes, including the
// cookie and set-cookie headers of third-party trackers and URLs that carry
// user identifiers in their query string. SecureHandler masks such values:
//   - attributes whose key names a credential or cookie header
//   - values that look like bearer tokens, JWTs, keys or long identifiers
//   - identifying query parameters of logged URLs
//
// Usage:
//
//	logger := log.NewLogger(os.Stderr, verbose, jsonOutput)
//	slog.SetDefault(logger)
//	logger.Debug("exchange", "url", u, "set-cookie", v) // set-cookie is masked
package log
