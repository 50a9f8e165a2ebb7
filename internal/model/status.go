package model

// Status is the terminal status of a visit.
//
// Preflight statuses (TLS, Timeout, Connection) describe transport failures
// found before a browser session is opened. Session statuses describe
// failures of the browser session itself. Both short-circuit the visit.
type Status string

const (
	StatusOK Status = "ok"

	StatusTLS        Status = "tls"
	StatusTimeout    Status = "timeout"
	StatusConnection Status = "connection"

	StatusNavigationTimeout Status = "navigation_timeout"
	StatusSessionCrashed    Status = "session_crashed"

	// StatusSessionTimeout is used when collecting exchanges or taking the
	// screenshot exceeded its time limit after a successful page load.
	StatusSessionTimeout Status = "session_timeout"

	// StatusSessionError is used when the browser could not be started or
	// a session operation failed for a reason other than timeout or crash.
	StatusSessionError Status = "session_error"
)

// AllStatuses lists every status in report order.
func AllStatuses() []Status {
	return []Status{
		StatusOK,
		StatusTLS,
		StatusTimeout,
		StatusConnection,
		StatusNavigationTimeout,
		StatusSessionCrashed,
		StatusSessionTimeout,
		StatusSessionError,
	}
}

// Failed reports whether the status is a failure.
func (s Status) Failed() bool {
	return s != StatusOK
}

// Preflight reports whether the status was produced by the reachability probe.
func (s Status) Preflight() bool {
	switch s {
	case StatusTLS, StatusTimeout, StatusConnection:
		return true
	default:
		return false
	}
}

// String returns the status name.
func (s Status) String() string {
	return string(s)
}

// DiagnosticKind classifies a non-fatal problem noted while analyzing a visit.
type DiagnosticKind string

const (
	// DiagnosticDomainParseSkipped notes a request URL whose registrable
	// domain could not be computed.
	DiagnosticDomainParseSkipped DiagnosticKind = "domain_parse_skipped"

	// DiagnosticRedirectParseSkipped notes a location header that could
	// not be parsed.
	DiagnosticRedirectParseSkipped DiagnosticKind = "redirect_parse_skipped"
)

// Diagnostic is a skipped item together with the reason it was skipped.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Subject string         `json:"subject"`
	Reason  string         `json:"reason"`
}
