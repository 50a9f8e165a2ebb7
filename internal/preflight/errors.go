package preflight

import "errors"

var (
	// ErrTooManyRedirects stops the probe after too many redirects.
	// Classify reports it as reachable.
	ErrTooManyRedirects = errors.New("stopped after too many redirects")

	// ErrInvalidProxyAddress is returned when the proxy address is not
	// "host:port" or "socks5://host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// Kind is the outcome of a reachability probe.
type Kind int

const (
	// KindOK means the site answered.
	KindOK Kind = iota

	// KindTLS means the TLS handshake or certificate verification failed.
	KindTLS

	// KindTimeout means the probe did not finish within its time limit.
	KindTimeout

	// KindConnection covers DNS failures, refused or reset connections and
	// any other transport error.
	KindConnection
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindTLS:
		return "tls"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}
