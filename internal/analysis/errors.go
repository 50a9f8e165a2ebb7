package analysis

import "errors"

var (
	// ErrNoHost is returned when a URL has no host component.
	ErrNoHost = errors.New("url has no host")

	// ErrNoRegistrableDomain is returned when the host is itself a public
	// suffix or otherwise has no registrable domain.
	ErrNoRegistrableDomain = errors.New("host has no registrable domain")
)
