package analysis

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Hostname extracts the lower-cased host from a URL.
// Bare domains without a scheme are accepted.
func Hostname(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoHost
	}
	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "//") {
		raw = "//" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", ErrNoHost
	}
	return host, nil
}

// RegistrableDomain returns the public-suffix aware registrable domain
// (eTLD+1) of a URL or bare domain, e.g. "news.bbc.co.uk" -> "bbc.co.uk".
//
// IP addresses and single-label hosts such as "localhost" have no public
// suffix; they are returned unchanged so that they still compare equal to
// themselves.
func RegistrableDomain(raw string) (string, error) {
	host, err := Hostname(raw)
	if err != nil {
		return "", err
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	if !strings.Contains(host, ".") {
		return host, nil
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoRegistrableDomain, host)
	}
	return domain, nil
}
