package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Mode is the device profile a target is visited with.
type Mode string

const (
	// ModeDesktop visits the target with the browser's default desktop profile.
	ModeDesktop Mode = "desktop"

	// ModeMobile visits the target with mobile device emulation enabled.
	ModeMobile Mode = "mobile"
)

// ErrEmptyDomain is returned when a crawl target has no domain.
var ErrEmptyDomain = errors.New("crawl target domain cannot be empty")

// ErrInvalidMode is returned by ParseMode for unknown mode names.
var ErrInvalidMode = errors.New("invalid crawl mode: must be desktop or mobile")

// String returns the mode name.
func (m Mode) String() string {
	return string(m)
}

// ParseMode converts a user supplied mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDesktop:
		return ModeDesktop, nil
	case ModeMobile:
		return ModeMobile, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// CrawlTarget identifies one visit: a site, its optional popularity rank and
// the device mode used for the visit.
//
// A CrawlTarget is a value and is never modified after creation. WithRank
// returns a copy.
type CrawlTarget struct {
	// Domain is the site to visit. It may be a bare domain ("example.com")
	// or a full URL ("https://example.com/path").
	Domain string `json:"domain"`

	// Rank is the site's position in a popularity list, if known.
	Rank *int `json:"rank,omitempty"`

	// Mode selects desktop or mobile emulation.
	Mode Mode `json:"mode"`
}

// NewCrawlTarget creates a target for the given domain and mode.
// Surrounding whitespace and a trailing slash are removed from the domain.
func NewCrawlTarget(domain string, mode Mode) (CrawlTarget, error) {
	domain = strings.TrimSuffix(strings.TrimSpace(domain), "/")
	if domain == "" {
		return CrawlTarget{}, ErrEmptyDomain
	}
	if mode == "" {
		mode = ModeDesktop
	}
	return CrawlTarget{Domain: domain, Mode: mode}, nil
}

// WithRank returns a copy of the target carrying the given rank.
func (t CrawlTarget) WithRank(rank int) CrawlTarget {
	r := rank
	t.Rank = &r
	return t
}

// URL returns the address the browser navigates to.
// Bare domains are visited over HTTPS.
func (t CrawlTarget) URL() string {
	if strings.Contains(t.Domain, "://") {
		return t.Domain
	}
	return "https://" + t.Domain
}

// Host returns the host part of the target without scheme, port or path.
func (t CrawlTarget) Host() string {
	u, err := url.Parse(t.URL())
	if err != nil || u.Hostname() == "" {
		return t.Domain
	}
	return strings.ToLower(u.Hostname())
}

// String returns a short identifier such as "example.com (mobile)".
func (t CrawlTarget) String() string {
	return fmt.Sprintf("%s (%s)", t.Domain, t.Mode)
}
