package model

import "time"

// RedirectPair records a redirect from one registrable domain to another.
type RedirectPair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ExchangeFacts are the values derived from a single exchange.
type ExchangeFacts struct {
	RequestURL string `json:"request_url"`

	// RegisteredDomain, Subdomain and TopLevelDomain break down the request
	// host. They are empty when the host could not be broken down.
	RegisteredDomain string `json:"registered_domain,omitempty"`
	Subdomain        string `json:"subdomain,omitempty"`
	TopLevelDomain   string `json:"top_level_domain,omitempty"`

	ThirdParty bool `json:"third_party"`
	Tracker    bool `json:"tracker"`

	// CookieCount is the number of entries in the request's cookie header.
	CookieCount int `json:"cookie_count"`

	// SetCookieCount is the number of set-cookie values in the response.
	SetCookieCount int `json:"set_cookie_count"`
}

// CrawlRecord is the result of one visit. It is assembled once at the end
// of a visit and treated as read-only afterwards.
//
// When Status is a failure, the record carries no exchange, cookie or
// domain data.
type CrawlRecord struct {
	Target CrawlTarget `json:"target"`
	Status Status      `json:"status"`

	// Error describes the failure when Status is not StatusOK.
	Error string `json:"error,omitempty"`

	// StartedAt and EndedAt bracket the page load. For failed visits
	// they bracket the whole attempt.
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	FinalURL   string `json:"final_url,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`

	Consent ConsentOutcome `json:"consent"`

	Cookies           []Cookie       `json:"cookies,omitempty"`
	ThirdPartyDomains []string       `json:"third_party_domains,omitempty"`
	TrackerDomains    []string       `json:"tracker_domains,omitempty"`
	TrackerEntities   []string       `json:"tracker_entities,omitempty"`
	RedirectPairs     []RedirectPair `json:"redirect_pairs,omitempty"`

	Exchanges   []NetworkExchange `json:"exchanges,omitempty"`
	Facts       []ExchangeFacts   `json:"facts,omitempty"`
	Diagnostics []Diagnostic      `json:"diagnostics,omitempty"`
}

// LoadDuration returns the time between StartedAt and EndedAt.
func (r CrawlRecord) LoadDuration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Failed reports whether the visit ended with a failure status.
func (r CrawlRecord) Failed() bool {
	return r.Status.Failed()
}
