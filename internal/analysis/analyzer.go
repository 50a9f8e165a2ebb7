package analysis

import (
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/Motmedel/utils_go/pkg/net/domain_breakdown"

	"github.com/nao1215/cookiecrawl/internal/blocklist"
	"github.com/nao1215/cookiecrawl/internal/model"
)

// Result holds everything derived from one visit's exchanges.
type Result struct {
	ThirdPartyDomains []string
	TrackerDomains    []string
	TrackerEntities   []string
	RedirectPairs     []model.RedirectPair
	Cookies           []model.Cookie

	// Facts has one entry per exchange, in exchange order.
	Facts []model.ExchangeFacts

	Diagnostics []model.Diagnostic
}

// Analyzer turns captured exchanges into a Result.
// It only reads its blocklist, so one Analyzer may be shared by concurrent
// crawls.
type Analyzer struct {
	blocklist *blocklist.Index
	logger    *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used for skipped items.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// New creates an Analyzer backed by the given blocklist.
// A nil blocklist classifies no domain as a tracker.
func New(idx *blocklist.Index, opts ...Option) *Analyzer {
	a := &Analyzer{blocklist: idx}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Analyze derives third parties, trackers, redirects, cookies and
// per-exchange facts from the exchanges of one visit.
func (a *Analyzer) Analyze(target model.CrawlTarget, exchanges []model.NetworkExchange, finalURL string) Result {
	run := &analysisRun{analyzer: a}

	targetDomain, err := RegistrableDomain(target.URL())
	if err != nil {
		// The target itself is unusable as a first party; fall back to the
		// raw host so nothing matches it by accident.
		run.skipDomain(target.URL(), err)
		targetDomain = target.Host()
	}

	requestDomains := make([]string, len(exchanges))
	thirdParties := make(map[string]struct{})
	for i, ex := range exchanges {
		d, err := RegistrableDomain(ex.RequestURL)
		if err != nil {
			run.skipDomain(ex.RequestURL, err)
			continue
		}
		requestDomains[i] = d
		if d != targetDomain {
			thirdParties[d] = struct{}{}
		}
	}

	var res Result
	res.ThirdPartyDomains = sortedKeys(thirdParties)
	res.TrackerDomains, res.TrackerEntities = a.classifyTrackers(res.ThirdPartyDomains)
	res.RedirectPairs = run.redirects(targetDomain, finalURL, exchanges, requestDomains)
	res.Cookies = extractCookies(exchanges)
	res.Facts = a.facts(exchanges, requestDomains, thirdParties)
	res.Diagnostics = run.diagnostics
	return res
}

// classifyTrackers intersects third-party domains with the blocklist and
// maps the result to entity names. Both outputs are sorted.
func (a *Analyzer) classifyTrackers(thirdParties []string) (domains, entities []string) {
	entitySet := make(map[string]struct{})
	for _, d := range thirdParties {
		entity, ok := a.blocklist.Entity(d)
		if !ok {
			continue
		}
		domains = append(domains, d)
		entitySet[entity] = struct{}{}
	}
	return domains, sortedKeys(entitySet)
}

func (a *Analyzer) facts(exchanges []model.NetworkExchange, requestDomains []string, thirdParties map[string]struct{}) []model.ExchangeFacts {
	if len(exchanges) == 0 {
		return nil
	}
	out := make([]model.ExchangeFacts, len(exchanges))
	for i, ex := range exchanges {
		f := model.ExchangeFacts{
			RequestURL:       ex.RequestURL,
			RegisteredDomain: requestDomains[i],
		}
		if host, err := Hostname(ex.RequestURL); err == nil {
			if b := domain_breakdown.GetDomainBreakdown(host); b != nil {
				f.Subdomain = b.Subdomain
				f.TopLevelDomain = b.TopLevelDomain
				if f.RegisteredDomain == "" {
					f.RegisteredDomain = b.RegisteredDomain
				}
			}
		}
		if _, ok := thirdParties[requestDomains[i]]; ok {
			f.ThirdParty = true
			f.Tracker = a.blocklist.Contains(requestDomains[i])
		}
		if cookie, ok := ex.RequestHeaders.Get("cookie"); ok {
			f.CookieCount = CountRequestCookies(cookie)
		}
		if ex.ResponseHeaders != nil {
			f.SetCookieCount = len(ex.ResponseHeaders.Values("set-cookie"))
		}
		out[i] = f
	}
	return out
}

// analysisRun carries per-call state so that Analyzer itself stays immutable.
type analysisRun struct {
	analyzer    *Analyzer
	diagnostics []model.Diagnostic
}

func (r *analysisRun) skipDomain(subject string, err error) {
	r.analyzer.logger.Debug("skipping unparsable domain", "url", subject, "error", err)
	r.diagnostics = append(r.diagnostics, model.Diagnostic{
		Kind:    model.DiagnosticDomainParseSkipped,
		Subject: subject,
		Reason:  err.Error(),
	})
}

func (r *analysisRun) skipRedirect(subject string, err error) {
	r.analyzer.logger.Debug("skipping unparsable redirect", "location", subject, "error", err)
	r.diagnostics = append(r.diagnostics, model.Diagnostic{
		Kind:    model.DiagnosticRedirectParseSkipped,
		Subject: subject,
		Reason:  err.Error(),
	})
}

// redirects emits a target->final pair when the landing domain differs from
// the target, then one pair per response whose location header points to a
// different registrable domain than its request. Identical pairs found by
// both paths are reported once, in order of first detection.
func (r *analysisRun) redirects(targetDomain, finalURL string, exchanges []model.NetworkExchange, requestDomains []string) []model.RedirectPair {
	var pairs []model.RedirectPair
	seen := make(map[model.RedirectPair]struct{})
	add := func(p model.RedirectPair) {
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}

	if strings.TrimSpace(finalURL) != "" {
		finalDomain, err := RegistrableDomain(finalURL)
		switch {
		case err != nil:
			r.skipRedirect(finalURL, err)
		case finalDomain != targetDomain:
			add(model.RedirectPair{Source: targetDomain, Target: finalDomain})
		}
	}

	for i, ex := range exchanges {
		location, ok := ex.ResponseHeader("location")
		if !ok || strings.TrimSpace(location) == "" {
			continue
		}
		source := requestDomains[i]
		if source == "" {
			continue
		}
		resolved, err := resolveLocation(ex.RequestURL, location)
		if err != nil {
			r.skipRedirect(location, err)
			continue
		}
		dest, err := RegistrableDomain(resolved)
		if err != nil {
			r.skipRedirect(location, err)
			continue
		}
		if dest != source {
			add(model.RedirectPair{Source: source, Target: dest})
		}
	}
	return pairs
}

// resolveLocation resolves a possibly relative location header against the
// URL of the request that received it.
func resolveLocation(requestURL, location string) (string, error) {
	loc, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", err
	}
	if loc.IsAbs() || loc.Host != "" {
		if loc.Scheme == "" {
			loc.Scheme = "https"
		}
		return loc.String(), nil
	}
	base, err := url.Parse(requestURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(loc).String(), nil
}

func extractCookies(exchanges []model.NetworkExchange) []model.Cookie {
	var cookies []model.Cookie
	for _, ex := range exchanges {
		if ex.ResponseHeaders == nil {
			continue
		}
		for _, v := range ex.ResponseHeaders.Values("set-cookie") {
			if c, ok := ParseSetCookie(v); ok {
				cookies = append(cookies, c)
			}
		}
	}
	return DedupCookies(cookies)
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
