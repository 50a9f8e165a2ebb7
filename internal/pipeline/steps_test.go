package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/cookiecrawl/internal/analysis"
	"github.com/nao1215/cookiecrawl/internal/blocklist"
	"github.com/nao1215/cookiecrawl/internal/browser"
	"github.com/nao1215/cookiecrawl/internal/browser/browsertest"
	"github.com/nao1215/cookiecrawl/internal/consent"
	"github.com/nao1215/cookiecrawl/internal/model"
	"github.com/nao1215/cookiecrawl/internal/preflight"
)

func sessionConfig() browser.SessionConfig {
	return browser.SessionConfig{ViewMode: browser.ViewHeadless}
}

const bannerPage = `<html><body>
	<h1>News</h1>
	<iframe data-frame="cmp"></iframe>
</body></html>`

func bannerFixture() browsertest.Fixture {
	resp := model.NewHeaders(map[string]string{
		"content-type": "text/javascript",
		"set-cookie":   "uid=abc123; Domain=.tracker.net; Path=/; Secure",
	})
	return browsertest.Fixture{
		HTML:   bannerPage,
		Frames: map[string]string{"cmp": `<div><button>Accept all</button></div>`},
		Exchanges: []model.NetworkExchange{
			{
				RequestURL:      "https://cdn.tracker.net/pixel.js",
				Method:          http.MethodGet,
				RequestHeaders:  model.NewHeaders(map[string]string{"cookie": "a=1; b=2"}),
				ResponseHeaders: &resp,
				StatusCode:      http.StatusOK,
			},
			{
				RequestURL:     "https://fonts.static.org/font.woff2",
				Method:         http.MethodGet,
				RequestHeaders: model.NewHeaders(nil),
			},
		},
	}
}

type harness struct {
	server     *httptest.Server
	automation *browsertest.Automation
	pipeline   *Pipeline
	job        Job
}

func newHarness(t *testing.T, f browsertest.Fixture, handler http.HandlerFunc, controllerOpts ...browser.ControllerOption) *harness {
	t.Helper()

	if handler == nil {
		handler = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	classifier, err := preflight.NewClassifier(preflight.WithTimeout(200 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	automation := browsertest.New(f)
	controller := browser.NewController(automation, controllerOpts...)

	p := DefaultPipeline(DefaultPipelineConfig{
		Classifier:    classifier,
		Controller:    controller,
		Engine:        consent.NewEngine(consent.WithWordTimeout(time.Second)),
		Analyzer:      analysis.New(blocklist.New(map[string]string{"tracker.net": "Tracker Inc"})),
		Session:       sessionConfig(),
		Words:         []string{"accept all"},
		ScreenshotDir: t.TempDir(),
	})

	target, err := model.NewCrawlTarget(srv.URL, model.ModeMobile)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{server: srv, automation: automation, pipeline: p, job: Job{Target: target}}
}

func (h *harness) session(t *testing.T) *browsertest.Session {
	t.Helper()
	sessions := h.automation.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	return sessions[0]
}

func TestDefaultPipelineSteps(t *testing.T) {
	t.Parallel()

	p := DefaultPipeline(DefaultPipelineConfig{
		Classifier:    &preflight.Classifier{},
		ScreenshotDir: "shots",
	})
	want := []string{"preflight", "open", "navigate", "consent", "screenshot", "collect", "close", "analyze"}
	if got := p.StepNames(); !slices.Equal(got, want) {
		t.Errorf("StepNames() = %v, want %v", got, want)
	}

	p = DefaultPipeline(DefaultPipelineConfig{SkipPreflight: true})
	want = []string{"open", "navigate", "consent", "collect", "close", "analyze"}
	if got := p.StepNames(); !slices.Equal(got, want) {
		t.Errorf("StepNames() = %v, want %v", got, want)
	}
}

func TestVisitSuccess(t *testing.T) {
	t.Parallel()

	h := newHarness(t, bannerFixture(), nil)

	rec := h.pipeline.Run(context.Background(), h.job)

	if rec.Status != model.StatusOK {
		t.Fatalf("Status = %q (%s), want ok", rec.Status, rec.Error)
	}
	if !rec.Consent.Clicked() || rec.Consent.Frame != "cmp" {
		t.Errorf("Consent = %+v, want clicked in cmp", rec.Consent)
	}
	if len(rec.Exchanges) != 2 {
		t.Errorf("expected 2 exchanges, got %d", len(rec.Exchanges))
	}
	if !slices.Equal(rec.ThirdPartyDomains, []string{"static.org", "tracker.net"}) {
		t.Errorf("ThirdPartyDomains = %v", rec.ThirdPartyDomains)
	}
	if !slices.Equal(rec.TrackerDomains, []string{"tracker.net"}) {
		t.Errorf("TrackerDomains = %v", rec.TrackerDomains)
	}
	if !slices.Equal(rec.TrackerEntities, []string{"Tracker Inc"}) {
		t.Errorf("TrackerEntities = %v", rec.TrackerEntities)
	}
	if len(rec.Cookies) != 1 || rec.Cookies[0].Name != "uid" {
		t.Errorf("Cookies = %+v", rec.Cookies)
	}
	if len(rec.Facts) != 2 || rec.Facts[0].CookieCount != 2 {
		t.Errorf("Facts = %+v", rec.Facts)
	}
	if rec.Screenshot == "" {
		t.Error("expected screenshot path")
	} else if _, err := os.Stat(rec.Screenshot); err != nil {
		t.Errorf("screenshot not written: %v", err)
	}

	s := h.session(t)
	if !s.Closed() {
		t.Error("session was not closed")
	}
	if !s.Config().EmulateMobile {
		t.Error("mobile target did not enable emulation")
	}
}

func TestVisitSkipConsent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, bannerFixture(), nil)
	job := h.job
	job.SkipConsent = true
	job.UserAgent = "cookiecrawl-test"

	rec := h.pipeline.Run(context.Background(), job)

	if rec.Status != model.StatusOK {
		t.Fatalf("Status = %q, want ok", rec.Status)
	}
	if rec.Consent.Result != model.ConsentSkipped {
		t.Errorf("Consent = %q, want skipped", rec.Consent.Result)
	}
	s := h.session(t)
	if len(s.Clicks()) != 0 {
		t.Error("consent control was clicked")
	}
	if s.Config().UserAgent != "cookiecrawl-test" {
		t.Errorf("UserAgent = %q", s.Config().UserAgent)
	}
}

func TestVisitConsentNotFoundStillCollects(t *testing.T) {
	t.Parallel()

	f := bannerFixture()
	f.Frames = map[string]string{"cmp": `<p>no banner</p>`}
	h := newHarness(t, f, nil)

	rec := h.pipeline.Run(context.Background(), h.job)

	if rec.Status != model.StatusOK {
		t.Fatalf("Status = %q, want ok", rec.Status)
	}
	if rec.Consent.Result != model.ConsentNotFound {
		t.Errorf("Consent = %q, want not_found", rec.Consent.Result)
	}
	if len(rec.Exchanges) == 0 {
		t.Error("exchanges were not collected")
	}
}

func TestVisitPreflightTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	h := newHarness(t, bannerFixture(), func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	rec := h.pipeline.Run(context.Background(), h.job)

	if rec.Status != model.StatusTimeout {
		t.Fatalf("Status = %q (%s), want timeout", rec.Status, rec.Error)
	}
	if rec.Exchanges != nil || rec.ThirdPartyDomains != nil || rec.Cookies != nil {
		t.Error("failed record carries exchange data")
	}
	if len(h.automation.Sessions()) != 0 {
		t.Error("a browser session was opened for an unreachable target")
	}
}

func TestVisitPreflightConnectionRefused(t *testing.T) {
	t.Parallel()

	h := newHarness(t, bannerFixture(), nil)
	h.server.Close()

	rec := h.pipeline.Run(context.Background(), h.job)

	if rec.Status != model.StatusConnection {
		t.Errorf("Status = %q, want connection", rec.Status)
	}
}

func TestVisitNavigationTimeout(t *testing.T) {
	t.Parallel()

	f := bannerFixture()
	f.BlockNavigation = true
	h := newHarness(t, f, nil, browser.WithNavigationTimeout(50*time.Millisecond))

	rec := h.pipeline.Run(context.Background(), h.job)

	if rec.Status != model.StatusNavigationTimeout {
		t.Fatalf("Status = %q (%s), want navigation_timeout", rec.Status, rec.Error)
	}
	if rec.Exchanges != nil {
		t.Error("failed record carries exchanges")
	}
	if rec.LoadDuration() < 50*time.Millisecond {
		t.Errorf("LoadDuration() = %v, want at least the navigation timeout", rec.LoadDuration())
	}
	if !h.session(t).Closed() {
		t.Error("session was not closed after navigation timeout")
	}
}

func TestVisitSessionFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*browsertest.Fixture)
		want    model.Status
		session bool
	}{
		{
			name:   "open fails",
			mutate: func(f *browsertest.Fixture) { f.OpenErr = errors.New("chrome not found") },
			want:   model.StatusSessionError,
		},
		{
			name:    "navigation crash",
			mutate:  func(f *browsertest.Fixture) { f.NavigateErr = browser.ErrCrashed },
			want:    model.StatusSessionCrashed,
			session: true,
		},
		{
			name:    "navigation error",
			mutate:  func(f *browsertest.Fixture) { f.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED") },
			want:    model.StatusSessionError,
			session: true,
		},
		{
			name:    "collect timeout",
			mutate:  func(f *browsertest.Fixture) { f.CollectErr = browser.ErrTimeout },
			want:    model.StatusSessionTimeout,
			session: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := bannerFixture()
			tt.mutate(&f)
			h := newHarness(t, f, nil)

			rec := h.pipeline.Run(context.Background(), h.job)

			if rec.Status != tt.want {
				t.Errorf("Status = %q (%s), want %q", rec.Status, rec.Error, tt.want)
			}
			if rec.Exchanges != nil || rec.Cookies != nil {
				t.Error("failed record carries visit data")
			}
			if tt.session && !h.session(t).Closed() {
				t.Error("session was not closed")
			}
		})
	}
}

func TestScreenshotName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		domain string
		mode   model.Mode
		want   string
	}{
		{domain: "example.com", mode: model.ModeDesktop, want: "example.com_desktop.png"},
		{domain: "https://www.example.co.uk/path", mode: model.ModeMobile, want: "www.example.co.uk_mobile.png"},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			t.Parallel()

			target, err := model.NewCrawlTarget(tt.domain, tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if got := ScreenshotName(target); got != tt.want {
				t.Errorf("ScreenshotName() = %q, want %q", got, tt.want)
			}
			if filepath.Base(ScreenshotName(target)) != ScreenshotName(target) {
				t.Error("screenshot name contains a path separator")
			}
		})
	}
}
