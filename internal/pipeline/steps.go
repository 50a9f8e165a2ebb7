package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/nao1215/cookiecrawl/internal/analysis"
	"github.com/nao1215/cookiecrawl/internal/browser"
	"github.com/nao1215/cookiecrawl/internal/consent"
	"github.com/nao1215/cookiecrawl/internal/model"
	"github.com/nao1215/cookiecrawl/internal/preflight"
)

// PreflightStep probes the target before a browser is started.
type PreflightStep struct {
	classifier *preflight.Classifier
}

// NewPreflightStep creates a PreflightStep.
func NewPreflightStep(classifier *preflight.Classifier) *PreflightStep {
	return &PreflightStep{classifier: classifier}
}

// Name returns the step name.
func (s *PreflightStep) Name() string {
	return "preflight"
}

// Do classifies the target and fails the visit when it is unreachable.
func (s *PreflightStep) Do(ctx context.Context, v *Visit) error {
	res := s.classifier.Classify(ctx, v.Target.URL())
	if res.OK() {
		return nil
	}
	return v.Fail(res.Status(), fmt.Errorf("preflight %s: %w", res.Kind, res.Err))
}

// OpenStep starts a browser session for the visit.
type OpenStep struct {
	controller *browser.Controller
	config     browser.SessionConfig
}

// NewOpenStep creates an OpenStep. cfg is the base configuration; mobile
// emulation and the user agent are set per job.
func NewOpenStep(controller *browser.Controller, cfg browser.SessionConfig) *OpenStep {
	return &OpenStep{controller: controller, config: cfg}
}

// Name returns the step name.
func (s *OpenStep) Name() string {
	return "open"
}

// Do opens the session.
func (s *OpenStep) Do(ctx context.Context, v *Visit) error {
	cfg := s.config
	cfg.EmulateMobile = v.Target.Mode == model.ModeMobile
	if v.UserAgent != "" {
		cfg.UserAgent = v.UserAgent
	}

	session, err := s.controller.Open(ctx, cfg)
	if err != nil {
		return v.Fail(sessionStatus(err), err)
	}
	v.Session = session
	v.closeSession = s.controller.Close
	return nil
}

// NavigateStep loads the target page.
type NavigateStep struct {
	controller *browser.Controller
}

// NewNavigateStep creates a NavigateStep.
func NewNavigateStep(controller *browser.Controller) *NavigateStep {
	return &NavigateStep{controller: controller}
}

// Name returns the step name.
func (s *NavigateStep) Name() string {
	return "navigate"
}

// Do navigates to the target URL.
func (s *NavigateStep) Do(ctx context.Context, v *Visit) error {
	nav, navErr := s.controller.Navigate(ctx, v.Session, v.Target.URL())
	if navErr != nil {
		v.loadStartedAt = navErr.StartedAt
		v.loadEndedAt = navErr.EndedAt
		return v.Fail(navErr.Status(), navErr)
	}
	v.Navigation = nav
	return nil
}

// ConsentStep tries to dismiss the consent banner. It never fails the visit.
type ConsentStep struct {
	engine *consent.Engine
	words  []string
}

// NewConsentStep creates a ConsentStep that tries words in order.
func NewConsentStep(engine *consent.Engine, words []string) *ConsentStep {
	return &ConsentStep{engine: engine, words: words}
}

// Name returns the step name.
func (s *ConsentStep) Name() string {
	return "consent"
}

// Do runs the consent engine unless the job disables it.
func (s *ConsentStep) Do(ctx context.Context, v *Visit) error {
	if v.SkipConsent {
		v.Consent = model.ConsentOutcome{Result: model.ConsentSkipped}
		return nil
	}
	v.Consent = s.engine.Attempt(ctx, v.Session, s.words)
	return nil
}

// ScreenshotStep saves a screenshot of the page after consent handling.
type ScreenshotStep struct {
	controller *browser.Controller
	dir        string
	logger     *slog.Logger
}

// NewScreenshotStep creates a ScreenshotStep writing into dir.
func NewScreenshotStep(controller *browser.Controller, dir string, logger *slog.Logger) *ScreenshotStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenshotStep{controller: controller, dir: dir, logger: logger}
}

// Name returns the step name.
func (s *ScreenshotStep) Name() string {
	return "screenshot"
}

// Do writes the screenshot. Only a timeout fails the visit; other errors
// leave the record without a screenshot.
func (s *ScreenshotStep) Do(ctx context.Context, v *Visit) error {
	path := filepath.Join(s.dir, ScreenshotName(v.Target))
	err := s.controller.Screenshot(ctx, v.Session, path)
	switch {
	case err == nil:
		v.Screenshot = path
		return nil
	case errors.Is(err, browser.ErrTimeout), errors.Is(err, browser.ErrCrashed):
		return v.Fail(sessionStatus(err), err)
	default:
		s.logger.Warn("screenshot failed", "target", v.Target.String(), "error", err)
		return nil
	}
}

// ScreenshotName returns the file name used for a target's screenshot,
// for example "example.com_mobile.png".
func ScreenshotName(t model.CrawlTarget) string {
	return FileStem(t) + ".png"
}

// FileStem returns a file system safe name for a target and its mode, for
// example "example.com_mobile".
func FileStem(t model.CrawlTarget) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '?', '*', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, t.Host())
	return fmt.Sprintf("%s_%s", name, t.Mode)
}

// CollectStep fetches the exchanges the session captured.
type CollectStep struct {
	controller *browser.Controller
}

// NewCollectStep creates a CollectStep.
func NewCollectStep(controller *browser.Controller) *CollectStep {
	return &CollectStep{controller: controller}
}

// Name returns the step name.
func (s *CollectStep) Name() string {
	return "collect"
}

// Do stores the captured exchanges in the visit.
func (s *CollectStep) Do(ctx context.Context, v *Visit) error {
	exchanges, err := s.controller.Collect(ctx, v.Session)
	if err != nil {
		return v.Fail(sessionStatus(err), err)
	}
	v.Exchanges = exchanges
	return nil
}

// CloseStep releases the browser session before analysis.
type CloseStep struct {
	logger *slog.Logger
}

// NewCloseStep creates a CloseStep.
func NewCloseStep(logger *slog.Logger) *CloseStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloseStep{logger: logger}
}

// Name returns the step name.
func (s *CloseStep) Name() string {
	return "close"
}

// Do closes the session. Close errors are logged only.
func (s *CloseStep) Do(_ context.Context, v *Visit) error {
	v.release(s.logger)
	return nil
}

// AnalyzeStep derives the privacy facts from the exchanges.
type AnalyzeStep struct {
	analyzer *analysis.Analyzer
}

// NewAnalyzeStep creates an AnalyzeStep.
func NewAnalyzeStep(analyzer *analysis.Analyzer) *AnalyzeStep {
	return &AnalyzeStep{analyzer: analyzer}
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return "analyze"
}

// Do runs the analyzer.
func (s *AnalyzeStep) Do(_ context.Context, v *Visit) error {
	v.Analysis = s.analyzer.Analyze(v.Target, v.Exchanges, v.Navigation.FinalURL)
	return nil
}

// sessionStatus maps a session error to a status.
func sessionStatus(err error) model.Status {
	switch {
	case errors.Is(err, browser.ErrCrashed):
		return model.StatusSessionCrashed
	case errors.Is(err, browser.ErrTimeout):
		return model.StatusSessionTimeout
	default:
		return model.StatusSessionError
	}
}

// DefaultPipelineConfig holds the collaborators of the standard visit.
type DefaultPipelineConfig struct {
	Classifier *preflight.Classifier
	Controller *browser.Controller
	Engine     *consent.Engine
	Analyzer   *analysis.Analyzer

	// Session is the base browser configuration.
	Session browser.SessionConfig

	// Words is the prioritized consent word list.
	Words []string

	// ScreenshotDir enables screenshots when not empty.
	ScreenshotDir string

	// SkipPreflight disables the reachability probe.
	SkipPreflight bool
}

// DefaultPipeline builds the standard visit:
// preflight, open, navigate, consent, screenshot, collect, close, analyze.
func DefaultPipeline(cfg DefaultPipelineConfig, opts ...Option) *Pipeline {
	p := New(opts...)

	if !cfg.SkipPreflight && cfg.Classifier != nil {
		p.AddStep(NewPreflightStep(cfg.Classifier))
	}
	p.AddSteps(
		NewOpenStep(cfg.Controller, cfg.Session),
		NewNavigateStep(cfg.Controller),
		NewConsentStep(cfg.Engine, cfg.Words),
	)
	if cfg.ScreenshotDir != "" {
		p.AddStep(NewScreenshotStep(cfg.Controller, cfg.ScreenshotDir, p.logger))
	}
	p.AddSteps(
		NewCollectStep(cfg.Controller),
		NewCloseStep(p.logger),
		NewAnalyzeStep(cfg.Analyzer),
	)
	return p
}
