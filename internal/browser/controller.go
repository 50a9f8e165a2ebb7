package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/cookiecrawl/internal/model"
)

// Default time limits for session operations.
const (
	DefaultNavigationTimeout = 60 * time.Second
	DefaultScreenshotTimeout = 15 * time.Second
	DefaultCollectTimeout    = 10 * time.Second
	DefaultOpenTimeout       = 30 * time.Second
)

// NavigationErrorKind tells why a navigation failed.
type NavigationErrorKind int

const (
	// NavigationTimeout means the page did not finish loading in time.
	NavigationTimeout NavigationErrorKind = iota

	// NavigationCrashed means the page or browser crashed while loading.
	NavigationCrashed

	// NavigationFailed covers every other load failure, such as a network
	// error reported by the browser.
	NavigationFailed
)

// String returns the kind name.
func (k NavigationErrorKind) String() string {
	switch k {
	case NavigationTimeout:
		return "timeout"
	case NavigationCrashed:
		return "crashed"
	default:
		return "failed"
	}
}

// Navigation is a completed page load.
type Navigation struct {
	FinalURL  string
	StartedAt time.Time
	EndedAt   time.Time
}

// NavigationError is a failed page load. It is an expected outcome and is
// returned as a value instead of an error.
type NavigationError struct {
	Kind      NavigationErrorKind
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
}

// Error implements error.
func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation %s: %v", e.Kind, e.Err)
}

// Unwrap returns the driver error.
func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Status maps the error onto the crawl status taxonomy.
func (e *NavigationError) Status() model.Status {
	switch e.Kind {
	case NavigationTimeout:
		return model.StatusNavigationTimeout
	case NavigationCrashed:
		return model.StatusSessionCrashed
	default:
		return model.StatusSessionError
	}
}

// Controller drives sessions of an Automation with bounded waits.
type Controller struct {
	automation        Automation
	openTimeout       time.Duration
	navigationTimeout time.Duration
	screenshotTimeout time.Duration
	collectTimeout    time.Duration
	now               func() time.Time
	logger            *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithNavigationTimeout bounds page loads.
func WithNavigationTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.navigationTimeout = d
		}
	}
}

// WithScreenshotTimeout bounds screenshot capture.
func WithScreenshotTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.screenshotTimeout = d
		}
	}
}

// WithCollectTimeout bounds exchange collection.
func WithCollectTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.collectTimeout = d
		}
	}
}

// WithOpenTimeout bounds browser start-up.
func WithOpenTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.openTimeout = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a Controller for the given automation.
func NewController(automation Automation, opts ...ControllerOption) *Controller {
	c := &Controller{
		automation:        automation,
		openTimeout:       DefaultOpenTimeout,
		navigationTimeout: DefaultNavigationTimeout,
		screenshotTimeout: DefaultScreenshotTimeout,
		collectTimeout:    DefaultCollectTimeout,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Open starts a session.
func (c *Controller) Open(ctx context.Context, cfg SessionConfig) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.openTimeout)
	defer cancel()

	s, err := c.automation.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	c.logger.Debug("browser session opened",
		"view_mode", string(cfg.ViewMode),
		"mobile", cfg.EmulateMobile,
	)
	return s, nil
}

// Navigate loads url, recording wall-clock timestamps around the load.
func (c *Controller) Navigate(ctx context.Context, s Session, url string) (Navigation, *NavigationError) {
	navCtx, cancel := context.WithTimeout(ctx, c.navigationTimeout)
	defer cancel()

	start := c.now()
	finalURL, err := s.Navigate(navCtx, url)
	end := c.now()

	if err != nil {
		navErr := &NavigationError{
			Kind:      classifyNavigationError(navCtx, err),
			Err:       err,
			StartedAt: start,
			EndedAt:   end,
		}
		c.logger.Debug("navigation failed", "url", url, "kind", navErr.Kind.String(), "error", err)
		return Navigation{}, navErr
	}
	if finalURL == "" {
		finalURL = url
	}
	return Navigation{FinalURL: finalURL, StartedAt: start, EndedAt: end}, nil
}

func classifyNavigationError(ctx context.Context, err error) NavigationErrorKind {
	switch {
	case errors.Is(err, ErrCrashed):
		return NavigationCrashed
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded):
		return NavigationTimeout
	default:
		return NavigationFailed
	}
}

// Collect returns the exchanges captured by the session.
func (c *Controller) Collect(ctx context.Context, s Session) ([]model.NetworkExchange, error) {
	ctx, cancel := context.WithTimeout(ctx, c.collectTimeout)
	defer cancel()

	exchanges, err := s.CapturedExchanges(ctx)
	if err != nil {
		return nil, timeoutAware(ctx, fmt.Errorf("collect exchanges: %w", err))
	}
	return exchanges, nil
}

// Screenshot writes a screenshot of the current page to path.
func (c *Controller) Screenshot(ctx context.Context, s Session, path string) error {
	ctx, cancel := context.WithTimeout(ctx, c.screenshotTimeout)
	defer cancel()

	if err := s.Screenshot(ctx, path); err != nil {
		return timeoutAware(ctx, fmt.Errorf("screenshot: %w", err))
	}
	return nil
}

// Close releases the session.
func (c *Controller) Close(s Session) error {
	if s == nil {
		return nil
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// timeoutAware makes sure errors caused by an expired deadline match
// ErrTimeout.
func timeoutAware(ctx context.Context, err error) error {
	if errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
