package chrome

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/cookiecrawl/internal/browser"
)

// Mobile emulation profile.
const (
	mobileWidth       = 390
	mobileHeight      = 844
	mobileScaleFactor = 3.0
	mobileUserAgent   = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Mobile Safari/537.36"

	desktopWidth  = 1366
	desktopHeight = 768
)

// Automation opens Chrome sessions.
type Automation struct {
	execPath string
	logger   *slog.Logger
}

// Option configures an Automation.
type Option func(*Automation)

// WithExecPath sets the Chrome binary. By default chromedp searches the
// usual install locations.
func WithExecPath(path string) Option {
	return func(a *Automation) {
		a.execPath = path
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Automation) {
		a.logger = logger
	}
}

// New creates an Automation.
func New(opts ...Option) *Automation {
	a := &Automation{}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// allocatorOptions builds the Chrome command line for cfg.
func (a *Automation) allocatorOptions(cfg browser.SessionConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.ViewMode != browser.ViewHeadful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-site-isolation-trials", true),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
		chromedp.WindowSize(desktopWidth, desktopHeight),
	)
	if a.execPath != "" {
		opts = append(opts, chromedp.ExecPath(a.execPath))
	}
	if cfg.ProxyServer != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyServer))
	}
	switch {
	case cfg.UserAgent != "":
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	case cfg.EmulateMobile:
		opts = append(opts, chromedp.UserAgent(mobileUserAgent))
	}
	return opts
}

// Open starts Chrome and returns a session with network capture enabled.
// The browser outlives ctx; ctx only bounds start-up.
func (a *Automation) Open(ctx context.Context, cfg browser.SessionConfig) (browser.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), a.allocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			a.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	s := &session{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		settleDelay: cfg.SettleDelay,
		capture:     newCapture(),
		logger:      a.logger,
	}
	chromedp.ListenTarget(tabCtx, s.handleEvent)

	actions := []chromedp.Action{network.Enable()}
	if cfg.EmulateMobile {
		ua := cfg.UserAgent
		if ua == "" {
			ua = mobileUserAgent
		}
		actions = append(actions,
			emulation.SetDeviceMetricsOverride(mobileWidth, mobileHeight, mobileScaleFactor, true),
			emulation.SetTouchEmulationEnabled(true).WithMaxTouchPoints(5),
			emulation.SetUserAgentOverride(ua),
		)
	}

	// The first Run starts the browser and binds it to tabCtx; abort it if
	// the caller gives up during start-up.
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx, actions...)
	stop()
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return s, nil
}
