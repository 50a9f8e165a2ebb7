package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/cookiecrawl/internal/model"
)

// ViewMode selects whether the browser window is shown.
type ViewMode string

const (
	// ViewHeadless runs the browser without a window.
	ViewHeadless ViewMode = "headless"

	// ViewHeadful shows the browser window.
	ViewHeadful ViewMode = "headful"
)

// ParseViewMode converts a user supplied name into a ViewMode.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case ViewHeadless:
		return ViewHeadless, nil
	case ViewHeadful:
		return ViewHeadful, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidViewMode, s)
	}
}

// SessionConfig describes how a session is opened.
type SessionConfig struct {
	ViewMode      ViewMode
	EmulateMobile bool

	// UserAgent overrides the browser's user agent when not empty.
	UserAgent string

	// ProxyServer is passed to the browser as its proxy, e.g.
	// "socks5://127.0.0.1:9050". Empty means a direct connection.
	ProxyServer string

	// SettleDelay is how long to keep capturing traffic after the load
	// event, so that late tracker requests are observed.
	SettleDelay time.Duration
}

// Frame identifies a frame inside a page.
type Frame struct {
	// ID is unique within a session.
	ID string

	// Name is the frame's name or, if unnamed, its source URL.
	Name string
}

// Element is a node found by Session.FindByText.
type Element interface {
	// Tag returns the lower-case tag name.
	Tag() string

	// Text returns the text that matched.
	Text() string

	// Interactive reports whether the element is a natural click target
	// such as a button, link or input, or has role="button".
	Interactive() bool

	// Activate clicks the element. It returns ErrNotVisible when the
	// element is not rendered; any other error is an interaction failure.
	Activate(ctx context.Context) error
}

// Session is one browser tab with network capture enabled.
//
// Frame methods operate on a current browsing context that starts at the
// top-level document. SwitchFrame moves it to any frame returned by
// EnumerateFrames, and SwitchToRoot moves it back.
type Session interface {
	// Navigate loads url and returns the final URL after redirects.
	Navigate(ctx context.Context, url string) (string, error)

	// CapturedExchanges returns every exchange observed so far.
	CapturedExchanges(ctx context.Context) ([]model.NetworkExchange, error)

	// Screenshot writes a PNG of the page to path.
	Screenshot(ctx context.Context, path string) error

	// EnumerateFrames returns the frames directly nested in the current context.
	EnumerateFrames(ctx context.Context) ([]Frame, error)

	// SwitchFrame makes f the current context. f may be any frame
	// returned by EnumerateFrames since the last SwitchToRoot.
	SwitchFrame(ctx context.Context, f Frame) error

	// SwitchToRoot makes the top-level document the current context.
	SwitchToRoot(ctx context.Context) error

	// FindByText returns elements in the current context whose own text
	// or value attribute, passed through normalize, equals text.
	FindByText(ctx context.Context, text string, normalize func(string) string) ([]Element, error)

	// Close releases the session. Closing twice is not an error.
	Close() error
}

// Automation opens browser sessions.
type Automation interface {
	Open(ctx context.Context, cfg SessionConfig) (Session, error)
}
