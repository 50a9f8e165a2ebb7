package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/cookiecrawl/internal/browser"
	"github.com/nao1215/cookiecrawl/internal/model"
)

// Fixture describes the page served by an Automation.
type Fixture struct {
	// HTML is the top-level document.
	HTML string

	// Frames maps a frame name to its document.
	Frames map[string]string

	// FinalURL is returned by Navigate. Empty means the requested URL.
	FinalURL string

	// Exchanges are returned by CapturedExchanges.
	Exchanges []model.NetworkExchange

	// OpenErr is returned by Open.
	OpenErr error

	// NavigateErr is returned by Navigate.
	NavigateErr error

	// BlockNavigation makes Navigate wait until its context is done.
	BlockNavigation bool

	// CollectErr is returned by CapturedExchanges.
	CollectErr error
}

// Automation serves a Fixture. It records every session it opens.
type Automation struct {
	fixture Fixture

	mu       sync.Mutex
	sessions []*Session
}

// New creates an Automation for f.
func New(f Fixture) *Automation {
	return &Automation{fixture: f}
}

// Open implements browser.Automation.
func (a *Automation) Open(_ context.Context, cfg browser.SessionConfig) (browser.Session, error) {
	if a.fixture.OpenErr != nil {
		return nil, a.fixture.OpenErr
	}

	root, err := html.Parse(strings.NewReader(a.fixture.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse root document: %w", err)
	}
	frames := make(map[string]*html.Node, len(a.fixture.Frames))
	for name, doc := range a.fixture.Frames {
		n, err := html.Parse(strings.NewReader(doc))
		if err != nil {
			return nil, fmt.Errorf("parse frame %q: %w", name, err)
		}
		frames[name] = n
	}

	s := &Session{fixture: &a.fixture, config: cfg, root: root, frames: frames}
	a.mu.Lock()
	a.sessions = append(a.sessions, s)
	a.mu.Unlock()
	return s, nil
}

// Sessions returns the sessions opened so far.
func (a *Automation) Sessions() []*Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Session, len(a.sessions))
	copy(out, a.sessions)
	return out
}

// Click is one successful element activation.
type Click struct {
	Frame string
	Text  string
}

// Session is a browser.Session over parsed fixture documents.
type Session struct {
	fixture *Fixture
	config  browser.SessionConfig
	root    *html.Node
	frames  map[string]*html.Node

	mu       sync.Mutex
	current  string
	closed   bool
	clicks   []Click
	attempts int
	visited  []string
}

// Config returns the configuration the session was opened with.
func (s *Session) Config() browser.SessionConfig {
	return s.config
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CurrentFrame returns the ID of the current context; "" is the root.
func (s *Session) CurrentFrame() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Clicks returns the successful activations in order.
func (s *Session) Clicks() []Click {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Click(nil), s.clicks...)
}

// Attempts returns the number of Activate calls, successful or not.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// VisitedFrames returns the frame IDs passed to SwitchFrame, in order.
func (s *Session) VisitedFrames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

// Navigate implements browser.Session.
func (s *Session) Navigate(ctx context.Context, url string) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	if s.fixture.BlockNavigation {
		<-ctx.Done()
		return "", fmt.Errorf("%w: %w", browser.ErrTimeout, ctx.Err())
	}
	if s.fixture.NavigateErr != nil {
		return "", s.fixture.NavigateErr
	}
	if s.fixture.FinalURL != "" {
		return s.fixture.FinalURL, nil
	}
	return url, nil
}

// CapturedExchanges implements browser.Session.
func (s *Session) CapturedExchanges(context.Context) ([]model.NetworkExchange, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.fixture.CollectErr != nil {
		return nil, s.fixture.CollectErr
	}
	return append([]model.NetworkExchange(nil), s.fixture.Exchanges...), nil
}

// Screenshot writes a placeholder file to path.
func (s *Session) Screenshot(_ context.Context, path string) error {
	if err := s.check(); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o600)
}

// EnumerateFrames implements browser.Session.
func (s *Session) EnumerateFrames(context.Context) ([]browser.Frame, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	doc, err := s.document()
	if err != nil {
		return nil, err
	}
	var frames []browser.Frame
	walk(doc, func(n *html.Node) bool {
		if n.DataAtom == atom.Iframe || n.DataAtom == atom.Frame {
			if name := attr(n, "data-frame"); name != "" {
				frames = append(frames, browser.Frame{ID: name, Name: name})
			}
		}
		return true
	})
	return frames, nil
}

// SwitchFrame implements browser.Session.
func (s *Session) SwitchFrame(_ context.Context, f browser.Frame) error {
	if err := s.check(); err != nil {
		return err
	}
	if _, ok := s.frames[f.ID]; !ok {
		return fmt.Errorf("%w: %s", browser.ErrNoSuchFrame, f.ID)
	}
	s.mu.Lock()
	s.current = f.ID
	s.visited = append(s.visited, f.ID)
	s.mu.Unlock()
	return nil
}

// SwitchToRoot implements browser.Session.
func (s *Session) SwitchToRoot(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ""
	return nil
}

// FindByText implements browser.Session.
func (s *Session) FindByText(_ context.Context, text string, normalize func(string) string) ([]browser.Element, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	doc, err := s.document()
	if err != nil {
		return nil, err
	}
	frame := s.CurrentFrame()

	var out []browser.Element
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		own := ownText(n)
		value := attr(n, "value")
		switch {
		case own != "" && normalize(own) == text:
			out = append(out, &element{session: s, node: n, frame: frame, text: own})
		case value != "" && normalize(value) == text:
			out = append(out, &element{session: s, node: n, frame: frame, text: value})
		}
		return true
	})
	return out, nil
}

// Close implements browser.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return browser.ErrSessionClosed
	}
	return nil
}

func (s *Session) document() (*html.Node, error) {
	current := s.CurrentFrame()
	if current == "" {
		return s.root, nil
	}
	doc, ok := s.frames[current]
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrNoSuchFrame, current)
	}
	return doc, nil
}

type element struct {
	session *Session
	node    *html.Node
	frame   string
	text    string
}

func (e *element) Tag() string  { return e.node.Data }
func (e *element) Text() string { return e.text }

func (e *element) Interactive() bool {
	switch e.node.DataAtom {
	case atom.Button, atom.A, atom.Input, atom.Select, atom.Summary:
		return true
	}
	return strings.EqualFold(attr(e.node, "role"), "button") || attr(e.node, "onclick") != ""
}

func (e *element) Activate(context.Context) error {
	s := e.session
	if err := s.check(); err != nil {
		return err
	}
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()

	if msg := attr(e.node, "data-click-error"); msg != "" {
		return errors.New(msg)
	}
	if !visible(e.node) {
		return browser.ErrNotVisible
	}

	s.mu.Lock()
	s.clicks = append(s.clicks, Click{Frame: e.frame, Text: e.text})
	s.mu.Unlock()
	return nil
}

func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// ownText joins the element's direct text children.
func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

func visible(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if hasAttr(p, "hidden") {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(attr(p, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}
