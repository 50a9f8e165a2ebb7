package chrome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/cookiecrawl/internal/browser"
	"github.com/nao1215/cookiecrawl/internal/model"
)

// frameEntry is a frame found in the pierced DOM tree.
type frameEntry struct {
	frame  browser.Frame
	parent string
	doc    cdp.NodeID
}

type session struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	settleDelay time.Duration
	capture     *capture
	crashed     atomic.Bool
	logger      *slog.Logger

	mu      sync.Mutex
	rootDoc cdp.NodeID
	frames  map[string]frameEntry
	current string

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

func (s *session) handleEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		s.capture.requestWillBeSent(e)
	case *network.EventRequestWillBeSentExtraInfo:
		s.capture.requestExtraInfo(e)
	case *network.EventResponseReceived:
		s.capture.responseReceived(e)
	case *network.EventResponseReceivedExtraInfo:
		s.capture.responseExtraInfo(e)
	case *inspector.EventTargetCrashed:
		s.crashed.Store(true)
		s.logger.Warn("chrome target crashed")
	}
}

// run executes actions on the tab, bounded by ctx.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.closed.Load() {
		return browser.ErrSessionClosed
	}
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case s.crashed.Load(), errors.Is(err, chromedp.ErrChannelClosed):
		return fmt.Errorf("%w: %w", browser.ErrCrashed, err)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", browser.ErrTimeout, err)
	default:
		return err
	}
}

// Navigate loads url, waits for the load event plus the settle delay and
// returns the final location.
func (s *session) Navigate(ctx context.Context, url string) (string, error) {
	var final string
	actions := []chromedp.Action{chromedp.Navigate(url)}
	if s.settleDelay > 0 {
		actions = append(actions, chromedp.Sleep(s.settleDelay))
	}
	actions = append(actions, chromedp.Location(&final))
	if err := s.run(ctx, actions...); err != nil {
		return "", err
	}
	return final, nil
}

// CapturedExchanges returns the exchanges recorded so far.
func (s *session) CapturedExchanges(context.Context) ([]model.NetworkExchange, error) {
	if s.closed.Load() {
		return nil, browser.ErrSessionClosed
	}
	return s.capture.snapshot(), nil
}

// Screenshot writes a full-page PNG to path.
func (s *session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o600)
}

// refresh reloads the pierced DOM tree and indexes every frame in it.
// Node IDs from earlier trees become invalid.
func (s *session) refresh(ctx context.Context) error {
	var root *cdp.Node
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		root, err = dom.GetDocument().WithDepth(-1).WithPierce(true).Do(ctx)
		return err
	}))
	if err != nil {
		return err
	}

	frames := make(map[string]frameEntry)
	var walk func(n *cdp.Node, parent string)
	walk = func(n *cdp.Node, parent string) {
		if n.ContentDocument != nil {
			id := string(n.FrameID)
			if id == "" {
				id = fmt.Sprintf("node-%d", n.NodeID)
			}
			name := n.AttributeValue("name")
			if name == "" {
				name = n.AttributeValue("src")
			}
			frames[id] = frameEntry{
				frame:  browser.Frame{ID: id, Name: name},
				parent: parent,
				doc:    n.ContentDocument.NodeID,
			}
			walk(n.ContentDocument, id)
		}
		for _, c := range n.Children {
			walk(c, parent)
		}
		for _, c := range n.ShadowRoots {
			walk(c, parent)
		}
	}
	walk(root, "")

	s.mu.Lock()
	s.rootDoc = root.NodeID
	s.frames = frames
	s.mu.Unlock()
	return nil
}

// EnumerateFrames returns the frames nested directly in the current context.
func (s *session) EnumerateFrames(ctx context.Context) ([]browser.Frame, error) {
	s.mu.Lock()
	loaded := s.frames != nil
	s.mu.Unlock()
	if !loaded {
		if err := s.refresh(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []browser.Frame
	for _, e := range s.frames {
		if e.parent == s.current {
			out = append(out, e.frame)
		}
	}
	// Map order is random; keep enumeration stable.
	sortFrames(out)
	return out, nil
}

// SwitchFrame makes f the current context.
func (s *session) SwitchFrame(_ context.Context, f browser.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.frames[f.ID]; !ok {
		return fmt.Errorf("%w: %s", browser.ErrNoSuchFrame, f.ID)
	}
	s.current = f.ID
	return nil
}

// SwitchToRoot makes the top-level document current and reloads the frame
// tree so that frames added since the last call are found.
func (s *session) SwitchToRoot(ctx context.Context) error {
	s.mu.Lock()
	s.current = ""
	s.mu.Unlock()
	if s.closed.Load() {
		return nil
	}
	return s.refresh(ctx)
}

// currentDocument returns the node ID of the current context's document.
func (s *session) currentDocument(ctx context.Context) (cdp.NodeID, string, error) {
	s.mu.Lock()
	loaded := s.frames != nil
	s.mu.Unlock()
	if !loaded {
		if err := s.refresh(ctx); err != nil {
			return 0, "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == "" {
		return s.rootDoc, "", nil
	}
	e, ok := s.frames[s.current]
	if !ok {
		return 0, "", fmt.Errorf("%w: %s", browser.ErrNoSuchFrame, s.current)
	}
	return e.doc, s.current, nil
}

// candidate is an element reported by collectScript.
type candidate struct {
	Index int    `json:"i"`
	Tag   string `json:"tag"`
	Text  string `json:"text"`
	Value string `json:"value"`
	Role  string `json:"role"`
	Click bool   `json:"click"`
}

// collectScript runs with this bound to a Document and reports every
// element with a short own text or value.
const collectScript = `function() {
	const out = [];
	const all = this.querySelectorAll('*');
	for (let i = 0; i < all.length; i++) {
		const el = all[i];
		let own = '';
		for (const c of el.childNodes) {
			if (c.nodeType === 3) { own += c.nodeValue; }
		}
		own = own.trim();
		let value = typeof el.value === 'string' ? el.value : (el.getAttribute('value') || '');
		value = value.trim();
		if (own.length > 100) { own = ''; }
		if (value.length > 100) { value = ''; }
		if (own === '' && value === '') { continue; }
		out.push({i: i, tag: el.tagName.toLowerCase(), text: own, value: value,
			role: el.getAttribute('role') || '', click: el.hasAttribute('onclick')});
	}
	return out;
}`

// elementScript returns the element at the given querySelectorAll index.
const elementScript = `function() { return this.querySelectorAll('*')[%d] || null; }`

// FindByText returns the elements of the current context whose own text or
// value attribute normalizes to text.
func (s *session) FindByText(ctx context.Context, text string, normalize func(string) string) ([]browser.Element, error) {
	docID, frameID, err := s.currentDocument(ctx)
	if err != nil {
		return nil, err
	}

	var out []browser.Element
	err = s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		doc, err := dom.ResolveNode().WithNodeID(docID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve document: %w", err)
		}
		res, exc, err := runtime.CallFunctionOn(collectScript).
			WithObjectID(doc.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("collect candidates: %s", exc.Text)
		}
		var cands []candidate
		if err := json.Unmarshal(res.Value, &cands); err != nil {
			return fmt.Errorf("decode candidates: %w", err)
		}

		for _, c := range cands {
			matched := ""
			switch {
			case c.Text != "" && normalize(c.Text) == text:
				matched = c.Text
			case c.Value != "" && normalize(c.Value) == text:
				matched = c.Value
			default:
				continue
			}
			obj, _, err := runtime.CallFunctionOn(fmt.Sprintf(elementScript, c.Index)).
				WithObjectID(doc.ObjectID).
				Do(ctx)
			if err != nil || obj == nil || obj.ObjectID == "" {
				continue
			}
			out = append(out, &element{
				session:  s,
				objectID: obj.ObjectID,
				tag:      c.Tag,
				text:     matched,
				role:     c.Role,
				onclick:  c.Click,
				frame:    frameID,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close shuts the tab and the browser down. Further calls return the
// first result.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = chromedp.Cancel(s.tabCtx)
		s.tabCancel()
		s.allocCancel()
		if errors.Is(s.closeErr, context.Canceled) {
			s.closeErr = nil
		}
	})
	return s.closeErr
}

// activateScript scrolls the element into view, checks that it is rendered
// and clicks it.
const activateScript = `function() {
	this.scrollIntoView({block: 'center', inline: 'center'});
	const r = this.getBoundingClientRect();
	const s = window.getComputedStyle(this);
	if (r.width === 0 || r.height === 0 || s.visibility === 'hidden' || s.display === 'none' || s.opacity === '0') {
		return 'hidden';
	}
	this.click();
	return 'clicked';
}`

type element struct {
	session  *session
	objectID runtime.RemoteObjectID
	tag      string
	text     string
	role     string
	onclick  bool
	frame    string
}

func (e *element) Tag() string  { return e.tag }
func (e *element) Text() string { return e.text }

func (e *element) Interactive() bool {
	switch e.tag {
	case "button", "a", "input", "select", "summary":
		return true
	}
	return strings.EqualFold(e.role, "button") || e.onclick
}

func (e *element) Activate(ctx context.Context) error {
	var result string
	err := e.session.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.CallFunctionOn(activateScript).
			WithObjectID(e.objectID).
			WithReturnByValue(true).
			WithUserGesture(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			if exc.Exception != nil && exc.Exception.Description != "" {
				return errors.New(exc.Exception.Description)
			}
			return errors.New(exc.Text)
		}
		return json.Unmarshal(res.Value, &result)
	}))
	if err != nil {
		return fmt.Errorf("click %s %q: %w", e.tag, e.text, err)
	}
	if result == "hidden" {
		return browser.ErrNotVisible
	}
	return nil
}
