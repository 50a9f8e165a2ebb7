package consent

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/nao1215/cookiecrawl/internal/browser"
	"github.com/nao1215/cookiecrawl/internal/model"
)

const (
	// DefaultWordTimeout bounds the search and activation for one word.
	DefaultWordTimeout = 10 * time.Second

	// restoreTimeout bounds the final switch back to the top-level document.
	restoreTimeout = 5 * time.Second
)

// wrapperTags are layout and container elements. Their text often equals a
// consent word only because they wrap the real button.
var wrapperTags = map[string]struct{}{
	"html": {}, "head": {}, "body": {}, "script": {}, "style": {},
	"noscript": {}, "iframe": {}, "frame": {}, "form": {}, "main": {},
	"section": {}, "header": {}, "footer": {}, "nav": {}, "article": {},
	"title": {}, "meta": {}, "template": {},
}

// Engine finds and activates consent controls.
type Engine struct {
	wordTimeout time.Duration
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWordTimeout bounds the time spent on each word.
func WithWordTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.wordTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{wordTimeout: DefaultWordTimeout}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

type resultKind int

const (
	resultNotFound resultKind = iota
	resultFound
	resultErrored
)

// searchResult is the outcome of searching one document or frame tree.
type searchResult struct {
	kind  resultKind
	frame string
	err   error
}

// Attempt tries the words in order and stops at the first control that is
// successfully clicked. The session's current context is always the
// top-level document when Attempt returns.
func (e *Engine) Attempt(ctx context.Context, s browser.Session, words []string) model.ConsentOutcome {
	defer e.restore(ctx, s)

	var lastErr error
	for _, word := range words {
		if ctx.Err() != nil {
			break
		}
		target := Normalize(word)
		if target == "" {
			continue
		}

		res := e.attemptWord(ctx, s, target)
		switch res.kind {
		case resultFound:
			e.logger.Debug("consent control clicked", "word", word, "frame", res.frame)
			return model.ConsentOutcome{Result: model.ConsentClicked, Word: word, Frame: res.frame}
		case resultErrored:
			lastErr = res.err
		}
	}

	if lastErr != nil {
		return model.ConsentOutcome{Result: model.ConsentErrored, Error: lastErr.Error()}
	}
	return model.ConsentOutcome{Result: model.ConsentNotFound}
}

// attemptWord searches every frame, then the top-level document.
func (e *Engine) attemptWord(ctx context.Context, s browser.Session, target string) searchResult {
	ctx, cancel := context.WithTimeout(ctx, e.wordTimeout)
	defer cancel()

	frames := e.searchFrames(ctx, s, target)
	if frames.kind == resultFound {
		return frames
	}

	if err := s.SwitchToRoot(ctx); err != nil {
		e.logger.Debug("switch to top-level document failed", "error", err)
		return frames
	}
	root := e.tryDocument(ctx, s, target, "")
	if root.kind == resultNotFound && frames.kind == resultErrored {
		return frames
	}
	return root
}

// searchFrames visits the frame tree depth-first. Frame IDs are tracked so a
// page that nests a frame inside itself is visited once.
func (e *Engine) searchFrames(ctx context.Context, s browser.Session, target string) searchResult {
	if err := s.SwitchToRoot(ctx); err != nil {
		e.logger.Debug("switch to top-level document failed", "error", err)
		return searchResult{kind: resultNotFound}
	}
	stack, err := s.EnumerateFrames(ctx)
	if err != nil {
		e.logger.Debug("enumerate frames failed", "error", err)
		return searchResult{kind: resultNotFound}
	}
	slices.Reverse(stack)

	result := searchResult{kind: resultNotFound}
	visited := make(map[string]struct{})
	for len(stack) > 0 {
		if ctx.Err() != nil {
			break
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[f.ID]; ok {
			continue
		}
		visited[f.ID] = struct{}{}

		if err := s.SwitchFrame(ctx, f); err != nil {
			e.logger.Debug("switch frame failed", "frame", f.Name, "error", err)
			continue
		}

		res := e.tryDocument(ctx, s, target, f.Name)
		switch res.kind {
		case resultFound:
			return res
		case resultErrored:
			result = res
		}

		children, err := s.EnumerateFrames(ctx)
		if err != nil {
			e.logger.Debug("enumerate frames failed", "frame", f.Name, "error", err)
			continue
		}
		for i := len(children) - 1; i >= 0; i-- {
			if _, ok := visited[children[i].ID]; !ok {
				stack = append(stack, children[i])
			}
		}
	}
	return result
}

// tryDocument clicks the first visible match in the current context.
func (e *Engine) tryDocument(ctx context.Context, s browser.Session, target, frame string) searchResult {
	elements, err := s.FindByText(ctx, target, Normalize)
	if err != nil {
		e.logger.Debug("search failed", "frame", frame, "error", err)
		return searchResult{kind: resultNotFound}
	}

	result := searchResult{kind: resultNotFound}
	for _, el := range candidates(elements) {
		err := el.Activate(ctx)
		switch {
		case err == nil:
			return searchResult{kind: resultFound, frame: frame}
		case errors.Is(err, browser.ErrNotVisible):
			continue
		default:
			e.logger.Debug("click failed", "frame", frame, "tag", el.Tag(), "error", err)
			result = searchResult{kind: resultErrored, frame: frame, err: err}
		}
	}
	return result
}

// candidates drops wrapper elements and moves interactive ones first,
// keeping document order otherwise.
func candidates(elements []browser.Element) []browser.Element {
	var interactive, other []browser.Element
	for _, el := range elements {
		if _, ok := wrapperTags[el.Tag()]; ok {
			continue
		}
		if el.Interactive() {
			interactive = append(interactive, el)
		} else {
			other = append(other, el)
		}
	}
	return append(interactive, other...)
}

func (e *Engine) restore(ctx context.Context, s browser.Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()
	if err := s.SwitchToRoot(ctx); err != nil {
		e.logger.Debug("restore top-level document failed", "error", err)
	}
}
