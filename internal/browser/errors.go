package browser

import "errors"

var (
	// ErrTimeout is returned by a driver when an operation ran out of time.
	ErrTimeout = errors.New("browser operation timed out")

	// ErrCrashed is returned when the page or browser process crashed.
	ErrCrashed = errors.New("browser session crashed")

	// ErrNotVisible is returned by Element.Activate when the element is not
	// currently rendered.
	ErrNotVisible = errors.New("element is not visible")

	// ErrNoSuchFrame is returned by SwitchFrame for a frame that no longer
	// exists.
	ErrNoSuchFrame = errors.New("no such frame")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("browser session is closed")

	// ErrInvalidViewMode is returned by ParseViewMode.
	ErrInvalidViewMode = errors.New("invalid view mode: must be headless or headful")
)
