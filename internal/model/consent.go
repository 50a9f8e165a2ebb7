package model

// ConsentResult is the terminal state of a consent interaction attempt.
type ConsentResult string

const (
	// ConsentClicked means a consent control was found and activated.
	ConsentClicked ConsentResult = "clicked"

	// ConsentNotFound means no matching control was found for any word.
	ConsentNotFound ConsentResult = "not_found"

	// ConsentErrored means candidates were found but every activation
	// attempt failed with an interaction error.
	ConsentErrored ConsentResult = "errored"

	// ConsentSkipped means no attempt was made, because the visit failed
	// earlier or consent handling was disabled for the site.
	ConsentSkipped ConsentResult = "skipped"
)

// ConsentOutcome describes what happened when the consent banner was handled.
// Exactly one outcome is recorded per visit.
type ConsentOutcome struct {
	Result ConsentResult `json:"result"`

	// Word is the consent word that matched the activated control.
	// It is only set when Result is ConsentClicked.
	Word string `json:"word,omitempty"`

	// Frame names the frame the control was found in; empty for the top
	// level document.
	Frame string `json:"frame,omitempty"`

	// Error is the last interaction error when Result is ConsentErrored.
	Error string `json:"error,omitempty"`
}

// Clicked reports whether a consent control was activated.
func (o ConsentOutcome) Clicked() bool {
	return o.Result == ConsentClicked
}
