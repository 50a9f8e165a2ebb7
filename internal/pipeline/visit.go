package pipeline

import (
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/cookiecrawl/internal/analysis"
	"github.com/nao1215/cookiecrawl/internal/browser"
	"github.com/nao1215/cookiecrawl/internal/model"
	"github.com/nao1215/cookiecrawl/internal/record"
)

// Job is one target together with its per-site settings.
type Job struct {
	Target model.CrawlTarget

	// SkipConsent disables consent handling for the site.
	SkipConsent bool

	// UserAgent overrides the browser user agent for the site.
	UserAgent string
}

// Visit is the state shared by the steps of one pipeline run.
type Visit struct {
	Job

	// AttemptStartedAt is when the pipeline started working on the target.
	AttemptStartedAt time.Time

	Session    browser.Session
	Navigation browser.Navigation
	Consent    model.ConsentOutcome
	Screenshot string
	Exchanges  []model.NetworkExchange
	Analysis   analysis.Result

	// Status is set when a step fails the visit.
	Status model.Status
	Err    error

	// Performed lists the steps that ran, in order.
	Performed []string

	// loadStartedAt and loadEndedAt bracket a page load that failed.
	loadStartedAt time.Time
	loadEndedAt   time.Time

	closeSession func(browser.Session) error
}

// NewVisit creates the state for a job.
func NewVisit(job Job) *Visit {
	return &Visit{
		Job:              job,
		AttemptStartedAt: time.Now(),
		Consent:          model.ConsentOutcome{Result: model.ConsentSkipped},
	}
}

// ErrVisitFailed is wrapped by the error a step returns after failing
// the visit.
var ErrVisitFailed = errors.New("visit failed")

// Fail marks the visit as failed with status and returns an error for the
// step to return.
func (v *Visit) Fail(status model.Status, err error) error {
	v.Status = status
	v.Err = err
	if err == nil {
		return ErrVisitFailed
	}
	return errors.Join(ErrVisitFailed, err)
}

// Failed reports whether a step failed the visit.
func (v *Visit) Failed() bool {
	return v.Status != "" && v.Status != model.StatusOK
}

// release closes the session if one is still open.
func (v *Visit) release(logger *slog.Logger) {
	if v.Session == nil {
		return
	}
	s := v.Session
	v.Session = nil

	var err error
	if v.closeSession != nil {
		err = v.closeSession(s)
	} else {
		err = s.Close()
	}
	if err != nil {
		logger.Warn("closing browser session failed", "target", v.Target.String(), "error", err)
	}
}

// Record assembles the crawl record of the visit.
func (v *Visit) Record() model.CrawlRecord {
	if v.Failed() {
		start, end := v.AttemptStartedAt, time.Now()
		if !v.loadStartedAt.IsZero() {
			start, end = v.loadStartedAt, v.loadEndedAt
		}
		return record.Failed(v.Target, v.Status, v.Err, start, end)
	}
	return record.Assemble(record.Input{
		Target:     v.Target,
		StartedAt:  v.Navigation.StartedAt,
		EndedAt:    v.Navigation.EndedAt,
		FinalURL:   v.Navigation.FinalURL,
		Screenshot: v.Screenshot,
		Consent:    v.Consent,
		Exchanges:  v.Exchanges,
		Analysis:   v.Analysis,
	})
}
