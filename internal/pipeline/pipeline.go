package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/cookiecrawl/internal/model"
)

// Step is one stage of a visit.
type Step interface {
	// Do executes the step. Expected failures are recorded with
	// Visit.Fail, whose error the step returns; the pipeline then stops.
	Do(ctx context.Context, v *Visit) error

	// Name returns the step's name for logging.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation, or the Pipeline can be
// built ready-made with DefaultPipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps until one fails or all complete. A session left
// open by the steps is closed before Execute returns.
//
// The returned error is the failing step's error; the failure is also
// recorded in v.
func (p *Pipeline) Execute(ctx context.Context, v *Visit) error {
	defer v.release(p.logger)

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("visit cancelled",
				"step", step.Name(),
				"target", v.Target.String(),
				"reason", err,
			)
			status := model.StatusSessionError
			if errors.Is(err, context.DeadlineExceeded) {
				status = model.StatusTimeout
			}
			return v.Fail(status, err)
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"target", v.Target.String(),
		)

		err := step.Do(ctx, v)
		v.Performed = append(v.Performed, step.Name())
		if err != nil {
			if !v.Failed() {
				_ = v.Fail(model.StatusSessionError, err)
			}
			p.logger.Info("visit failed",
				"step", step.Name(),
				"target", v.Target.String(),
				"status", v.Status.String(),
				"error", err,
			)
			return err
		}
	}
	return nil
}

// Run visits one job and returns its record. It never returns an error;
// every failure is described by the record's status.
func (p *Pipeline) Run(ctx context.Context, job Job) model.CrawlRecord {
	v := NewVisit(job)
	_ = p.Execute(ctx, v) //nolint:errcheck // the failure is stored in the visit
	return v.Record()
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
