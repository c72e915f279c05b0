package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sitescan/internal/config"
	"github.com/nao1215/sitescan/internal/model"
)

// TargetRun carries one target through the pipeline.
type TargetRun struct {
	// Target is the crawl configuration.
	Target config.Target

	// Summary is set by the crawl step.
	Summary model.CrawlSummary

	// Report is the target's report section, set by the collect step.
	Report *model.TargetReport

	// Err is the error of the first failed step, if any.
	Err error

	// PerformedSteps lists the names of the steps that ran.
	PerformedSteps []string

	// Elapsed is the wall time of the whole pipeline.
	Elapsed time.Duration
}

// Step defines the interface that all pipeline steps must implement.
type Step interface {
	// Do executes the step. A returned error is recorded in the run.
	Do(ctx context.Context, run *TargetRun) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
//
// Steps are executed even when ctx is already cancelled: a cancelled crawl
// returns its partial summary and the later steps must still record it.
// Each step decides how to honour ctx.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence for run.
// It returns the first error if continueOnError is false, otherwise nil;
// in both cases the first error is also stored in run.Err.
func (p *Pipeline) Execute(ctx context.Context, run *TargetRun) error {
	start := time.Now()
	defer func() {
		run.Elapsed = time.Since(start)
	}()

	for _, step := range p.steps {
		p.logger.Debug("executing step",
			"step", step.Name(),
			"target", run.Target.Name,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"target", run.Target.Name,
				"error", err,
			)
			if run.Err == nil {
				run.Err = err
			}
			if !p.continueOnError {
				return err
			}
		}

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
