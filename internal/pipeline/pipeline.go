package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/quickblock/internal/dom"
	"github.com/nao1215/quickblock/internal/model"
	"github.com/nao1215/quickblock/internal/reconcile"
)

// Job carries one page through the pipeline. Steps fill it in order: the
// page, its document, the loop that filtered it and the report.
type Job struct {
	// Source is the file path or URL to filter.
	Source string

	// Page is set by the load step.
	Page *model.Page

	// Doc is set by the parse step.
	Doc *dom.Document

	// Loop is set by the filter step.
	Loop *reconcile.Loop

	// Report accumulates the outcome.
	Report *model.FilterReport
}

// NewJob creates a job for source with an empty report.
func NewJob(source string) *Job {
	return &Job{
		Source: source,
		Report: &model.FilterReport{Source: source},
	}
}

// Step is one stage of filtering a page.
type Step interface {
	// Do runs the step. Returning an error stops the pipeline unless it
	// continues on error.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging.
	Name() string
}

// Pipeline runs steps in order against one job.
//
// A pipeline is built once per page and is not reused; steps pass data to
// each other through the Job. The first error is recorded in the job's
// report whether or not the pipeline continues past it.
type Pipeline struct {
	// steps run in the order they were added.
	steps []Step

	// logger is used for step-level logging.
	logger *slog.Logger

	// continueOnError keeps later steps running after a failure.
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

// WithContinueOnError keeps running later steps after one fails.
// The first error is still recorded in the report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
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

// Execute runs every step against job. Cancellation is checked between
// steps; steps bound their own work.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			if job.Report.Error == "" {
				job.Report.Error = ctx.Err().Error()
			}
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"source", job.Source,
		)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"source", job.Source,
				"error", err,
			)
			if job.Report.Error == "" {
				job.Report.Error = err.Error()
			}
			if !p.continueOnError {
				return err
			}
		}
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
