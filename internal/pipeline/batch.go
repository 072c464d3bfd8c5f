package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/quickblock/internal/model"
)

// defaultConcurrency is the number of pages filtered at once when no
// concurrency is configured.
const defaultConcurrency = 4

// BatchProcessor filters many pages concurrently using errgroup with a
// concurrency limit.
//
// Every page gets a fresh pipeline from the factory, and the filter step
// builds a fresh document, store and loop per job, so the goroutines share
// nothing but the loader. A page that fails is recorded in its report and
// does not cancel the others.
type BatchProcessor struct {
	// pipelineFactory creates the pipeline for one page.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of pages filtered at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of pages filtered at once.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor that builds one pipeline per
// page with pipelineFactory.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     defaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch filters sources and returns their reports in input order.
// A failing page is recorded in its report and does not stop the others;
// the error is only non-nil when ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, sources []string) ([]*model.FilterReport, error) {
	reports := make([]*model.FilterReport, len(sources))
	err := bp.ProcessBatchWithCallback(ctx, sources, func(job *Job, i int) {
		reports[i] = job.Report
	})
	return reports, err
}

// ProcessBatchWithCallback filters sources and calls callback with each
// finished job. The callback runs on the worker goroutine.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	sources []string,
	callback func(job *Job, index int),
) error {
	bp.logger.Info("starting batch filtering",
		"total_pages", len(sources),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, source := range sources {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			job := NewJob(source)
			if err := bp.pipelineFactory().Execute(ctx, job); err != nil {
				bp.logger.Warn("page filtering failed",
					"source", source,
					"error", err,
				)
			}
			job.Report.DateFiltered = time.Now()
			callback(job, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch filtering complete",
		"total_pages", len(sources),
		"elapsed", time.Since(startTime),
	)
	return err
}
