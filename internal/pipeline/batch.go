package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/cookiecrawl/internal/model"
)

// DefaultConcurrency is the number of visits run at once when no
// concurrency is configured.
const DefaultConcurrency = 4

// RecordHandler receives each completed record with the index of its job.
// It is called from the goroutine that finished the visit.
type RecordHandler func(rec model.CrawlRecord, index int)

// BatchProcessor visits many jobs concurrently. Each job gets a fresh
// pipeline and its own browser session.
type BatchProcessor struct {
	pipelineFactory func() *Pipeline
	concurrency     int
	logger          *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent visits.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called once per job to create a fresh
// pipeline instance, so no visit state is shared between targets. The
// pipelines may share read-only components such as the blocklist index.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch visits every job and returns the records in job order.
// Jobs not started because ctx was cancelled have no record; the slice
// then holds zero values at their positions and the context error is
// returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []Job) ([]model.CrawlRecord, error) {
	records := make([]model.CrawlRecord, len(jobs))
	err := bp.ProcessBatchWithCallback(ctx, jobs, func(rec model.CrawlRecord, index int) {
		records[index] = rec
	})
	return records, err
}

// ProcessBatchWithCallback visits every job and passes each record to
// handler as soon as it is ready.
func (bp *BatchProcessor) ProcessBatchWithCallback(ctx context.Context, jobs []Job, handler RecordHandler) error {
	bp.logger.Info("starting batch",
		"total_targets", len(jobs),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("visiting target",
				"target", job.Target.String(),
				"index", i+1,
				"total", len(jobs),
			)

			rec := bp.pipelineFactory().Run(ctx, job)
			if rec.Failed() {
				bp.logger.Warn("visit failed",
					"target", job.Target.String(),
					"status", rec.Status.String(),
					"error", rec.Error,
				)
			}
			handler(rec, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch complete",
		"total_targets", len(jobs),
		"elapsed", time.Since(startTime),
	)
	return err
}
