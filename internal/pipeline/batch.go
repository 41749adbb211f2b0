package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sitemapper/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor crawls several seeds concurrently, one pipeline per seed.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each seed so no step
	// state is shared between seeds.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of seeds processed at once.
	concurrency int

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

// WithConcurrency sets the maximum number of concurrent seeds.
// Default is 1 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs the pipeline for every seed and returns one report per
// seed in input order. A failing seed records its error in its report and
// does not stop the others. The error is non-nil only when ctx ended; seeds
// that never started then have a report carrying that error.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*model.SiteReport, error) {
	bp.logger.Info("starting batch processing",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	// Each goroutine writes only its own index.
	results := make([]*model.SiteReport, len(seeds))

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			report := model.NewSiteReport(seed)
			results[i] = report

			if err := ctx.Err(); err != nil {
				report.SetError(err)
				return err
			}

			bp.logger.Info("crawling seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			if err := bp.pipelineFactory().Execute(ctx, report); err != nil {
				bp.logger.Warn("seed failed",
					"seed", seed,
					"error", err,
				)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}

			bp.logger.Info("seed completed", "seed", report.Seed)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch processing complete",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)
	return results, err
}
