package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitescan/internal/config"
)

// BatchProcessor handles concurrent processing of multiple targets.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each target.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of targets crawled at once.
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

// WithConcurrency sets the maximum number of concurrent targets.
// Default is 1 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
// The pipelineFactory function is called once per target.
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

// ProcessBatch runs the pipeline of every target, at most concurrency at a time.
//
// It returns one TargetRun per target in the order of targets. A target that
// had not started when ctx was cancelled has a nil entry, and the context
// error is returned. Failures of individual targets are recorded in their
// TargetRun and do not stop the others.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []config.Target) ([]*TargetRun, error) {
	runs := make([]*TargetRun, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(run *TargetRun, index int) {
		runs[index] = run
	})
	return runs, err
}

// ProcessBatchWithCallback runs every target and calls callback as each one
// completes. The callback is called from the goroutine that ran the target
// and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []config.Target,
	callback func(run *TargetRun, index int),
) error {
	bp.logger.Info("starting scan",
		"targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// A target still waiting for a slot when the scan is cancelled is not started.
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("scanning target",
				"target", target.Name,
				"index", i+1,
				"total", len(targets),
			)

			run := &TargetRun{Target: target}
			if err := bp.pipelineFactory().Execute(ctx, run); err != nil {
				bp.logger.Warn("target failed",
					"target", target.Name,
					"error", err,
				)
			} else {
				bp.logger.Info("target completed",
					"target", target.Name,
					"termination", run.Summary.Termination,
					"elapsed", run.Elapsed.Round(time.Millisecond),
				)
			}

			callback(run, i)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	bp.logger.Info("scan complete",
		"targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	return err
}
