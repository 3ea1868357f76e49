// Package batch processes many subjects concurrently with a bounded worker pool.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/internal/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Processor summarizes one subject. *activity.Processor satisfies it.
type Processor interface {
	Process(series activity.RawSeries) activity.Result
}

// Runner fans subjects out over a fixed number of workers
type Runner struct {
	processor Processor
	workers   int
	logger    *zap.SugaredLogger
}

// NewRunner creates a runner. workers <= 0 uses one worker per CPU.
func NewRunner(processor Processor, workers int, logger *zap.SugaredLogger) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		processor: processor,
		workers:   workers,
		logger:    log.OrNop(logger),
	}
}

// Workers returns the effective worker count
func (r *Runner) Workers() int {
	return r.workers
}

// Run processes every series and returns one result per series, sorted by
// subject id. A subject that fails, even by panicking, is reported as rejected
// and never stops the batch. Cancelling ctx stops scheduling new subjects and
// Run returns ctx.Err().
func (r *Runner) Run(ctx context.Context, series []activity.RawSeries) ([]activity.Result, error) {
	started := time.Now()
	results := make([]activity.Result, len(series))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i := range series {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.processOne(series[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch interrupted: %w", err)
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].SubjectID < results[b].SubjectID
	})

	rejected := 0
	for _, res := range results {
		if res.Status == activity.StatusRejected {
			rejected++
		}
	}
	r.logger.Infof("processed %d subjects (%d rejected) with %d workers in %v",
		len(results), rejected, r.workers, time.Since(started).Round(time.Millisecond))

	return results, nil
}

// processOne isolates a single subject so that a panic becomes a rejection
func (r *Runner) processOne(s activity.RawSeries) (res activity.Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Errorw("subject processing panicked", "subject", s.SubjectID, "panic", p)
			res = activity.Rejected(s.SubjectID, fmt.Sprintf("internal error: %v", p))
		}
	}()
	return r.processor.Process(s)
}
