package ingest

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/scanner"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 20

// ItemFunc processes one candidate.
type ItemFunc func(ctx context.Context, c scanner.Candidate) error

type itemObserver interface {
	ObserveItem(d time.Duration, err error)
	SetThroughput(perSecond float64)
}

// Scheduler runs candidates in sequential batches with every item of a batch in flight
// at once. A batch finishes only when all of its items have an outcome.
type Scheduler struct {
	batchSize int
	log       *zap.Logger
	observer  itemObserver
}

// NewScheduler builds a scheduler. observer may be nil.
func NewScheduler(batchSize int, log *zap.Logger, observer itemObserver) *Scheduler {
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{batchSize: batchSize, log: log, observer: observer}
}

// Run processes every candidate and records each outcome on progress. Item failures are
// logged and counted. When ctx ends, items not yet started are counted as failed.
func (s *Scheduler) Run(ctx context.Context, candidates []scanner.Candidate, progress *Progress, fn ItemFunc) RunReport {
	for start := 0; start < len(candidates); start += s.batchSize {
		end := start + s.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		if err := ctx.Err(); err != nil {
			for range candidates[start:] {
				progress.Record(err)
			}
			s.log.Warn("run interrupted, remaining items skipped",
				zap.Int("skipped", len(candidates)-start), zap.Error(err))
			break
		}

		var g errgroup.Group
		for _, c := range candidates[start:end] {
			c := c
			g.Go(func() error {
				began := time.Now()
				err := safeCall(ctx, fn, c)
				if err != nil {
					s.log.Error("item failed", zap.String("path", c.Path), zap.Error(err))
				}
				if s.observer != nil {
					s.observer.ObserveItem(time.Since(began), err)
				}
				progress.Record(err)
				return nil
			})
		}
		_ = g.Wait()

		snap := progress.Snapshot()
		if s.observer != nil {
			s.observer.SetThroughput(snap.Throughput())
		}
		s.log.Info("batch complete",
			zap.Int("batch", start/s.batchSize+1),
			zap.Int("processed", snap.Processed),
			zap.Int("failed", snap.Failed),
			zap.Int("total", snap.Total),
			zap.Duration("elapsed", snap.Elapsed),
			zap.Float64("items_per_second", snap.Throughput()),
			zap.Duration("eta", snap.ETA()),
		)
	}
	return progress.Snapshot()
}

func safeCall(ctx context.Context, fn ItemFunc, c scanner.Candidate) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrItemPanicked, r, debug.Stack())
		}
	}()
	return fn(ctx, c)
}
