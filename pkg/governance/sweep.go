package governance

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

// Sweep finds ACTIVE proposals whose voting window has ended and drives each
// through the closure transition. Per-proposal failures are logged and left
// for the next cycle; the rest of the batch still runs. The batch size is
// capped by SweepBatchLimit and closures run on a bounded worker pool.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { sweepDurationSeconds.Observe(time.Since(start).Seconds()) }()

	ids, err := e.store.ListDueProposals(ctx, e.now().UTC(), e.SweepBatchLimit)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	workers := e.SweepWorkers
	if workers < 1 {
		workers = 1
	}
	pool := pond.NewPool(workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	var closed, failed atomic.Int64
	for _, id := range ids {
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}
			_, transitioned, err := e.closeVoting(groupCtx, id)
			if err != nil {
				// Retried on the next sweep cycle; keep processing the batch.
				failed.Add(1)
				sweepFailuresTotal.Inc()
				e.logger.Warn("sweep: failed to close proposal",
					zap.String("proposal_id", id.String()),
					zap.Error(err))
				return
			}
			if transitioned {
				closed.Add(1)
				sweepClosedTotal.Inc()
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		e.logger.Warn("sweep: worker group error", zap.Error(err))
	}

	if closed.Load() > 0 || failed.Load() > 0 {
		e.logger.Info("sweep cycle finished",
			zap.Int("due", len(ids)),
			zap.Int64("closed", closed.Load()),
			zap.Int64("failed", failed.Load()),
			zap.Duration("duration", time.Since(start)))
	}

	return int(closed.Load()), nil
}
