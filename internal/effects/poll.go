package effects

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"crypto_dash/internal/event"
)

// runPoll refreshes prices every PollInterval until the next LoadSucceeded
// restarts it or the orchestrator stops. A new tick cancels the request of
// the previous one.
func (o *Orchestrator) runPoll(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	var tick atomic.Uint64
	var cancelTick context.CancelFunc = func() {}
	defer func() { cancelTick() }()

	for {
		select {
		case <-ctx.Done():
			o.logger.Debug("Price polling stopped")
			return
		case <-ticker.C:
			cancelTick()
			var tickCtx context.Context
			tickCtx, cancelTick = context.WithCancel(ctx)
			n := tick.Add(1)
			valid := func() bool { return o.poll.current(gen) && tick.Load() == n }
			o.spawn(func() { o.pollOnce(tickCtx, valid) })
		}
	}
}

func (o *Orchestrator) pollOnce(ctx context.Context, valid func() bool) {
	updates, err := o.fetcher.FetchPriceUpdates(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		o.metrics.RecordFetchError("prices")
		o.logger.Warn("Price update failed", slog.Any("error", err))
		o.dispatch(ctx, event.PriceUpdateFailed{Reason: err.Error()}, valid)
		return
	}
	o.dispatch(ctx, event.PricesUpdated{Updates: updates}, valid)
}
