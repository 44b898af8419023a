package effects

import (
	"context"
	"log/slog"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"
)

// runLoad fetches the market list with a fixed-delay retry and reports
// exactly one outcome: LoadSucceeded or, after the last attempt, LoadFailed.
func (o *Orchestrator) runLoad(ctx context.Context, gen uint64) {
	valid := func() bool { return o.load.current(gen) }

	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			o.metrics.RecordRetry()
			o.logger.Info("Retrying market load", slog.Int("attempt", attempt), slog.Duration("delay", o.cfg.RetryDelay))
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.cfg.RetryDelay):
			}
		}

		assets, err := o.fetcher.FetchAssets(ctx)
		if err == nil {
			o.dispatch(ctx, event.LoadSucceeded{Assets: assets}, valid)
			return
		}
		if ctx.Err() != nil {
			return
		}

		lastErr = err
		o.metrics.RecordFetchError("markets")
		o.logger.Warn("Market load attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Bool("retriable", domain.IsRetriable(err)),
			slog.Any("error", err),
		)
	}

	o.logger.Error("Failed to load market data", slog.Any("error", lastErr))
	o.dispatch(ctx, event.LoadFailed{Error: LoadFailureMessage}, valid)
}
