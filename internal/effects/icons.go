package effects

import (
	"context"
	"log/slog"

	"crypto_dash/internal/domain"
)

// runIconSync caches the icons of a freshly loaded list. Failures never
// reach the state.
func (o *Orchestrator) runIconSync(ctx context.Context, assets []domain.Asset) {
	if err := o.icons.SyncAssets(ctx, assets); err != nil && ctx.Err() == nil {
		o.logger.Warn("Icon sync failed", slog.Any("error", err))
	}
}
