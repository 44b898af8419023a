package effects

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"crypto_dash/internal/event"
)

// runSearch waits out the debounce window and then searches for whatever
// query the store holds at that moment, not the one that started the timer.
func (o *Orchestrator) runSearch(ctx context.Context, gen uint64) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(o.cfg.SearchDebounce):
	}

	valid := func() bool { return o.search.current(gen) }
	query := o.store.State().SearchQuery

	if utf8.RuneCountInString(query) < o.cfg.MinSearchLen {
		o.dispatch(ctx, event.SearchTooShort{Query: query}, valid)
		return
	}

	results, err := o.fetcher.SearchAssets(ctx, query)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		o.metrics.RecordFetchError("search")
		o.logger.Warn("Search failed", slog.String("query", query), slog.Any("error", err))
		o.dispatch(ctx, event.SearchFailed{Query: query, Reason: err.Error()}, valid)
		return
	}
	o.dispatch(ctx, event.SearchResults{Query: query, Results: results}, valid)
}
