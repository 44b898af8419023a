package engine

import (
	"context"
	"testing"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"
)

// BenchmarkReduce_PricesUpdated measures the hottest reduction: a poll tick
// merging updates into a full page of assets.
func BenchmarkReduce_PricesUpdated(b *testing.B) {
	s := domain.InitialState()
	updates := make([]domain.PriceUpdate, 0, 20)
	for i := 0; i < 20; i++ {
		id := string(rune('a' + i))
		s.Assets = append(s.Assets, domain.Asset{ID: id, Price: float64(i), MarketCap: float64(i) * 1e9})
		updates = append(updates, domain.PriceUpdate{ID: id, Price: float64(i) + 1})
	}
	act := event.PricesUpdated{Updates: updates}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = Reduce(s, act)
	}
}

// BenchmarkStore_FullPipeline measures end-to-end dispatch including
// channel overhead.
func BenchmarkStore_FullPipeline(b *testing.B) {
	s := NewStore(b.N + 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = s.Dispatch(ctx, event.SearchQuerySet{Query: "btc"})
	}
	_, _, _ = s.DispatchWait(ctx, event.SearchQuerySet{Query: ""})
}
