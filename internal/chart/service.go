// Package chart serves price histories with caching and request coalescing.
package chart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/engine"
	"crypto_dash/internal/event"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultDays is the period used when a caller does not pick one.
const DefaultDays = 7

// ErrInvalidPeriod is returned for a days value outside AllowedPeriods.
var ErrInvalidPeriod = errors.New("invalid chart period")

// AllowedPeriods are the supported chart ranges in days.
var AllowedPeriods = []int{1, 7, 30, 90}

// ValidPeriod reports whether days is one of AllowedPeriods.
func ValidPeriod(days int) bool {
	for _, p := range AllowedPeriods {
		if p == days {
			return true
		}
	}
	return false
}

// Service fetches chart series through a TTL cache. Concurrent requests for
// the same series share one upstream call.
type Service struct {
	fetcher     domain.ChartFetcher
	cache       *gocache.Cache
	group       singleflight.Group
	maxParallel int
	logger      *slog.Logger
}

// NewService creates a chart service. ttl <= 0 disables expiry.
func NewService(fetcher domain.ChartFetcher, ttl time.Duration, maxParallel int) *Service {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Service{
		fetcher:     fetcher,
		cache:       gocache.New(ttl, 2*ttl),
		maxParallel: maxParallel,
		logger:      slog.Default().With("module", "chart"),
	}
}

func cacheKey(id string, days int) string {
	return fmt.Sprintf("%s:%d", id, days)
}

// Chart returns the series of assetID over days.
func (s *Service) Chart(ctx context.Context, assetID string, days int) (domain.ChartSeries, error) {
	if !ValidPeriod(days) {
		return domain.ChartSeries{}, fmt.Errorf("%w: %d", ErrInvalidPeriod, days)
	}
	key := cacheKey(assetID, days)
	if v, ok := s.cache.Get(key); ok {
		return v.(domain.ChartSeries), nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// Shared by every waiter, so it must not die with the first caller.
		series, err := s.fetcher.FetchChart(context.WithoutCancel(ctx), assetID, days)
		if err != nil {
			return domain.ChartSeries{}, err
		}
		s.cache.SetDefault(key, series)
		return series, nil
	})

	select {
	case <-ctx.Done():
		return domain.ChartSeries{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			s.logger.Warn("Chart fetch failed", slog.String("asset", assetID), slog.Int("days", days), slog.Any("error", res.Err))
			return domain.ChartSeries{}, res.Err
		}
		return res.Val.(domain.ChartSeries), nil
	}
}

// Charts fetches several series concurrently. It fails as a whole when any
// single series fails.
func (s *Service) Charts(ctx context.Context, assetIDs []string, days int) (map[string]domain.ChartSeries, error) {
	if !ValidPeriod(days) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPeriod, days)
	}

	var mu sync.Mutex
	out := make(map[string]domain.ChartSeries, len(assetIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for _, id := range assetIDs {
		g.Go(func() error {
			series, err := s.Chart(gctx, id, days)
			if err != nil {
				return fmt.Errorf("chart %s: %w", id, err)
			}
			mu.Lock()
			out[id] = series
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Invalidate drops every cached series.
func (s *Service) Invalidate() {
	s.cache.Flush()
}

// OnAction implements engine.Listener: a reloaded market list flushes the
// cache so charts do not lag behind the fresh prices.
func (s *Service) OnAction(p engine.Processed, _ domain.State) {
	if _, ok := p.Action.(event.LoadSucceeded); ok {
		s.Invalidate()
	}
}
