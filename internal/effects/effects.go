package effects

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/engine"
	"crypto_dash/internal/event"
	"crypto_dash/internal/infra"
)

// LoadFailureMessage is the user-facing error after the load reaction gives up.
const LoadFailureMessage = "Failed to load cryptocurrency data. Please try again."

// Config tunes the reactions.
type Config struct {
	MaxRetries     int           // retries after the first load attempt
	RetryDelay     time.Duration // fixed delay between load attempts
	PollInterval   time.Duration
	SearchDebounce time.Duration
	MinSearchLen   int // in runes
	SyncIcons      bool
}

// DefaultConfig returns the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		RetryDelay:     time.Second,
		PollInterval:   3 * time.Second,
		SearchDebounce: 300 * time.Millisecond,
		MinSearchLen:   2,
	}
}

// Store is the part of engine.Store the reactions use.
type Store interface {
	State() domain.State
	DispatchGuarded(ctx context.Context, a event.Action, valid func() bool) error
}

// IconSyncer caches asset icons.
type IconSyncer interface {
	SyncAssets(ctx context.Context, assets []domain.Asset) error
}

// Orchestrator turns actions into asynchronous work and the work's outcome
// back into actions. It is registered as a store listener; OnAction only
// spawns goroutines and never blocks the store loop.
type Orchestrator struct {
	store   Store
	fetcher domain.AssetFetcher
	icons   IconSyncer
	cfg     Config
	metrics *infra.Metrics
	logger  *slog.Logger

	mu      sync.Mutex // guards stopped and wg.Add
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	load     reaction
	poll     reaction
	search   reaction
	iconSync reaction
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithIconSyncer(s IconSyncer) Option { return func(o *Orchestrator) { o.icons = s } }

func WithMetrics(m *infra.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// New creates an orchestrator. Register it with store.Subscribe.
func New(store Store, fetcher domain.AssetFetcher, cfg Config, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		store:   store,
		fetcher: fetcher,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		logger:  slog.Default().With("module", "effects"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnAction implements engine.Listener.
func (o *Orchestrator) OnAction(p engine.Processed, st domain.State) {
	switch act := p.Action.(type) {
	case event.LoadRequested, event.RetryRequested:
		ctx, gen := o.load.restart(o.ctx)
		o.spawn(func() { o.runLoad(ctx, gen) })

	case event.LoadSucceeded:
		ctx, gen := o.poll.restart(o.ctx)
		o.spawn(func() { o.runPoll(ctx, gen) })

		if o.cfg.SyncIcons && o.icons != nil {
			ctx, _ := o.iconSync.restart(o.ctx)
			o.spawn(func() { o.runIconSync(ctx, act.Assets) })
		}

	case event.SearchQuerySet:
		ctx, gen := o.search.restart(o.ctx)
		o.spawn(func() { o.runSearch(ctx, gen) })
	}
}

func (o *Orchestrator) spawn(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("Reaction panic recovered", slog.Any("panic", r))
			}
		}()
		fn()
	}()
}

// dispatch sends a reaction outcome to the store. valid is re-checked in
// the store loop so a result superseded meanwhile is dropped there.
func (o *Orchestrator) dispatch(ctx context.Context, a event.Action, valid func() bool) {
	err := o.store.DispatchGuarded(ctx, a, valid)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, engine.ErrStoreStopped) {
		return
	}
	o.logger.Warn("Dispatch failed", slog.String("type", string(a.ActionType())), slog.Any("error", err))
}

// Stop cancels every reaction and waits for their goroutines.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
	o.logger.Info("Effects stopped")
}

// reaction implements latest-wins: restart cancels the previous run and
// bumps the generation that results are validated against.
type reaction struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func (r *reaction) restart(parent context.Context) (context.Context, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.gen++
	return ctx, r.gen
}

func (r *reaction) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen == gen
}
