// Package app wires the dashboard core, its reactions and the HTTP boundary.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"crypto_dash/internal/chart"
	"crypto_dash/internal/effects"
	"crypto_dash/internal/engine"
	"crypto_dash/internal/event"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/infra/coingecko"
	"crypto_dash/internal/infra/storage"
	"crypto_dash/internal/server"
	"crypto_dash/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Logger   *slog.Logger
	Zap      *zap.Logger
	Registry *prometheus.Registry

	Journal      *storage.Journal
	Store        *engine.Store
	Selectors    *view.Selectors
	Client       *coingecko.Client
	Charts       *chart.Service
	Icons        *infra.IconCache
	Orchestrator *effects.Orchestrator
	Hub          *server.Hub
	Router       *gin.Engine

	unsubscribe []func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(cfg *infra.Config) *Bootstrap {
	return &Bootstrap{Config: cfg}
}

// Initialize builds every component. Nothing runs until Start.
func (b *Bootstrap) Initialize() error {
	cfg := b.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 1. Logger
	if b.Logger == nil {
		b.Logger, b.Zap = infra.NewLogger(cfg)
	}
	if b.Zap == nil {
		b.Zap = zap.NewNop()
	}
	slog.SetDefault(b.Logger)
	b.Logger.Info("🚀 Bootstrapping", slog.String("app", cfg.App.Name), slog.String("version", cfg.App.Version))

	// 2. Metrics
	b.Registry = prometheus.NewRegistry()
	b.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := infra.NewMetrics(b.Registry)

	// 3. Journal (optional) and store
	storeOpts := []engine.Option{
		engine.WithMetrics(metrics),
		engine.WithLogger(b.Logger.With("module", "store")),
	}
	if cfg.Journal.Enabled {
		j, err := storage.NewJournal(cfg.Journal.DSN)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		b.Journal = j

		resume, err := b.resumeOptions(context.Background())
		if err != nil {
			j.Close()
			return err
		}
		storeOpts = append(storeOpts, engine.WithJournal(j))
		storeOpts = append(storeOpts, resume...)
		b.Logger.Info("✅ Journal ready", slog.String("dsn", cfg.Journal.DSN))
	}
	b.Store = engine.NewStore(cfg.App.InboxSize, storeOpts...)
	b.Selectors = view.New()

	// 4. Market data
	b.Client = coingecko.NewClient(coingecko.Config{
		BaseURL:           cfg.CoinGecko.BaseURL,
		Timeout:           cfg.CoinGecko.Timeout,
		PerPage:           cfg.CoinGecko.PerPage,
		SearchPageSize:    cfg.CoinGecko.SearchPageSize,
		SearchLimit:       cfg.CoinGecko.SearchLimit,
		RequestsPerSecond: cfg.CoinGecko.RequestsPerSecond,
		Burst:             cfg.CoinGecko.Burst,
		APIKey:            cfg.CoinGecko.APIKey,
		UserAgent:         infra.DefaultUserAgent,
	}, b.Zap)
	b.Charts = chart.NewService(b.Client, cfg.Charts.CacheTTL, cfg.Charts.MaxParallel)

	// 5. Reactions
	effectOpts := []effects.Option{
		effects.WithMetrics(metrics),
		effects.WithLogger(b.Logger.With("module", "effects")),
	}
	if cfg.Icons.Enabled {
		icons, err := infra.NewIconCache(cfg.Icons.Dir, cfg.Icons.Size, cfg.Icons.Concurrency)
		if err != nil {
			return fmt.Errorf("icon cache: %w", err)
		}
		b.Icons = icons
		effectOpts = append(effectOpts, effects.WithIconSyncer(icons))
		b.Logger.Info("✅ Icon cache ready", slog.String("dir", cfg.Icons.Dir))
	}
	b.Orchestrator = effects.New(b.Store, b.Client, effects.Config{
		MaxRetries:     cfg.Effects.MaxRetries,
		RetryDelay:     cfg.Effects.RetryDelay,
		PollInterval:   cfg.Effects.PollInterval,
		SearchDebounce: cfg.Effects.SearchDebounce,
		MinSearchLen:   cfg.Effects.MinSearchLength,
		SyncIcons:      cfg.Icons.Enabled,
	}, effectOpts...)

	// 6. Push stream and HTTP
	b.Hub = server.NewHub(b.Store, b.Selectors, cfg.Server.StreamBuffer, metrics, b.Zap)
	b.unsubscribe = append(b.unsubscribe,
		b.Store.Subscribe(b.Orchestrator),
		b.Store.Subscribe(b.Charts),
		b.Store.Subscribe(b.Hub),
	)

	deps := server.Deps{
		Store:       b.Store,
		Selectors:   b.Selectors,
		Charts:      b.Charts,
		Hub:         b.Hub,
		Gatherer:    b.Registry,
		CORSOrigins: cfg.Server.CORSOrigins,
		Pprof:       cfg.Server.Pprof,
		Logger:      b.Zap,
	}
	if b.Icons != nil {
		deps.Icons = b.Icons
	}
	b.Router = server.NewRouter(deps)

	return nil
}

// resumeOptions rebuilds the state from a non-empty journal.
func (b *Bootstrap) resumeOptions(ctx context.Context) ([]engine.Option, error) {
	last, err := b.Journal.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	if last == 0 {
		return nil, nil
	}

	actions, err := b.Journal.Actions(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}
	b.Logger.Info("🔄 Resuming from journal", slog.Int("actions", len(actions)), slog.Uint64("last_seq", last))
	return []engine.Option{
		engine.WithInitialState(engine.Replay(actions)),
		engine.WithLastSeq(last),
	}, nil
}

// Start runs the store loop and, when configured, the initial load.
func (b *Bootstrap) Start(ctx context.Context) error {
	go b.Store.Run(ctx)
	b.Logger.InfoContext(ctx, "✅ Store started")

	if b.Config.App.LoadOnStart {
		if err := b.Store.Dispatch(ctx, event.LoadRequested{}); err != nil {
			return fmt.Errorf("initial load: %w", err)
		}
	}
	return nil
}

// Serve blocks on the HTTP server until ctx is done, then drains it.
func (b *Bootstrap) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         b.Config.Server.Addr,
		Handler:      b.Router,
		ReadTimeout:  b.Config.Server.ReadTimeout,
		WriteTimeout: b.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		b.Logger.Info("🌐 HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), b.Config.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close stops the reactions and releases resources. The store loop stops
// with the context passed to Start.
func (b *Bootstrap) Close() {
	for _, unsubscribe := range b.unsubscribe {
		unsubscribe()
	}
	if b.Orchestrator != nil {
		b.Orchestrator.Stop()
	}
	if b.Hub != nil {
		b.Hub.Close()
	}
	if b.Journal != nil {
		if err := b.Journal.Close(); err != nil {
			b.Logger.Error("Failed to close journal", slog.Any("error", err))
		}
	}
	if b.Zap != nil {
		_ = b.Zap.Sync()
	}
}
