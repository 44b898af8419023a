package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"crypto_dash/internal/app"
	"crypto_dash/internal/infra"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	flag.Parse()

	// 1. Config
	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("❌ Failed to load config", slog.String("path", *configPath), slog.Any("error", err))
		os.Exit(1)
	}

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap(cfg)
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Store loop and initial load
	if err := bootstrap.Start(ctx); err != nil {
		slog.Error("❌ Start failed", slog.Any("error", err))
		return
	}

	slog.InfoContext(ctx, "✨ Crypto dashboard fully operational. Press Ctrl+C to exit.")

	// 5. HTTP until shutdown
	if err := bootstrap.Serve(ctx); err != nil {
		slog.Error("HTTP server failed", slog.Any("error", err))
		stop()
	}

	slog.Info("👋 Shutting down gracefully...")
}
