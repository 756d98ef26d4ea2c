package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"crypto_swarm/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(app.ConfigPath()); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Influence graph + agent simulation
	summary, err := bootstrap.Simulate(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("👋 Simulation interrupted, partial results kept")
			return
		}
		slog.Error("❌ Simulation failed", slog.Any("error", err))
		bootstrap.Close()
		os.Exit(1)
	}

	slog.Info("✨ Simulation completed",
		slog.Uint64("run_id", uint64(summary.RunID)),
		slog.Int("accounts", summary.Accounts),
		slog.Int("edges", summary.Edges),
		slog.Int64("ticks", summary.Ticks),
		slog.Int("records", summary.Records),
		slog.Int("active", summary.Active),
		slog.Int("liquidated", summary.Liquidated))
}
