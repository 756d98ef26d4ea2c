package app

import (
	"errors"
	"log/slog"
	"os"

	"crypto_swarm/internal/domain"
	"crypto_swarm/internal/infra"
	"crypto_swarm/internal/infra/storage"
)

// DefaultConfigPath is used when CRYPTO_SWARM_CONFIG is unset.
const DefaultConfigPath = "configs/config.yaml"

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Metrics *infra.Metrics
	// Source supplies the order log. Nil reads input.orders_csv.
	Source domain.EventSource
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{Metrics: infra.GlobalMetrics}
}

// ConfigPath returns the config file named by CRYPTO_SWARM_CONFIG, or the default.
func ConfigPath() string {
	if p := os.Getenv("CRYPTO_SWARM_CONFIG"); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Initialize performs core system initialization (config, logger, DB).
func (b *Bootstrap) Initialize(path string) error {
	slog.Info("🚀 Bootstrapping Crypto Swarm...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(path)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Output.SQLitePath)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	return nil
}

// Close releases the resources opened by Initialize.
func (b *Bootstrap) Close() error {
	var errs []error
	if b.Storage != nil {
		errs = append(errs, b.Storage.Close())
		b.Storage = nil
	}
	return errors.Join(errs...)
}
