package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"crypto_swarm/internal/domain"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Range is a closed [min,max] interval.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Config holds every setting of a simulation run.
// LoadConfig starts from DefaultConfig, overlays the YAML file, then environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Simulation struct {
		Seed      uint64 `yaml:"seed"`
		Ticks     int    `yaml:"ticks"`
		NumAgents int    `yaml:"num_agents"` // 0 = one agent per observed account
		SelfLoops bool   `yaml:"self_loops"`
		Workers   int    `yaml:"workers"`
		// ProfileWeights keys: MarketMaker, Degen, SwingTrader. Empty = uniform.
		ProfileWeights  map[string]float64 `yaml:"profile_weights"`
		Herding         Range              `yaml:"herding"`
		DegenLeverage   Range              `yaml:"degen_leverage"`
		DefaultLeverage float64            `yaml:"default_leverage"`
	} `yaml:"simulation"`

	Input struct {
		OrdersCSV string `yaml:"orders_csv"`
	} `yaml:"input"`

	Output struct {
		OrderBookCSV string          `yaml:"order_book_csv"`
		SQLitePath   string          `yaml:"sqlite_path"`
		HeatmapPath  string          `yaml:"heatmap_path"`
		DumpPath     string          `yaml:"dump_path"`
		PriceMin     decimal.Decimal `yaml:"price_min"`
		PriceMax     decimal.Decimal `yaml:"price_max"`
		QuantityMin  int64           `yaml:"quantity_min"`
		QuantityMax  int64           `yaml:"quantity_max"`
	} `yaml:"output"`

	Stream struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
		Path    string `yaml:"path"`
	} `yaml:"stream"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig mirrors the reference run: 10 ticks over the observed accounts.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "crypto-swarm"
	cfg.App.Version = "0.1.0"

	cfg.Simulation.Seed = 42
	cfg.Simulation.Ticks = 10
	cfg.Simulation.SelfLoops = true
	cfg.Simulation.Workers = 1
	cfg.Simulation.Herding = Range{Min: 0.1, Max: 0.9}
	cfg.Simulation.DegenLeverage = Range{Min: 0.2, Max: 0.8}
	cfg.Simulation.DefaultLeverage = 0.1

	cfg.Input.OrdersCSV = "orders.csv"

	cfg.Output.OrderBookCSV = "order_book.csv"
	cfg.Output.DumpPath = "panic_dump.json"
	cfg.Output.PriceMin = decimal.NewFromInt(1)
	cfg.Output.PriceMax = decimal.NewFromInt(1_000_000)
	cfg.Output.QuantityMin = 1
	cfg.Output.QuantityMax = 10

	cfg.Stream.Addr = "localhost:8090"
	cfg.Stream.Path = "/ws"

	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// LoadConfig reads and parses the configuration file. A .env file next to
// the working directory is loaded first so its values reach overrideWithEnv.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	// .env is optional; existing environment variables win over it.
	_ = godotenv.Load()

	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ParseConfig overlays YAML data on DefaultConfig without validating.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse YAML: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	s := c.Simulation
	if s.Ticks <= 0 {
		return domain.NewConfigError("simulation.ticks", "must be positive, got %d", s.Ticks)
	}
	if s.NumAgents < 0 {
		return domain.NewConfigError("simulation.num_agents", "must not be negative, got %d", s.NumAgents)
	}
	if s.Workers < 1 {
		return domain.NewConfigError("simulation.workers", "must be at least 1, got %d", s.Workers)
	}
	if err := checkRange("simulation.herding", s.Herding); err != nil {
		return err
	}
	if err := checkRange("simulation.degen_leverage", s.DegenLeverage); err != nil {
		return err
	}
	if s.DefaultLeverage < 0 || s.DefaultLeverage > 1 {
		return domain.NewConfigError("simulation.default_leverage", "must be in [0,1], got %v", s.DefaultLeverage)
	}
	if _, err := c.ProfileWeights(); err != nil {
		return err
	}

	if c.Input.OrdersCSV == "" {
		return domain.NewConfigError("input.orders_csv", "path is required")
	}

	o := c.Output
	if o.PriceMin.LessThan(decimal.Zero) || o.PriceMax.LessThan(o.PriceMin) {
		return domain.NewConfigError("output.price", "range [%s,%s] is invalid", o.PriceMin, o.PriceMax)
	}
	if o.QuantityMin < 1 || o.QuantityMax < o.QuantityMin {
		return domain.NewConfigError("output.quantity", "range [%d,%d] is invalid", o.QuantityMin, o.QuantityMax)
	}

	if c.Stream.Enabled && (c.Stream.Addr == "" || !strings.HasPrefix(c.Stream.Path, "/")) {
		return domain.NewConfigError("stream", "addr and an absolute path are required when enabled")
	}

	return nil
}

// ProfileWeights parses simulation.profile_weights. Nil means uniform.
func (c *Config) ProfileWeights() (map[domain.Profile]float64, error) {
	if len(c.Simulation.ProfileWeights) == 0 {
		return nil, nil
	}
	out := make(map[domain.Profile]float64, len(c.Simulation.ProfileWeights))
	var total float64
	for name, w := range c.Simulation.ProfileWeights {
		p, err := domain.ParseProfile(name)
		if err != nil {
			return nil, &domain.ConfigError{Field: "simulation.profile_weights", Err: err}
		}
		if w < 0 {
			return nil, domain.NewConfigError("simulation.profile_weights", "negative weight for %s", name)
		}
		out[p] = w
		total += w
	}
	if total == 0 {
		return nil, domain.NewConfigError("simulation.profile_weights", "at least one weight must be positive")
	}
	return out, nil
}

func checkRange(field string, r Range) error {
	if r.Min < 0 || r.Max > 1 || r.Min > r.Max {
		return domain.NewConfigError(field, "range [%v,%v] must satisfy 0 <= min <= max <= 1", r.Min, r.Max)
	}
	return nil
}

// overrideWithEnv overrides settings from environment variables when present.
func overrideWithEnv(cfg *Config) error {
	if v := os.Getenv("CRYPTO_SWARM_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return &domain.ConfigError{Field: "CRYPTO_SWARM_SEED", Err: err}
		}
		cfg.Simulation.Seed = seed
	}
	if v := os.Getenv("CRYPTO_SWARM_TICKS"); v != "" {
		ticks, err := strconv.Atoi(v)
		if err != nil {
			return &domain.ConfigError{Field: "CRYPTO_SWARM_TICKS", Err: err}
		}
		cfg.Simulation.Ticks = ticks
	}
	if v := os.Getenv("CRYPTO_SWARM_ORDERS"); v != "" {
		cfg.Input.OrdersCSV = v
	}
	if v := os.Getenv("CRYPTO_SWARM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}
