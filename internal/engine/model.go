package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"crypto_swarm/internal/domain"
	"crypto_swarm/internal/event"
	"crypto_swarm/internal/influence"
	"crypto_swarm/internal/infra"
)

// Config controls model creation.
type Config struct {
	Seed uint64
	// NumAgents must equal the topology node count. 0 takes the node count.
	NumAgents int
	// Workers sets phase-1 parallelism; results do not depend on it.
	Workers int
	Policy  PopulationPolicy
	// DumpPath receives a JSON state dump if a run panics. Empty disables it.
	DumpPath string
	Metrics  *infra.Metrics
}

// DefaultConfig returns a sequential model config with the default population policy.
func DefaultConfig() Config {
	return Config{
		Workers: 1,
		Policy:  DefaultPopulationPolicy(),
	}
}

// Observer is notified after each committed tick. The event is recycled
// once all observers return; use Clone to retain it.
type Observer func(ev *event.TickEvent)

// AgentView is a read-only copy of an agent.
type AgentView struct {
	ID          int               `json:"id"`
	Profile     domain.Profile    `json:"profile"`
	HerdingProb float64           `json:"herding_prob"`
	Leverage    float64           `json:"leverage"`
	State       domain.AgentState `json:"state"`
}

// MarketModel owns the topology, one trader per node and the tick counter.
type MarketModel struct {
	topo      *influence.Topology
	traders   []*Trader
	scheduler *Scheduler
	seed      uint64
	tick      int64

	observers []Observer
	metrics   *infra.Metrics
	dumpPath  string

	mu sync.RWMutex // Guards traders' states and tick for external reads
}

// NewMarketModel places one trader per node, drawing traits from cfg.Policy
// with profiles chosen by assign (uniform when nil).
func NewMarketModel(topo *influence.Topology, assign ProfileAssigner, cfg Config) (*MarketModel, error) {
	if err := checkTopology(topo, cfg.NumAgents); err != nil {
		return nil, err
	}
	specs, err := DrawPopulation(topo.NodeCount(), cfg.Policy, assign, PopulationStream(cfg.Seed))
	if err != nil {
		return nil, err
	}
	return NewMarketModelWithSpecs(topo, specs, cfg)
}

// NewMarketModelWithSpecs places traders with explicit traits; specs[i] goes on node i.
func NewMarketModelWithSpecs(topo *influence.Topology, specs []TraderSpec, cfg Config) (*MarketModel, error) {
	if err := checkTopology(topo, cfg.NumAgents); err != nil {
		return nil, err
	}
	if len(specs) != topo.NodeCount() {
		return nil, &domain.ConfigError{
			Field: "profiles",
			Err:   fmt.Errorf("%w: %d trader specs for %d nodes", domain.ErrTopologyMismatch, len(specs), topo.NodeCount()),
		}
	}

	m := &MarketModel{
		topo:      topo,
		traders:   make([]*Trader, len(specs)),
		scheduler: NewScheduler(cfg.Workers),
		seed:      cfg.Seed,
		metrics:   cfg.Metrics,
		dumpPath:  cfg.DumpPath,
	}
	for i, spec := range specs {
		t, err := NewTrader(i, spec, AgentStream(cfg.Seed, i))
		if err != nil {
			return nil, fmt.Errorf("agent %d: %w", i, err)
		}
		m.traders[i] = t
	}
	if m.metrics != nil {
		m.metrics.SetActiveAgents(int32(len(m.traders)))
	}

	slog.Info("Market model created",
		slog.Int("agents", len(m.traders)),
		slog.Int("edges", topo.EdgeCount()),
		slog.Uint64("seed", cfg.Seed),
		slog.Int("workers", m.scheduler.Workers()))

	return m, nil
}

func checkTopology(topo *influence.Topology, numAgents int) error {
	if topo == nil {
		return &domain.ConfigError{Field: "topology", Err: errors.New("topology is required")}
	}
	if numAgents < 0 {
		return domain.NewConfigError("num_agents", "must not be negative, got %d", numAgents)
	}
	if numAgents != 0 && numAgents != topo.NodeCount() {
		return &domain.ConfigError{
			Field: "num_agents",
			Err:   fmt.Errorf("%w: requested %d agents, topology has %d nodes", domain.ErrTopologyMismatch, numAgents, topo.NodeCount()),
		}
	}
	return nil
}

// Subscribe registers an observer. Not safe to call while Step runs.
func (m *MarketModel) Subscribe(obs Observer) {
	m.observers = append(m.observers, obs)
}

// Step advances the whole population by one tick.
func (m *MarketModel) Step() {
	start := time.Now()

	res, tick := m.advance()

	if m.metrics != nil {
		m.metrics.RecordTick(time.Since(start).Nanoseconds(), uint64(res.Changed), uint64(res.Liquidations))
		m.metrics.SetActiveAgents(int32(res.Active))
	}

	slog.Debug("Tick committed",
		slog.Int64("tick", tick),
		slog.Int("changed", res.Changed),
		slog.Int("liquidations", res.Liquidations),
		slog.Int("active", res.Active))

	if len(m.observers) == 0 {
		return
	}
	ev := event.AcquireTickEvent(len(m.traders))
	ev.Tick = tick
	ev.Changed = res.Changed
	ev.Liquidations = res.Liquidations
	ev.Active = res.Active
	m.copyStates(ev.States)
	for _, obs := range m.observers {
		obs(ev)
	}
	event.ReleaseTickEvent(ev)
}

func (m *MarketModel) advance() (StepResult, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := m.scheduler.Step(m.traders, m.topo)
	tick := m.tick
	m.tick++
	return res, tick
}

// Run executes ticks steps, stopping early if ctx is cancelled between ticks.
// An invariant panic dumps state to DumpPath and halts.
func (m *MarketModel) Run(ctx context.Context, ticks int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r), slog.Int64("tick", m.Tick()))
			if m.dumpPath != "" {
				m.DumpState(m.dumpPath)
			}
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			slog.Info("Simulation stopping...", slog.Int64("tick", m.Tick()))
			return err
		}
		m.Step()
	}
	return nil
}

// Tick returns the number of committed ticks.
func (m *MarketModel) Tick() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tick
}

// Seed returns the seed the model was created with.
func (m *MarketModel) Seed() uint64 { return m.seed }

// Topology returns the immutable neighbor structure.
func (m *MarketModel) Topology() *influence.Topology { return m.topo }

// Len returns the population size.
func (m *MarketModel) Len() int { return len(m.traders) }

// States returns a copy of every agent's committed state, indexed by agent id.
func (m *MarketModel) States() []domain.AgentState {
	out := make([]domain.AgentState, len(m.traders))
	m.copyStates(out)
	return out
}

func (m *MarketModel) copyStates(dst []domain.AgentState) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, t := range m.traders {
		dst[i] = t.state
	}
}

// Agent returns a copy of one agent.
func (m *MarketModel) Agent(id int) (AgentView, bool) {
	if id < 0 || id >= len(m.traders) {
		return AgentView{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view(m.traders[id]), true
}

// Agents returns copies of all agents ordered by id.
func (m *MarketModel) Agents() []AgentView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AgentView, len(m.traders))
	for i, t := range m.traders {
		out[i] = view(t)
	}
	return out
}

func view(t *Trader) AgentView {
	return AgentView{
		ID:          t.id,
		Profile:     t.profile,
		HerdingProb: t.herdingProb,
		Leverage:    t.leverage,
		State:       t.state,
	}
}

// DumpState writes the model state to a file (for post-mortem).
func (m *MarketModel) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		Tick   int64       `json:"tick"`
		Seed   uint64      `json:"seed"`
		Agents []AgentView `json:"agents"`
	}{
		Tick:   m.Tick(),
		Seed:   m.seed,
		Agents: m.Agents(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
