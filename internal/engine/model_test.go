package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"crypto_swarm/internal/domain"
	"crypto_swarm/internal/event"
	"crypto_swarm/internal/influence"
	"crypto_swarm/internal/infra"
)

// ring connects every node to its two ring neighbors plus a chord to i+n/2.
func ring(n int) *influence.Topology {
	var edges []influence.Edge
	link := func(a, b int) {
		if a == b {
			return
		}
		edges = append(edges, influence.Edge{From: a, To: b, Weight: 1}, influence.Edge{From: b, To: a, Weight: 1})
	}
	for i := 0; i < n; i++ {
		link(i, (i+1)%n)
		if i < n/2 {
			link(i, i+n/2)
		}
	}
	return influence.NewTopology(n, edges, influence.BuildOptions{})
}

func isolated(n int) *influence.Topology {
	return influence.NewTopology(n, nil, influence.BuildOptions{})
}

func newModel(t *testing.T, topo *influence.Topology, seed uint64, workers int) *MarketModel {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Seed = seed
	cfg.Workers = workers
	m, err := NewMarketModel(topo, nil, cfg)
	if err != nil {
		t.Fatalf("NewMarketModel failed: %v", err)
	}
	return m
}

func history(t *testing.T, m *MarketModel, ticks int) [][]domain.AgentState {
	t.Helper()
	out := make([][]domain.AgentState, 0, ticks)
	m.Subscribe(func(ev *event.TickEvent) {
		out = append(out, ev.Clone().States)
	})
	if err := m.Run(context.Background(), ticks); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return out
}

func TestMarketModel_Deterministic(t *testing.T) {
	topo := ring(64)

	a := history(t, newModel(t, topo, 7, 1), 30)
	b := history(t, newModel(t, topo, 7, 1), 30)
	if !reflect.DeepEqual(a, b) {
		t.Error("Expected identical trajectories for the same seed")
	}

	c := history(t, newModel(t, topo, 8, 1), 30)
	if reflect.DeepEqual(a, c) {
		t.Error("Expected different trajectories for different seeds")
	}
}

func TestMarketModel_ParallelMatchesSequential(t *testing.T) {
	topo := ring(257)

	seq := history(t, newModel(t, topo, 99, 1), 25)
	par := history(t, newModel(t, topo, 99, 8), 25)

	if !reflect.DeepEqual(seq, par) {
		t.Error("Expected parallel phase 1 to reproduce the sequential run")
	}
}

func TestMarketModel_LiquidationIsAbsorbing(t *testing.T) {
	m := newModel(t, ring(100), 3, 4)

	prev := m.States()
	liquidated := 0
	m.Subscribe(func(ev *event.TickEvent) {
		for i, s := range ev.States {
			if prev[i].Liquidated && s != prev[i] {
				t.Errorf("tick %d: agent %d changed after liquidation: %+v -> %+v", ev.Tick, i, prev[i], s)
			}
			if s.Liquidated && s.Position != domain.PositionSell {
				t.Errorf("tick %d: agent %d liquidated at %s", ev.Tick, i, s.Position)
			}
		}
		liquidated = len(ev.States) - ev.Active
		copy(prev, ev.States)
	})

	if err := m.Run(context.Background(), 50); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if liquidated == 0 {
		t.Error("Expected some liquidations after 50 ticks with default leverage")
	}
}

func TestMarketModel_MarketMakerRepostRate(t *testing.T) {
	// Isolated market makers without herding or leverage: from NEUTRAL the
	// first tick leaves the book with probability 0.5.
	const n = 4000
	specs := make([]TraderSpec, n)
	for i := range specs {
		specs[i] = TraderSpec{Profile: domain.ProfileMarketMaker}
	}
	m, err := NewMarketModelWithSpecs(isolated(n), specs, Config{Seed: 11})
	if err != nil {
		t.Fatalf("NewMarketModelWithSpecs failed: %v", err)
	}
	m.Step()

	moved := 0
	for _, s := range m.States() {
		if s.Liquidated {
			t.Fatal("Expected no liquidation with zero leverage")
		}
		if s.Position != domain.PositionNeutral {
			moved++
		}
	}
	rate := float64(moved) / n
	if rate < 0.46 || rate > 0.54 {
		t.Errorf("Expected repost rate near 0.5, got %.3f", rate)
	}
}

func TestMarketModel_TopologyMismatch(t *testing.T) {
	topo := ring(10)

	_, err := NewMarketModel(topo, nil, Config{NumAgents: 11, Policy: DefaultPopulationPolicy()})
	if !errors.Is(err, domain.ErrTopologyMismatch) {
		t.Errorf("Expected ErrTopologyMismatch for num_agents, got %v", err)
	}

	_, err = NewMarketModelWithSpecs(topo, make([]TraderSpec, 3), Config{})
	if !errors.Is(err, domain.ErrTopologyMismatch) {
		t.Errorf("Expected ErrTopologyMismatch for specs, got %v", err)
	}
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected *domain.ConfigError, got %T", err)
	}

	if _, err := NewMarketModel(nil, nil, DefaultConfig()); err == nil {
		t.Error("Expected error for nil topology")
	}
}

func TestMarketModel_InitialState(t *testing.T) {
	m := newModel(t, ring(12), 1, 1)

	if m.Len() != 12 || m.Tick() != 0 {
		t.Fatalf("Expected 12 agents at tick 0, got %d at %d", m.Len(), m.Tick())
	}
	for _, a := range m.Agents() {
		if a.State != (domain.AgentState{}) {
			t.Errorf("agent %d: expected NEUTRAL active, got %+v", a.ID, a.State)
		}
	}
	if _, ok := m.Agent(12); ok {
		t.Error("Expected out of range agent lookup to fail")
	}
}

func TestMarketModel_ObserversAndMetrics(t *testing.T) {
	metrics := &infra.Metrics{}
	cfg := DefaultConfig()
	cfg.Seed = 5
	cfg.Metrics = metrics
	m, err := NewMarketModel(ring(20), nil, cfg)
	if err != nil {
		t.Fatalf("NewMarketModel failed: %v", err)
	}

	var ticks []int64
	m.Subscribe(func(ev *event.TickEvent) { ticks = append(ticks, ev.Tick) })

	if err := m.Run(context.Background(), 5); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !reflect.DeepEqual(ticks, []int64{0, 1, 2, 3, 4}) {
		t.Errorf("Expected ticks 0..4, got %v", ticks)
	}
	if got := metrics.Snapshot().TicksProcessed; got != 5 {
		t.Errorf("Expected 5 ticks in metrics, got %d", got)
	}
}

func TestMarketModel_RunCancelled(t *testing.T) {
	m := newModel(t, ring(8), 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	m.Subscribe(func(ev *event.TickEvent) {
		if ev.Tick == 2 {
			cancel()
		}
	})

	err := m.Run(ctx, 100)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if m.Tick() != 3 {
		t.Errorf("Expected 3 committed ticks, got %d", m.Tick())
	}
}

func TestMarketModel_DumpState(t *testing.T) {
	m := newModel(t, ring(6), 2, 1)
	m.Step()

	path := filepath.Join(t.TempDir(), "dump.json")
	m.DumpState(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read dump: %v", err)
	}
	var dump struct {
		Tick   int64             `json:"tick"`
		Seed   uint64            `json:"seed"`
		Agents []json.RawMessage `json:"agents"`
	}
	if err := json.Unmarshal(data, &dump); err != nil {
		t.Fatalf("Invalid dump JSON: %v", err)
	}
	if dump.Tick != 1 || dump.Seed != 2 || len(dump.Agents) != 6 {
		t.Errorf("Unexpected dump header: tick=%d seed=%d agents=%d", dump.Tick, dump.Seed, len(dump.Agents))
	}
}

func TestMarketModel_RunHaltsAndDumps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "halt.json")
	cfg := DefaultConfig()
	cfg.Seed = 4
	cfg.DumpPath = path
	m, err := NewMarketModel(ring(10), nil, cfg)
	if err != nil {
		t.Fatalf("NewMarketModel failed: %v", err)
	}
	m.Subscribe(func(ev *event.TickEvent) {
		if ev.Tick == 1 {
			panic("boom")
		}
	})

	defer func() {
		r := recover()
		msg, ok := r.(string)
		if !ok || !strings.HasPrefix(msg, "HALTED:") {
			t.Fatalf("Expected HALTED panic, got %v", r)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Expected state dump: %v", err)
		}
		var dump struct {
			Tick   int64             `json:"tick"`
			Agents []json.RawMessage `json:"agents"`
		}
		if err := json.Unmarshal(data, &dump); err != nil {
			t.Fatalf("Invalid dump JSON: %v", err)
		}
		if dump.Tick != 2 || len(dump.Agents) != 10 {
			t.Errorf("Expected dump at tick 2 with 10 agents, got tick=%d agents=%d", dump.Tick, len(dump.Agents))
		}
	}()

	m.Run(context.Background(), 3)
	t.Fatal("Run should not return after an observer panic")
}

func BenchmarkMarketModel_Step(b *testing.B) {
	topo := ring(10000)
	benches := []struct {
		name    string
		workers int
	}{
		{"sequential", 1},
		{"parallel", 4},
	}
	for _, bb := range benches {
		b.Run(bb.name, func(b *testing.B) {
			cfg := DefaultConfig()
			cfg.Workers = bb.workers
			m, err := NewMarketModel(topo, nil, cfg)
			if err != nil {
				b.Fatal(err)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				m.Step()
			}
		})
	}
}
