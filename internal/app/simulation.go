package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"crypto_swarm/internal/domain"
	"crypto_swarm/internal/engine"
	"crypto_swarm/internal/event"
	"crypto_swarm/internal/influence"
	"crypto_swarm/internal/infra"
	"crypto_swarm/internal/infra/eventlog"
	"crypto_swarm/internal/infra/render"
	"crypto_swarm/internal/infra/stream"
	"crypto_swarm/internal/service"
)

// Summary describes a finished run.
type Summary struct {
	RunID      uint
	Accounts   int
	Edges      int
	Ticks      int64
	Records    int
	Active     int
	Liquidated int
}

// Simulate runs the whole pipeline: order log -> influence graph -> agent
// simulation -> order book, persisting every tick and optionally streaming it.
func (b *Bootstrap) Simulate(ctx context.Context) (*Summary, error) {
	if b.Config == nil || b.Storage == nil {
		return nil, errors.New("bootstrap not initialized")
	}
	cfg := b.Config
	if b.Metrics == nil {
		b.Metrics = infra.GlobalMetrics
	}
	source := b.Source
	if source == nil {
		source = eventlog.NewCSVSource(cfg.Input.OrdersCSV)
	}

	// 1. Influence graph
	events, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}
	detected, err := influence.Detect(events)
	if err != nil {
		return nil, err
	}
	if cfg.Output.HeatmapPath != "" {
		if err := render.SaveHeatmap(detected.Matrix, cfg.Output.HeatmapPath, render.DefaultHeatmapOptions()); err != nil {
			slog.Warn("Failed to save heatmap", slog.Any("error", err))
		}
	}
	topo := influence.Build(detected.Matrix, influence.BuildOptions{SelfLoops: cfg.Simulation.SelfLoops})

	// 2. Population
	model, err := b.newModel(topo)
	if err != nil {
		return nil, err
	}

	// Bind before any output is written so a taken port fails the run up front.
	var ln net.Listener
	if cfg.Stream.Enabled {
		ln, err = net.Listen("tcp", cfg.Stream.Addr)
		if err != nil {
			return nil, fmt.Errorf("stream server: %w", err)
		}
		defer ln.Close()
	}

	run := &domain.SimulationRun{
		Seed:      cfg.Simulation.Seed,
		Agents:    model.Len(),
		Edges:     topo.EdgeCount(),
		SelfLoops: topo.SelfLoops(),
	}
	if err := b.Storage.CreateRun(run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	// 3. Sinks
	book, err := eventlog.CreateCSV(cfg.Output.OrderBookCSV)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	reporter, err := service.NewOrderBookReporter(service.ReporterConfig{
		Seed:        cfg.Simulation.Seed,
		PriceMin:    cfg.Output.PriceMin,
		PriceMax:    cfg.Output.PriceMax,
		QuantityMin: cfg.Output.QuantityMin,
		QuantityMax: cfg.Output.QuantityMax,
	}, book)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		sinkErr  error
		sinkOnce sync.Once
	)
	fail := func(err error) {
		b.Metrics.RecordError()
		sinkOnce.Do(func() {
			sinkErr = err
			cancel()
		})
	}

	profiles := make([]domain.Profile, model.Len())
	for i, a := range model.Agents() {
		profiles[i] = a.Profile
	}

	model.Subscribe(func(ev *event.TickEvent) {
		n, err := reporter.Handle(ev)
		if err != nil {
			fail(fmt.Errorf("order book: %w", err))
			return
		}
		b.Metrics.RecordRecords(n)
	})
	model.Subscribe(func(ev *event.TickEvent) {
		if err := b.Storage.SaveTick(run.ID, ev.Tick, profiles, ev.States); err != nil {
			fail(fmt.Errorf("save tick %d: %w", ev.Tick, err))
		}
	})

	var streamDone chan struct{}
	if ln != nil {
		hub := stream.NewHub(b.Metrics)
		streamDone = make(chan struct{})
		go func() {
			defer close(streamDone)
			if err := hub.Serve(runCtx, ln, cfg.Stream.Path); err != nil {
				slog.Error("Stream server failed", slog.Any("error", err))
				fail(fmt.Errorf("stream server: %w", err))
			}
		}()
		model.Subscribe(func(ev *event.TickEvent) {
			if err := hub.Publish(ev); err != nil {
				slog.Warn("Failed to publish tick", slog.Int64("tick", ev.Tick), slog.Any("error", err))
			}
		})
	}

	// 4. Run
	runErr := model.Run(runCtx, cfg.Simulation.Ticks)
	if streamDone != nil {
		cancel()
		<-streamDone
	}
	if sinkErr != nil {
		runErr = sinkErr
	}

	if err := b.Storage.FinishRun(run.ID, model.Tick()); err != nil {
		slog.Error("Failed to finish run", slog.Uint64("run_id", uint64(run.ID)), slog.Any("error", err))
	}
	if err := book.Close(); err != nil && runErr == nil {
		runErr = err
	}

	summary := &Summary{
		RunID:    run.ID,
		Accounts: len(detected.Accounts),
		Edges:    topo.EdgeCount(),
		Ticks:    model.Tick(),
		Records:  reporter.Total(),
	}
	for _, s := range model.States() {
		if s.Liquidated {
			summary.Liquidated++
		} else {
			summary.Active++
		}
	}

	snap := b.Metrics.Snapshot()
	slog.Info("Simulation finished",
		slog.Uint64("run_id", uint64(summary.RunID)),
		slog.Int("agents", model.Len()),
		slog.Int64("ticks", summary.Ticks),
		slog.Int("records", summary.Records),
		slog.Int("liquidated", summary.Liquidated),
		slog.Int64("avg_tick_ns", snap.AvgTickNs))

	return summary, runErr
}

func (b *Bootstrap) newModel(topo *influence.Topology) (*engine.MarketModel, error) {
	sim := b.Config.Simulation

	weights, err := b.Config.ProfileWeights()
	if err != nil {
		return nil, err
	}
	var assign engine.ProfileAssigner
	if weights != nil {
		w, err := engine.NewWeightedAssignment(weights)
		if err != nil {
			return nil, err
		}
		assign = w
	}

	return engine.NewMarketModel(topo, assign, engine.Config{
		Seed:      sim.Seed,
		NumAgents: sim.NumAgents,
		Workers:   sim.Workers,
		Policy: engine.PopulationPolicy{
			HerdingMin:      sim.Herding.Min,
			HerdingMax:      sim.Herding.Max,
			DegenLeverMin:   sim.DegenLeverage.Min,
			DegenLeverMax:   sim.DegenLeverage.Max,
			DefaultLeverage: sim.DefaultLeverage,
		},
		DumpPath: b.Config.Output.DumpPath,
		Metrics:  b.Metrics,
	})
}
