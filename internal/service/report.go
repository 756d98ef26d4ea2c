package service

import (
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"sync"

	"crypto_swarm/internal/domain"
	"crypto_swarm/internal/event"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceFunc quotes a price for an agent's order at a tick.
type PriceFunc func(agentID int, tick int64, position domain.Position) decimal.Decimal

// ReporterConfig sets the ranges of the placeholder order attributes.
type ReporterConfig struct {
	Seed        uint64
	PriceMin    decimal.Decimal
	PriceMax    decimal.Decimal
	QuantityMin int64
	QuantityMax int64
	// Price overrides the uniform placeholder price when set.
	Price PriceFunc
}

// DefaultReporterConfig: price uniform in [1, 1_000_000], quantity in [1, 10].
func DefaultReporterConfig(seed uint64) ReporterConfig {
	return ReporterConfig{
		Seed:        seed,
		PriceMin:    decimal.NewFromInt(1),
		PriceMax:    decimal.NewFromInt(1_000_000),
		QuantityMin: 1,
		QuantityMax: 10,
	}
}

// OrderBookReporter turns committed tick states into order-book records:
// one EVENT_NEW record per agent holding BUY or SELL.
// Identifiers, prices and quantities come from a stream seeded separately
// from the simulation, so reporting never perturbs agent draws.
type OrderBookReporter struct {
	mu    sync.Mutex
	cfg   ReporterConfig
	rng   *rand.Rand
	ids   *rand.ChaCha8
	sinks []domain.OrderRecordSink
	total int
}

// NewOrderBookReporter validates ranges and attaches sinks.
func NewOrderBookReporter(cfg ReporterConfig, sinks ...domain.OrderRecordSink) (*OrderBookReporter, error) {
	if cfg.PriceMax.LessThan(cfg.PriceMin) {
		return nil, domain.NewConfigError("price", "max %s below min %s", cfg.PriceMax, cfg.PriceMin)
	}
	if cfg.QuantityMin < 1 || cfg.QuantityMax < cfg.QuantityMin {
		return nil, domain.NewConfigError("quantity", "range [%d,%d] is invalid", cfg.QuantityMin, cfg.QuantityMax)
	}

	var key [32]byte
	for i := 0; i < 8; i++ {
		key[i] = byte(cfg.Seed >> (8 * i))
	}
	copy(key[8:], "order-book-reporter-ids")

	return &OrderBookReporter{
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(cfg.Seed, 0x6f7264657262)),
		ids:   rand.NewChaCha8(key),
		sinks: sinks,
	}, nil
}

// Records builds the records of one tick. states is indexed by agent id.
func (r *OrderBookReporter) Records(tick int64, states []domain.AgentState) ([]domain.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []domain.OrderRecord
	for id, s := range states {
		if s.Position == domain.PositionNeutral {
			continue
		}
		hash, err := r.nextHash()
		if err != nil {
			return nil, err
		}
		records = append(records, domain.OrderRecord{
			Hash:       hash,
			Block:      tick,
			Action:     domain.ActionNew,
			Price:      r.price(id, tick, s.Position),
			Quantity:   r.cfg.QuantityMin + r.rng.Int64N(r.cfg.QuantityMax-r.cfg.QuantityMin+1),
			OrderType:  s.Position.String(),
			Subaccount: id,
		})
	}
	return records, nil
}

// Handle builds the records of ev and forwards them to every sink.
func (r *OrderBookReporter) Handle(ev *event.TickEvent) (int, error) {
	records, err := r.Records(ev.Tick, ev.States)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	for _, sink := range r.sinks {
		if err := sink.WriteRecords(records); err != nil {
			return 0, fmt.Errorf("tick %d: %w", ev.Tick, err)
		}
	}
	r.mu.Lock()
	r.total += len(records)
	r.mu.Unlock()
	return len(records), nil
}

// Total returns the number of records forwarded so far.
func (r *OrderBookReporter) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

func (r *OrderBookReporter) nextHash() (string, error) {
	id, err := uuid.NewRandomFromReader(r.ids)
	if err != nil {
		return "", fmt.Errorf("generate order hash: %w", err)
	}
	return "0x" + hex.EncodeToString(id[:]), nil
}

func (r *OrderBookReporter) price(id int, tick int64, pos domain.Position) decimal.Decimal {
	if r.cfg.Price != nil {
		return r.cfg.Price(id, tick, pos)
	}
	span := r.cfg.PriceMax.Sub(r.cfg.PriceMin)
	if span.IsInteger() && r.cfg.PriceMin.IsInteger() {
		return r.cfg.PriceMin.Add(decimal.NewFromInt(r.rng.Int64N(span.IntPart() + 1)))
	}
	return r.cfg.PriceMin.Add(span.Mul(decimal.NewFromFloat(r.rng.Float64()))).Round(2)
}
