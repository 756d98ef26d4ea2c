package engine

import (
	"fmt"

	"crypto_swarm/internal/domain"
	"crypto_swarm/internal/strategy"
)

// TraderSpec fixes an agent's traits at creation.
type TraderSpec struct {
	Profile     domain.Profile
	HerdingProb float64
	Leverage    float64
}

// Validate checks probabilities are usable. The population policy draws
// narrower ranges; explicit specs may use the full [0,1] range.
func (s TraderSpec) Validate() error {
	if s.HerdingProb < 0 || s.HerdingProb > 1 {
		return domain.NewConfigError("herding_prob", "must be in [0,1], got %v", s.HerdingProb)
	}
	if s.Leverage < 0 || s.Leverage > 1 {
		return domain.NewConfigError("leverage", "must be in [0,1], got %v", s.Leverage)
	}
	return nil
}

// Trader is a single agent: fixed traits, one committed state, one random stream.
type Trader struct {
	id          int
	profile     domain.Profile
	herdingProb float64
	leverage    float64
	strategy    strategy.Strategy
	rng         strategy.Rand

	state domain.AgentState
}

// NewTrader creates an agent in the NEUTRAL, active state.
func NewTrader(id int, spec TraderSpec, rng strategy.Rand) (*Trader, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	strat, err := strategy.ForProfile(spec.Profile)
	if err != nil {
		return nil, domain.NewConfigError("profile", "%v", err)
	}
	if rng == nil {
		return nil, fmt.Errorf("trader %d: nil random source", id)
	}
	return &Trader{
		id:          id,
		profile:     spec.Profile,
		herdingProb: spec.HerdingProb,
		leverage:    spec.Leverage,
		strategy:    strat,
		rng:         rng,
	}, nil
}

func (t *Trader) ID() int                  { return t.id }
func (t *Trader) Profile() domain.Profile  { return t.profile }
func (t *Trader) HerdingProb() float64     { return t.herdingProb }
func (t *Trader) Leverage() float64        { return t.leverage }
func (t *Trader) State() domain.AgentState { return t.state }

// Decide computes the next state from the tick-start snapshot.
// It reads neighbor positions only from snapshot and never touches shared state,
// so every trader can decide concurrently. Order of draws:
// herding, profile strategy, forced liquidation.
func (t *Trader) Decide(snapshot []domain.AgentState, neighbors []int) domain.AgentState {
	next := snapshot[t.id]
	if next.Liquidated {
		return next
	}

	dominant := domain.PositionNeutral
	if len(neighbors) > 0 {
		positions := make([]domain.Position, len(neighbors))
		for i, n := range neighbors {
			positions[i] = snapshot[n].Position
		}
		dominant = strategy.DominantPosition(positions)
	}
	strategy.Herd(&next, dominant, t.herdingProb, t.rng)

	t.strategy.Apply(&next, t.rng)

	// Independent of the profile step; may fire on top of a Degen panic.
	strategy.ForceLiquidation(&next, t.leverage, t.rng)

	return next
}

// commit is the only writer of t.state.
func (t *Trader) commit(next domain.AgentState) {
	if t.state.Liquidated && next != t.state {
		panic(&domain.InvariantError{
			Op:     "trader.commit",
			Detail: fmt.Sprintf("agent %d left absorbing liquidated state: %+v -> %+v", t.id, t.state, next),
		})
	}
	t.state = next
}
