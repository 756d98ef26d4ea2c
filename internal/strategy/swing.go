package strategy

import "crypto_swarm/internal/domain"

// SwingTrader reacts slowly to macro signals.
type SwingTrader struct {
	ReactProb float64
}

func NewSwingTrader() *SwingTrader {
	return &SwingTrader{ReactProb: 0.2}
}

func (s *SwingTrader) Profile() domain.Profile { return domain.ProfileSwingTrader }

func (s *SwingTrader) Apply(state *domain.AgentState, rng Rand) {
	if rng.Float64() < s.ReactProb {
		state.Position = coinSide(rng)
	}
}
