package strategy

import "crypto_swarm/internal/domain"

// MarketMaker cancels and reposts quotes often: half the ticks it flips to a fresh side.
type MarketMaker struct {
	RepostProb float64
}

func NewMarketMaker() *MarketMaker {
	return &MarketMaker{RepostProb: 0.5}
}

func (m *MarketMaker) Profile() domain.Profile { return domain.ProfileMarketMaker }

func (m *MarketMaker) Apply(state *domain.AgentState, rng Rand) {
	if rng.Float64() < m.RepostProb {
		state.Position = coinSide(rng)
	}
}
