package strategy

import "crypto_swarm/internal/domain"

// Degen panics easily: holding SELL, it liquidates with high probability.
// Position is left unchanged; it stays SELL.
type Degen struct {
	PanicProb float64
}

func NewDegen() *Degen {
	return &Degen{PanicProb: 0.8}
}

func (d *Degen) Profile() domain.Profile { return domain.ProfileDegen }

func (d *Degen) Apply(state *domain.AgentState, rng Rand) {
	// The draw only happens when holding SELL.
	if state.Position == domain.PositionSell && rng.Float64() < d.PanicProb {
		state.Liquidated = true
	}
}
