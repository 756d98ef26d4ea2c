package strategy

import (
	"fmt"

	"crypto_swarm/internal/domain"
)

// Rand is the only randomness a strategy may consume.
// *rand.Rand from math/rand/v2 satisfies it; tests inject scripted sources.
type Rand interface {
	Float64() float64
}

// Strategy is the profile-specific step of a trader's tick.
// It runs after herding and may override it. It is called on a private
// copy of the agent state during the compute phase, never on shared state.
type Strategy interface {
	Profile() domain.Profile
	Apply(state *domain.AgentState, rng Rand)
}

// ForProfile returns the default behavior for a profile.
func ForProfile(p domain.Profile) (Strategy, error) {
	switch p {
	case domain.ProfileMarketMaker:
		return NewMarketMaker(), nil
	case domain.ProfileDegen:
		return NewDegen(), nil
	case domain.ProfileSwingTrader:
		return NewSwingTrader(), nil
	default:
		return nil, fmt.Errorf("no strategy for profile %d", p)
	}
}

// coinSide picks BUY or SELL with equal odds.
func coinSide(rng Rand) domain.Position {
	if rng.Float64() < 0.5 {
		return domain.PositionBuy
	}
	return domain.PositionSell
}
