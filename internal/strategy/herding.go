package strategy

import "crypto_swarm/internal/domain"

// tieOrder ranks positions when neighbor counts tie: BUY > SELL > NEUTRAL.
var tieOrder = [...]domain.Position{domain.PositionBuy, domain.PositionSell, domain.PositionNeutral}

// DominantPosition returns the mode of the given positions.
// Empty input yields NEUTRAL. Ties resolve by tieOrder.
func DominantPosition(positions []domain.Position) domain.Position {
	if len(positions) == 0 {
		return domain.PositionNeutral
	}

	var counts [3]int
	for _, p := range positions {
		if int(p) < len(counts) {
			counts[p]++
		}
	}

	best := domain.PositionNeutral
	bestCount := -1
	for _, p := range tieOrder {
		if counts[p] > bestCount {
			best = p
			bestCount = counts[p]
		}
	}
	return best
}

// Herd adopts the dominant neighbor position with probability prob.
// The draw is always consumed so the stream layout does not depend on neighbors.
// A NEUTRAL dominant position never changes the state.
func Herd(state *domain.AgentState, dominant domain.Position, prob float64, rng Rand) bool {
	if rng.Float64() < prob && dominant != domain.PositionNeutral {
		state.Position = dominant
		return true
	}
	return false
}

// ForceLiquidation models an adverse move wiping out a leveraged position:
// with probability leverage the agent is closed out at SELL.
func ForceLiquidation(state *domain.AgentState, leverage float64, rng Rand) bool {
	if rng.Float64() < leverage {
		state.Position = domain.PositionSell
		state.Liquidated = true
		return true
	}
	return false
}
