package event

import "crypto_swarm/internal/domain"

// TickEvent is published after every committed tick.
type TickEvent struct {
	Tick int64 `json:"tick"` // 0-based index of the tick just committed
	// States holds every agent's committed state, indexed by agent id.
	States []domain.AgentState `json:"states"`
	// Changed counts agents whose state differs from the previous tick.
	Changed int `json:"changed"`
	// Liquidations counts agents that became liquidated during this tick.
	Liquidations int `json:"liquidations"`
	// Active counts agents not yet liquidated.
	Active int `json:"active"`
}

// Observations flattens the event into per-agent output rows.
func (e *TickEvent) Observations() []domain.AgentObservation {
	out := make([]domain.AgentObservation, len(e.States))
	for id, s := range e.States {
		out[id] = domain.AgentObservation{
			Tick:       e.Tick,
			AgentID:    id,
			Position:   s.Position,
			Liquidated: s.Liquidated,
		}
	}
	return out
}
