package domain

import "fmt"

// Position is the directional stance of an agent.
type Position uint8

const (
	PositionNeutral Position = iota
	PositionBuy
	PositionSell
)

// String returns the string representation of Position
func (p Position) String() string {
	switch p {
	case PositionNeutral:
		return "NEUTRAL"
	case PositionBuy:
		return "BUY"
	case PositionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets positions serialize by name in JSON and YAML.
func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Profile is the closed set of behavioral archetypes.
type Profile uint8

const (
	ProfileMarketMaker Profile = iota
	ProfileDegen
	ProfileSwingTrader
)

// Profiles lists every profile in declaration order.
var Profiles = []Profile{ProfileMarketMaker, ProfileDegen, ProfileSwingTrader}

// String returns the string representation of Profile
func (p Profile) String() string {
	switch p {
	case ProfileMarketMaker:
		return "MarketMaker"
	case ProfileDegen:
		return "Degen"
	case ProfileSwingTrader:
		return "SwingTrader"
	default:
		return "Unknown"
	}
}

func (p Profile) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Profile) UnmarshalText(b []byte) error {
	parsed, err := ParseProfile(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseProfile accepts the canonical names and the spaced variants of the order log tooling.
func ParseProfile(s string) (Profile, error) {
	switch s {
	case "MarketMaker", "Market Maker", "market_maker":
		return ProfileMarketMaker, nil
	case "Degen", "degen":
		return ProfileDegen, nil
	case "SwingTrader", "Swing Trader", "swing_trader":
		return ProfileSwingTrader, nil
	}
	return 0, fmt.Errorf("unknown profile %q", s)
}

// AgentState is the mutable pair committed once per tick.
// Liquidated is absorbing: once true it never reverts.
type AgentState struct {
	Position   Position `json:"position"`
	Liquidated bool     `json:"liquidated"`
}

// AgentObservation is the per-agent, per-tick output of the core.
type AgentObservation struct {
	Tick       int64    `json:"tick"`
	AgentID    int      `json:"agent_id"`
	Position   Position `json:"position"`
	Liquidated bool     `json:"liquidated"`
}
