package domain

import (
	"time"
)

// SimulationRun records the parameters of one simulation run.
type SimulationRun struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Seed      uint64    `json:"seed"`
	Agents    int       `json:"agents"`
	Edges     int       `json:"edges"`
	Ticks     int64     `json:"ticks"`
	SelfLoops bool      `json:"self_loops"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AgentTick is one committed agent state, keyed by run, tick and agent.
type AgentTick struct {
	RunID      uint   `gorm:"primaryKey;autoIncrement:false" json:"run_id"`
	Tick       int64  `gorm:"primaryKey;autoIncrement:false" json:"tick"`
	AgentID    int    `gorm:"primaryKey;autoIncrement:false" json:"agent_id"`
	Profile    string `json:"profile"`
	Position   string `json:"position" gorm:"index"`
	Liquidated bool   `json:"liquidated" gorm:"index"`
}
