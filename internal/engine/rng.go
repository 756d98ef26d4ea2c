package engine

import (
	"math/rand/v2"
)

// streamSalt separates agent streams from the population stream.
const streamSalt = 0x9E3779B97F4A7C15

// AgentStream returns the independent random stream of one agent.
// Streams depend only on (seed, id), so compute order and parallelism never
// change what an agent draws.
func AgentStream(seed uint64, id int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, streamSalt^uint64(id+1)))
}

// PopulationStream drives profile and parameter draws at model creation.
func PopulationStream(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, streamSalt))
}
