package event

import (
	"sync"

	"crypto_swarm/internal/domain"
)

// tickPool recycles TickEvents between ticks to keep the step loop allocation-free.
//
// Usage:
//
//	ev := AcquireTickEvent(n)
//	// ... fill and publish ...
//	ReleaseTickEvent(ev) // observers must not retain ev after returning
var tickPool = sync.Pool{
	New: func() interface{} {
		return &TickEvent{}
	},
}

// AcquireTickEvent gets a TickEvent whose States has length n.
func AcquireTickEvent(n int) *TickEvent {
	ev := tickPool.Get().(*TickEvent)
	if cap(ev.States) < n {
		ev.States = make([]domain.AgentState, n)
	}
	ev.States = ev.States[:n]
	return ev
}

// ReleaseTickEvent resets the event and returns it to the pool.
func ReleaseTickEvent(ev *TickEvent) {
	if ev == nil {
		return
	}
	ev.Tick = 0
	ev.Changed = 0
	ev.Liquidations = 0
	ev.Active = 0
	clear(ev.States)
	ev.States = ev.States[:0]

	tickPool.Put(ev)
}

// Clone returns a copy safe to retain after the event is released.
func (e *TickEvent) Clone() *TickEvent {
	c := *e
	c.States = append([]domain.AgentState(nil), e.States...)
	return &c
}
