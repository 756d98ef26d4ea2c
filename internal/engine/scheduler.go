package engine

import (
	"sync"

	"crypto_swarm/internal/domain"
	"crypto_swarm/internal/influence"
)

// StepResult summarizes one committed tick.
type StepResult struct {
	Changed      int
	Liquidations int
	Active       int
}

// Scheduler advances every trader by one tick with a two-phase protocol:
//  1. snapshot all committed states, then let each trader decide its next
//     state from that frozen snapshot (no shared writes);
//  2. commit every decision before the next tick starts.
//
// Phase 1 may run on several goroutines. Each trader draws from its own
// stream and writes only its own slot, so the outcome is identical to a
// sequential run.
type Scheduler struct {
	workers  int
	snapshot []domain.AgentState
	next     []domain.AgentState
}

// NewScheduler returns a scheduler. workers <= 1 runs phase 1 sequentially.
func NewScheduler(workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{workers: workers}
}

// Workers returns the phase-1 parallelism.
func (s *Scheduler) Workers() int { return s.workers }

// Step runs one tick over traders placed on topo. traders[i] sits on node i.
func (s *Scheduler) Step(traders []*Trader, topo *influence.Topology) StepResult {
	n := len(traders)
	if topo.NodeCount() != n {
		panic(&domain.InvariantError{
			Op:     "scheduler.step",
			Detail: "population size differs from topology node count",
		})
	}
	s.snapshot = resize(s.snapshot, n)
	s.next = resize(s.next, n)

	for i, t := range traders {
		s.snapshot[i] = t.state
	}

	// Phase 1: compute.
	if s.workers == 1 || n < 2*s.workers {
		for i, t := range traders {
			s.next[i] = t.Decide(s.snapshot, topo.Neighbors(i))
		}
	} else {
		var wg sync.WaitGroup
		chunk := (n + s.workers - 1) / s.workers
		for lo := 0; lo < n; lo += chunk {
			hi := min(lo+chunk, n)
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					s.next[i] = traders[i].Decide(s.snapshot, topo.Neighbors(i))
				}
			}(lo, hi)
		}
		wg.Wait()
	}

	// Phase 2: commit.
	var res StepResult
	for i, t := range traders {
		prev := s.snapshot[i]
		next := s.next[i]
		if next != prev {
			res.Changed++
		}
		if next.Liquidated && !prev.Liquidated {
			res.Liquidations++
		}
		if !next.Liquidated {
			res.Active++
		}
		t.commit(next)
	}
	return res
}

func resize(buf []domain.AgentState, n int) []domain.AgentState {
	if cap(buf) < n {
		return make([]domain.AgentState, n)
	}
	return buf[:n]
}
