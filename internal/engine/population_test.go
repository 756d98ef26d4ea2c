package engine

import (
	"errors"
	"math"
	"testing"

	"crypto_swarm/internal/domain"
)

func TestDrawPopulation_Ranges(t *testing.T) {
	policy := DefaultPopulationPolicy()
	specs, err := DrawPopulation(2000, policy, nil, PopulationStream(42))
	if err != nil {
		t.Fatalf("DrawPopulation failed: %v", err)
	}

	counts := map[domain.Profile]int{}
	for i, s := range specs {
		counts[s.Profile]++
		if s.HerdingProb < policy.HerdingMin || s.HerdingProb > policy.HerdingMax {
			t.Errorf("node %d: herding %v out of range", i, s.HerdingProb)
		}
		if s.Profile == domain.ProfileDegen {
			if s.Leverage < policy.DegenLeverMin || s.Leverage > policy.DegenLeverMax {
				t.Errorf("node %d: degen leverage %v out of range", i, s.Leverage)
			}
		} else if s.Leverage != policy.DefaultLeverage {
			t.Errorf("node %d: expected leverage %v for %s, got %v", i, policy.DefaultLeverage, s.Profile, s.Leverage)
		}
	}
	for _, p := range domain.Profiles {
		if math.Abs(float64(counts[p])/2000-1.0/3) > 0.05 {
			t.Errorf("Expected about a third %s, got %d", p, counts[p])
		}
	}
}

func TestDrawPopulation_Deterministic(t *testing.T) {
	a, _ := DrawPopulation(50, DefaultPopulationPolicy(), nil, PopulationStream(9))
	b, _ := DrawPopulation(50, DefaultPopulationPolicy(), nil, PopulationStream(9))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("node %d: %+v != %+v", i, a[i], b[i])
		}
	}
}

func TestWeightedAssignment(t *testing.T) {
	t.Run("single profile", func(t *testing.T) {
		w, err := NewWeightedAssignment(map[domain.Profile]float64{
			domain.ProfileDegen:       1,
			domain.ProfileMarketMaker: 0,
		})
		if err != nil {
			t.Fatalf("NewWeightedAssignment failed: %v", err)
		}
		rng := PopulationStream(1)
		for i := 0; i < 100; i++ {
			if p, _ := w.Assign(i, rng); p != domain.ProfileDegen {
				t.Fatalf("Expected Degen, got %s", p)
			}
		}
	})

	t.Run("boundaries", func(t *testing.T) {
		w, _ := NewWeightedAssignment(map[domain.Profile]float64{
			domain.ProfileMarketMaker: 1,
			domain.ProfileSwingTrader: 3,
		})
		if p, _ := w.Assign(0, script(t, 0.1)); p != domain.ProfileMarketMaker {
			t.Errorf("Expected Market Maker below 0.25, got %s", p)
		}
		if p, _ := w.Assign(0, script(t, 0.25)); p != domain.ProfileSwingTrader {
			t.Errorf("Expected Swing Trader at 0.25, got %s", p)
		}
		if p, _ := w.Assign(0, script(t, 0.999)); p != domain.ProfileSwingTrader {
			t.Errorf("Expected Swing Trader near 1, got %s", p)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := NewWeightedAssignment(map[domain.Profile]float64{domain.ProfileDegen: -1}); err == nil {
			t.Error("Expected error for negative weight")
		}
		_, err := NewWeightedAssignment(map[domain.Profile]float64{domain.ProfileDegen: 0})
		if !errors.Is(err, domain.ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig for all-zero weights, got %v", err)
		}
	})
}

func TestFixedAssignment(t *testing.T) {
	assign := FixedAssignment{0: domain.ProfileSwingTrader, 1: domain.ProfileDegen}

	specs, err := DrawPopulation(2, DefaultPopulationPolicy(), assign, PopulationStream(1))
	if err != nil {
		t.Fatalf("DrawPopulation failed: %v", err)
	}
	if specs[0].Profile != domain.ProfileSwingTrader || specs[1].Profile != domain.ProfileDegen {
		t.Errorf("Unexpected profiles: %s, %s", specs[0].Profile, specs[1].Profile)
	}

	if _, err := DrawPopulation(3, DefaultPopulationPolicy(), assign, PopulationStream(1)); err == nil {
		t.Error("Expected error for unassigned node")
	}
}

func TestPopulationPolicy_Validate(t *testing.T) {
	p := DefaultPopulationPolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("Default policy should be valid: %v", err)
	}
	p.HerdingMin, p.HerdingMax = 0.9, 0.1
	if err := p.Validate(); err == nil {
		t.Error("Expected error for inverted herding range")
	}
}
