package engine

import (
	"fmt"
	"sort"

	"crypto_swarm/internal/domain"
	"crypto_swarm/internal/strategy"
)

// ProfileAssigner chooses the profile of the agent placed on a node.
type ProfileAssigner interface {
	Assign(node int, rng strategy.Rand) (domain.Profile, error)
}

// UniformAssignment picks each profile with equal odds.
type UniformAssignment struct{}

func (UniformAssignment) Assign(_ int, rng strategy.Rand) (domain.Profile, error) {
	i := int(rng.Float64() * float64(len(domain.Profiles)))
	if i >= len(domain.Profiles) {
		i = len(domain.Profiles) - 1
	}
	return domain.Profiles[i], nil
}

// WeightedAssignment picks profiles proportionally to their weights.
type WeightedAssignment struct {
	profiles []domain.Profile
	cum      []float64
}

// NewWeightedAssignment drops zero weights and rejects negative or all-zero sets.
func NewWeightedAssignment(weights map[domain.Profile]float64) (*WeightedAssignment, error) {
	w := &WeightedAssignment{}
	keys := make([]domain.Profile, 0, len(weights))
	for p := range weights {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var total float64
	for _, p := range keys {
		v := weights[p]
		if v < 0 {
			return nil, domain.NewConfigError("profile_weights", "negative weight for %s", p)
		}
		if v == 0 {
			continue
		}
		total += v
		w.profiles = append(w.profiles, p)
		w.cum = append(w.cum, total)
	}
	if total == 0 {
		return nil, domain.NewConfigError("profile_weights", "at least one weight must be positive")
	}
	for i := range w.cum {
		w.cum[i] /= total
	}
	return w, nil
}

func (w *WeightedAssignment) Assign(_ int, rng strategy.Rand) (domain.Profile, error) {
	r := rng.Float64()
	i := sort.SearchFloat64s(w.cum, r)
	for i < len(w.cum) && w.cum[i] == r {
		i++
	}
	if i >= len(w.profiles) {
		i = len(w.profiles) - 1
	}
	return w.profiles[i], nil
}

// FixedAssignment maps every node to a given profile.
type FixedAssignment map[int]domain.Profile

func (f FixedAssignment) Assign(node int, _ strategy.Rand) (domain.Profile, error) {
	p, ok := f[node]
	if !ok {
		return 0, domain.NewConfigError("profiles", "no profile assigned to node %d", node)
	}
	return p, nil
}

// PopulationPolicy holds the trait ranges drawn per agent.
type PopulationPolicy struct {
	HerdingMin      float64
	HerdingMax      float64
	DegenLeverMin   float64
	DegenLeverMax   float64
	DefaultLeverage float64
}

// DefaultPopulationPolicy: herding U[0.1,0.9]; Degen leverage U[0.2,0.8]; others 0.1.
func DefaultPopulationPolicy() PopulationPolicy {
	return PopulationPolicy{
		HerdingMin:      0.1,
		HerdingMax:      0.9,
		DegenLeverMin:   0.2,
		DegenLeverMax:   0.8,
		DefaultLeverage: 0.1,
	}
}

// Validate checks the ranges are ordered and inside [0,1].
func (p PopulationPolicy) Validate() error {
	check := func(field string, lo, hi float64) error {
		if lo < 0 || hi > 1 || lo > hi {
			return domain.NewConfigError(field, "range [%v,%v] must satisfy 0 <= min <= max <= 1", lo, hi)
		}
		return nil
	}
	if err := check("herding", p.HerdingMin, p.HerdingMax); err != nil {
		return err
	}
	if err := check("degen_leverage", p.DegenLeverMin, p.DegenLeverMax); err != nil {
		return err
	}
	return check("default_leverage", p.DefaultLeverage, p.DefaultLeverage)
}

// Draw produces the traits of the agent on node. Draw order: profile, herding, leverage (Degen only).
func (p PopulationPolicy) Draw(node int, assign ProfileAssigner, rng strategy.Rand) (TraderSpec, error) {
	profile, err := assign.Assign(node, rng)
	if err != nil {
		return TraderSpec{}, err
	}
	spec := TraderSpec{
		Profile:     profile,
		HerdingProb: uniform(rng, p.HerdingMin, p.HerdingMax),
		Leverage:    p.DefaultLeverage,
	}
	if profile == domain.ProfileDegen {
		spec.Leverage = uniform(rng, p.DegenLeverMin, p.DegenLeverMax)
	}
	return spec, nil
}

func uniform(rng strategy.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

// DrawPopulation draws one spec per node.
func DrawPopulation(nodes int, policy PopulationPolicy, assign ProfileAssigner, rng strategy.Rand) ([]TraderSpec, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if assign == nil {
		assign = UniformAssignment{}
	}
	specs := make([]TraderSpec, nodes)
	for i := range specs {
		spec, err := policy.Draw(i, assign, rng)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		specs[i] = spec
	}
	return specs, nil
}
