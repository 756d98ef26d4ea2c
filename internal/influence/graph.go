package influence

import (
	"log/slog"
	"sort"
)

// Edge is a directed, weighted influence link.
type Edge struct {
	From   int
	To     int
	Weight int64
}

// BuildOptions controls how the matrix diagonal is turned into edges.
type BuildOptions struct {
	// SelfLoops keeps (i,i) edges carrying an account's own activity count.
	SelfLoops bool
}

// Topology is the immutable directed graph over accounts 0..N-1.
type Topology struct {
	nodes int
	out   [][]Edge // sorted by To
	// neighbors excludes self, ascending; used for herding.
	neighbors [][]int
	edges     int
	selfLoops bool
}

// Build turns a co-activity matrix into a Topology. Every index gets a node,
// isolated accounts included; (i,j) gets an edge iff M(i,j) != 0.
func Build(m *Matrix, opts BuildOptions) *Topology {
	n := m.Size()
	t := &Topology{
		nodes:     n,
		out:       make([][]Edge, n),
		neighbors: make([][]int, n),
		selfLoops: opts.SelfLoops,
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			w := m.At(i, j)
			if w == 0 {
				continue
			}
			if i == j {
				if !opts.SelfLoops {
					continue
				}
			} else {
				t.neighbors[i] = append(t.neighbors[i], j)
			}
			t.out[i] = append(t.out[i], Edge{From: i, To: j, Weight: w})
			t.edges++
		}
	}

	slog.Debug("Topology built",
		slog.Int("nodes", n),
		slog.Int("edges", t.edges),
		slog.Bool("self_loops", opts.SelfLoops))

	return t
}

// NewTopology builds a graph directly from edges, for synthetic populations.
// Edges with non-positive weight or out-of-range endpoints are ignored.
func NewTopology(nodes int, edges []Edge, opts BuildOptions) *Topology {
	m := NewMatrix(nodes)
	for _, e := range edges {
		if e.Weight <= 0 || e.From < 0 || e.To < 0 || e.From >= nodes || e.To >= nodes {
			continue
		}
		m.data[e.From*nodes+e.To] = e.Weight
	}
	return Build(m, opts)
}

// NodeCount returns N.
func (t *Topology) NodeCount() int { return t.nodes }

// EdgeCount returns the number of directed edges.
func (t *Topology) EdgeCount() int { return t.edges }

// SelfLoops reports whether diagonal edges were kept.
func (t *Topology) SelfLoops() bool { return t.selfLoops }

// Neighbors returns the successors of node i, excluding i itself, in ascending order.
// The returned slice must not be modified.
func (t *Topology) Neighbors(i int) []int {
	if i < 0 || i >= t.nodes {
		return nil
	}
	return t.neighbors[i]
}

// OutEdges returns the outgoing edges of node i, self-loop included when enabled.
func (t *Topology) OutEdges(i int) []Edge {
	if i < 0 || i >= t.nodes {
		return nil
	}
	return t.out[i]
}

// Weight returns the weight of edge (i,j) and whether it exists.
func (t *Topology) Weight(i, j int) (int64, bool) {
	out := t.OutEdges(i)
	k := sort.Search(len(out), func(k int) bool { return out[k].To >= j })
	if k < len(out) && out[k].To == j {
		return out[k].Weight, true
	}
	return 0, false
}

// Edges returns all edges ordered by (From, To).
func (t *Topology) Edges() []Edge {
	all := make([]Edge, 0, t.edges)
	for _, out := range t.out {
		all = append(all, out...)
	}
	return all
}
