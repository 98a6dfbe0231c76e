package kg

import "sort"

// Membership says which of two compared graphs contain a node.
type Membership string

const (
	InBoth     Membership = "in_both"
	OnlyFirst  Membership = "only_first"
	OnlySecond Membership = "only_second"
)

// Color is the node colour used when rendering a comparison.
func (m Membership) Color() string {
	switch m {
	case InBoth:
		return "#00aa00"
	case OnlyFirst:
		return "#1f77ff"
	default:
		return "#FF7F50"
	}
}

type ComparedNode struct {
	ID         string     `json:"id"`
	Membership Membership `json:"membership"`
}

// Comparison is the union of two graphs with per-node membership.
type Comparison struct {
	Nodes []ComparedNode `json:"nodes"`
	Edges []Edge         `json:"edges"`
}

// Count returns the number of nodes with membership m.
func (c Comparison) Count(m Membership) int {
	n := 0
	for _, node := range c.Nodes {
		if node.Membership == m {
			n++
		}
	}
	return n
}

// Compare merges a and b. Nodes are sorted by ID. Edges from a come first,
// then edges from b, with exact (from, to, predicate) duplicates removed.
func Compare(a, b *Graph) Comparison {
	ids := make(map[string]struct{}, a.NodeCount()+b.NodeCount())
	for _, n := range a.nodes {
		ids[n] = struct{}{}
	}
	for _, n := range b.nodes {
		ids[n] = struct{}{}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	var c Comparison
	for _, id := range sorted {
		inA, inB := a.HasNode(id), b.HasNode(id)
		m := OnlySecond
		switch {
		case inA && inB:
			m = InBoth
		case inA:
			m = OnlyFirst
		}
		c.Nodes = append(c.Nodes, ComparedNode{ID: id, Membership: m})
	}

	seen := make(map[Edge]struct{})
	for _, e := range append(a.Edges(), b.Edges()...) {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		c.Edges = append(c.Edges, e)
	}
	return c
}
