package kg

// Edge is a directed, labelled connection between two entities.
type Edge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Predicate string `json:"predicate"`
}

// Graph is a directed graph with at most one edge per ordered node pair.
// Adding a triplet whose pair already has an edge replaces that edge's
// predicate. Nodes and edges keep first-insertion order.
type Graph struct {
	nodes   []string
	nodeIdx map[string]int
	edges   []Edge
	edgeIdx map[[2]string]int
}

// NewGraph builds a graph from triplets in order.
func NewGraph(triplets []Triplet) *Graph {
	g := &Graph{
		nodeIdx: make(map[string]int),
		edgeIdx: make(map[[2]string]int),
	}
	for _, t := range triplets {
		g.Add(t)
	}
	return g
}

// Add inserts both endpoints of t and the edge between them.
func (g *Graph) Add(t Triplet) {
	g.addNode(t.Subject)
	g.addNode(t.Object)
	pair := [2]string{t.Subject, t.Object}
	if i, ok := g.edgeIdx[pair]; ok {
		g.edges[i].Predicate = t.Predicate
		return
	}
	g.edgeIdx[pair] = len(g.edges)
	g.edges = append(g.edges, Edge{From: t.Subject, To: t.Object, Predicate: t.Predicate})
}

func (g *Graph) addNode(id string) {
	if _, ok := g.nodeIdx[id]; ok {
		return
	}
	g.nodeIdx[id] = len(g.nodes)
	g.nodes = append(g.nodes, id)
}

func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodeIdx[id]
	return ok
}

// Nodes returns node IDs in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }
