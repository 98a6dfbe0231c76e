package kg

import (
	"fmt"
	"html/template"
	"io"
)

const (
	nodeColor = "#97c2fc"
	edgeColor = "#888888"
)

type visFont struct {
	Size  int    `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

type visNode struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Color string  `json:"color"`
	Shape string  `json:"shape"`
	Font  visFont `json:"font"`
}

type visEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Label  string `json:"label"`
	Arrows string `json:"arrows"`
	Color  string `json:"color"`
	Width  int    `json:"width"`
}

type legendEntry struct {
	Color string
	Label string
}

type page struct {
	Title      string
	Background string
	Legend     []legendEntry
	Nodes      []visNode
	Edges      []visEdge
}

var pageTmpl = template.Must(template.New("graph").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/vis-network/9.1.2/dist/dist/vis-network.min.css">
<script src="https://cdnjs.cloudflare.com/ajax/libs/vis-network/9.1.2/dist/vis-network.min.js"></script>
<style>
body { margin: 0; background-color: {{.Background}}; font-family: sans-serif; }
#graph { width: 100%; height: 800px; background-color: {{.Background}}; }
#legend { text-align: center; padding: 8px; }
</style>
</head>
<body>
{{- if .Legend}}
<h3 style="text-align:center;">{{.Title}}</h3>
<div id="legend">
{{- range .Legend}}
<span style="color:{{.Color}}">&#9679; {{.Label}}</span>&nbsp;
{{- end}}
</div>
{{- end}}
<div id="graph"></div>
<script>
var nodes = new vis.DataSet({{.Nodes}});
var edges = new vis.DataSet({{.Edges}});
var options = {
  physics: {
    enabled: true,
    barnesHut: { gravitationalConstant: -2000, centralGravity: 0.1, springLength: 200, springConstant: 0.04, damping: 0.09 }
  }
};
new vis.Network(document.getElementById("graph"), { nodes: nodes, edges: edges }, options);
</script>
</body>
</html>
`))

// RenderHTML writes g as a standalone interactive vis-network page on a dark
// background.
func RenderHTML(w io.Writer, g *Graph, title string) error {
	p := page{
		Title:      title,
		Background: "#222222",
		Nodes:      make([]visNode, 0, g.NodeCount()),
		Edges:      visEdges(g.edges),
	}
	for _, id := range g.nodes {
		p.Nodes = append(p.Nodes, visNode{
			ID:    id,
			Label: id,
			Color: nodeColor,
			Shape: "dot",
			Font:  visFont{Size: 14, Color: "#ffffff"},
		})
	}
	if err := pageTmpl.Execute(w, p); err != nil {
		return fmt.Errorf("render graph: %w", err)
	}
	return nil
}

// RenderComparisonHTML writes a comparison page with a colour legend naming
// the two inputs.
func RenderComparisonHTML(w io.Writer, c Comparison, firstName, secondName string) error {
	p := page{
		Title:      "Graph Comparison",
		Background: "white",
		Legend: []legendEntry{
			{Color: InBoth.Color(), Label: "In Both Graphs"},
			{Color: OnlyFirst.Color(), Label: firstName},
			{Color: OnlySecond.Color(), Label: secondName},
		},
		Nodes: make([]visNode, 0, len(c.Nodes)),
		Edges: visEdges(c.Edges),
	}
	for _, n := range c.Nodes {
		p.Nodes = append(p.Nodes, visNode{
			ID:    n.ID,
			Label: n.ID,
			Color: n.Membership.Color(),
			Shape: "dot",
		})
	}
	if err := pageTmpl.Execute(w, p); err != nil {
		return fmt.Errorf("render comparison: %w", err)
	}
	return nil
}

func visEdges(edges []Edge) []visEdge {
	out := make([]visEdge, 0, len(edges))
	for _, e := range edges {
		out = append(out, visEdge{
			From:   e.From,
			To:     e.To,
			Label:  e.Predicate,
			Arrows: "to",
			Color:  edgeColor,
			Width:  2,
		})
	}
	return out
}
