// Package visualization renders simulated network topologies for inspection.
package visualization

import (
	"fmt"
	"strings"

	"github.com/nvandessel/acpsim/internal/environment"
	"github.com/nvandessel/acpsim/internal/topology"
)

// Format specifies the output format for topology rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat accepts "dot" or "json".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatDOT:
		return FormatDOT, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (want dot or json)", s)
}

// vulnerabilityColors bands node vulnerability from low to high.
var vulnerabilityColors = []string{"palegreen", "khaki", "orange", "tomato"}

// VulnerabilityColor returns the DOT fill color for a vulnerability in [0, 1].
func VulnerabilityColor(v float64) string {
	idx := int(v * float64(len(vulnerabilityColors)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(vulnerabilityColors) {
		idx = len(vulnerabilityColors) - 1
	}
	return vulnerabilityColors[idx]
}

// RenderDOT produces a Graphviz DOT representation of the topology. Hubs are
// drawn as double circles; hierarchical graphs are ranked by level.
func RenderDOT(t *environment.Topology) string {
	g := t.Graph
	levels := groupByLevel(g)
	layout := "neato"
	if len(levels) > 0 {
		layout = "dot"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "graph %q {\n", string(g.Type()))
	fmt.Fprintf(&b, "  layout=%s;\n  overlap=false;\n", layout)
	b.WriteString("  node [shape=circle, style=filled, fontname=\"Helvetica\", fontsize=10];\n\n")

	for id := 0; id < g.NumNodes(); id++ {
		shape := "circle"
		if g.IsHub(id) {
			shape = "doublecircle"
		}
		v := vulnerabilityOf(t, id)
		fmt.Fprintf(&b, "  n%d [label=\"%d\", shape=%s, fillcolor=%q, tooltip=\"vulnerability=%.2f degree=%d\"];\n",
			id, id, shape, VulnerabilityColor(v), v, g.Degree(id))
	}
	b.WriteString("\n")

	if len(levels) > 0 {
		for _, ids := range levels {
			b.WriteString("  { rank=same;")
			for _, id := range ids {
				fmt.Fprintf(&b, " n%d;", id)
			}
			b.WriteString(" }\n")
		}
		b.WriteString("\n")
	}

	for u := 0; u < g.NumNodes(); u++ {
		for _, v := range g.Neighbors(u) {
			if u < v {
				fmt.Fprintf(&b, "  n%d -- n%d;\n", u, v)
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func vulnerabilityOf(t *environment.Topology, id int) float64 {
	if id < len(t.Vulnerability) {
		return t.Vulnerability[id]
	}
	return 0
}

// groupByLevel returns node ids per level, or nil when the generator assigned
// no levels.
func groupByLevel(g *topology.Graph) [][]int {
	maxLevel := g.MaxLevel()
	if maxLevel < 0 {
		return nil
	}
	levels := make([][]int, maxLevel+1)
	for id := 0; id < g.NumNodes(); id++ {
		if l := g.Level(id); l >= 0 {
			levels[l] = append(levels[l], id)
		}
	}
	return levels
}
