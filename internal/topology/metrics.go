package topology

import (
	"github.com/nvandessel/acpsim/internal/models"
)

// Summary computes the counting statistics of g in O(n).
func (g *Graph) Summary() models.TopologyMetrics {
	n := g.NumNodes()
	m := models.TopologyMetrics{
		Type:  string(g.kind),
		Nodes: n,
		Edges: g.edgeCount,
		Hubs:  len(g.Hubs()),
	}
	if n == 0 {
		return m
	}
	m.MeanDegree = 2 * float64(g.edgeCount) / float64(n)
	if n > 1 {
		maxDeg := 0
		for i := 0; i < n; i++ {
			maxDeg = max(maxDeg, g.Degree(i))
		}
		m.Density = 2 * float64(g.edgeCount) / float64(n*(n-1))
		m.MaxDegreeCentrality = float64(maxDeg) / float64(n-1)
	}
	return m
}

// Metrics extends Summary with clustering, path and assortativity
// statistics. Path statistics are taken over the largest connected
// component, which costs a BFS per node.
func (g *Graph) Metrics() models.TopologyMetrics {
	m := g.Summary()
	if m.Nodes == 0 {
		return m
	}
	m.AverageClustering = g.averageClustering()
	m.AveragePathLength, m.Diameter = g.pathStats()
	m.Assortativity = g.degreeAssortativity()
	return m
}

// averageClustering is the mean local clustering coefficient; nodes with
// degree below two contribute zero.
func (g *Graph) averageClustering() float64 {
	n := g.NumNodes()
	total := 0.0
	for v := 0; v < n; v++ {
		nb := g.adj[v]
		k := len(nb)
		if k < 2 {
			continue
		}
		links := 0
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				if g.HasEdge(nb[i], nb[j]) {
					links++
				}
			}
		}
		total += 2 * float64(links) / float64(k*(k-1))
	}
	return total / float64(n)
}

// pathStats runs a BFS from every node of the largest component.
func (g *Graph) pathStats() (float64, int) {
	var largest []int
	for _, c := range g.Components() {
		if len(c) > len(largest) {
			largest = c
		}
	}
	if len(largest) < 2 {
		return 0, 0
	}

	dist := make([]int, g.NumNodes())
	queue := make([]int, 0, len(largest))
	sum, pairs, diameter := 0, 0, 0
	for _, src := range largest {
		for i := range dist {
			dist[i] = -1
		}
		dist[src] = 0
		queue = append(queue[:0], src)
		for i := 0; i < len(queue); i++ {
			u := queue[i]
			for _, v := range g.adj[u] {
				if dist[v] < 0 {
					dist[v] = dist[u] + 1
					sum += dist[v]
					pairs++
					diameter = max(diameter, dist[v])
					queue = append(queue, v)
				}
			}
		}
	}
	return float64(sum) / float64(pairs), diameter
}

// degreeAssortativity is the Pearson correlation of degrees across edge ends.
func (g *Graph) degreeAssortativity() float64 {
	var sx, sxx, sxy, cnt float64
	for u := range g.adj {
		du := float64(g.Degree(u))
		for _, v := range g.adj[u] {
			dv := float64(g.Degree(v))
			sx += du
			sxx += du * du
			sxy += du * dv
			cnt++
		}
	}
	if cnt == 0 {
		return 0
	}
	mean := sx / cnt
	variance := sxx/cnt - mean*mean
	if variance <= 1e-12 {
		return 0
	}
	return (sxy/cnt - mean*mean) / variance
}
