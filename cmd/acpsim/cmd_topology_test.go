package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/visualization"
)

func TestTopologyCmd(t *testing.T) {
	home := isolateHome(t)

	text, err := execute(t, "topology", "--set", "num_nodes=20", "--set", "topology_type=hub_spoke", "--seed", "4")
	if err != nil {
		t.Fatalf("topology: %v", err)
	}
	if !strings.Contains(text, "Topology hub_spoke (seed 4)") || !strings.Contains(text, "nodes:                 20") {
		t.Errorf("metrics text:\n%s", text)
	}

	out, err := execute(t, "topology", "--json", "--set", "num_nodes=20", "--seed", "4", "--episode", "3")
	if err != nil {
		t.Fatalf("topology --json: %v", err)
	}
	var summary struct {
		Seed    int64                  `json:"seed"`
		Metrics models.TopologyMetrics `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if summary.Seed != 7 || summary.Metrics.Nodes != 20 {
		t.Errorf("summary = %+v, want seed 7 and 20 nodes", summary)
	}

	out, err = execute(t, "topology", "--json", "--set", "num_nodes=20", "--seed", "4", "--episode", "3", "--fixed-topology")
	if err != nil {
		t.Fatalf("topology --fixed-topology: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if summary.Seed != 4 {
		t.Errorf("fixed topology seed = %d, want base seed 4", summary.Seed)
	}

	out, err = execute(t, "topology", "--set", "num_nodes=20", "--format", "json")
	if err != nil {
		t.Fatalf("topology --format json: %v", err)
	}
	var graph visualization.Graph
	if err := json.Unmarshal([]byte(out), &graph); err != nil {
		t.Fatalf("invalid graph JSON: %v", err)
	}
	if len(graph.Nodes) != 20 || len(graph.Edges) != graph.Metrics.Edges {
		t.Errorf("graph has %d nodes and %d edges (metrics say %d)", len(graph.Nodes), len(graph.Edges), graph.Metrics.Edges)
	}

	dotPath := filepath.Join(home, "net.dot")
	if _, err := execute(t, "topology", "--set", "num_nodes=20", "--format", "dot", "--out", dotPath); err != nil {
		t.Fatalf("topology --format dot: %v", err)
	}
	data, err := os.ReadFile(dotPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "graph ") {
		t.Errorf("DOT file starts with %q", strings.SplitN(string(data), "\n", 2)[0])
	}

	if _, err := execute(t, "topology", "--format", "svg"); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := execute(t, "topology", "--episode", "-1"); err == nil {
		t.Error("expected error for negative episode")
	}
}
