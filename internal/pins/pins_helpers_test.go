package pins

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// source returns a plain node with n typed outputs.
func source(g *graph.Graph, typ string, n int) *graph.Node {
	spec := graph.NodeSpec{Type: "Source"}
	for i := 0; i < n; i++ {
		spec.Outputs = append(spec.Outputs, graph.PinSpec{Name: "out", Type: typ})
	}
	return g.Add(spec)
}

// sink returns a plain node with n typed inputs.
func sink(g *graph.Graph, typ string, n int) *graph.Node {
	spec := graph.NodeSpec{Type: "Sink"}
	for i := 0; i < n; i++ {
		spec.Inputs = append(spec.Inputs, graph.PinSpec{Name: "in", Type: typ})
	}
	return g.Add(spec)
}

// hub returns a plain node carrying one system pin per side.
func hub(g *graph.Graph) *graph.Node {
	return g.Add(graph.NodeSpec{
		Type:    "Hub",
		Inputs:  []graph.PinSpec{{Name: "_way_in", Type: "HIGHWAY_PIPE"}},
		Outputs: []graph.PinSpec{{Name: "_way_out", Type: "HIGHWAY_PIPE"}},
	})
}

func names(n *graph.Node, dir ir.Direction) []string {
	var out []string
	for _, p := range n.Pins(dir) {
		out = append(out, p.Name)
	}
	return out
}

func mustConnect(t *testing.T, g *graph.Graph, from graph.NodeID, fromSlot int, to graph.NodeID, toSlot int) *graph.Link {
	t.Helper()
	l, err := g.Connect(from, fromSlot, to, toSlot)
	require.NoError(t, err)
	return l
}
