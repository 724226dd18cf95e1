package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/testutil"
)

type fixture struct {
	t        *testing.T
	e        *Engine
	g        *graph.Graph
	parser   *testutil.StubParser
	notifier *RecordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := testutil.NewStubParser()
	rn := &RecordingNotifier{}
	e := New(p, WithRandom(testutil.NewCountingReader()), WithNotifier(rn))
	return &fixture{t: t, e: e, g: e.Graph(), parser: p, notifier: rn}
}

func (f *fixture) create(nodeType string) *graph.Node {
	f.t.Helper()
	n, err := f.g.Create(nodeType)
	require.NoError(f.t, err)
	return n
}

// source adds a plain node with one output per type.
func (f *fixture) source(types ...string) *graph.Node {
	spec := graph.NodeSpec{Type: "Source"}
	for _, typ := range types {
		spec.Outputs = append(spec.Outputs, graph.PinSpec{Name: typ, Type: typ})
	}
	return f.g.Add(spec)
}

// sink adds a plain node with one input per type.
func (f *fixture) sink(types ...string) *graph.Node {
	spec := graph.NodeSpec{Type: "Sink"}
	for _, typ := range types {
		spec.Inputs = append(spec.Inputs, graph.PinSpec{Name: typ, Type: typ})
	}
	return f.g.Add(spec)
}

func (f *fixture) connect(from *graph.Node, fromSlot int, to *graph.Node, toSlot int) *graph.Link {
	f.t.Helper()
	l, err := f.e.Connect(ConnectRequest{OriginID: from.ID, OriginSlot: fromSlot, TargetID: to.ID, TargetSlot: toSlot})
	require.NoError(f.t, err)
	return l
}

func (f *fixture) disconnect(l *graph.Link) {
	f.t.Helper()
	require.NoError(f.t, f.e.Disconnect(l.ID))
}

// highway creates a Highway and applies schema to it.
func (f *fixture) highway(query string, schema ...ir.SchemaEntry) *graph.Node {
	f.t.Helper()
	n := f.create(TypeHighway)
	f.parser.On(query, schema...)
	res, err := f.e.UpdateNow(context.Background(), n.ID, &query)
	require.NoError(f.t, err)
	require.Equal(f.t, UpdateApplied, res.Status)
	return n
}

func pinNames(n *graph.Node, dir ir.Direction) []string {
	var out []string
	for _, p := range n.Pins(dir) {
		out = append(out, p.Name)
	}
	return out
}

type pinState struct {
	Name, OrigName, Type string
	Link                 graph.LinkID
	Links                []graph.LinkID
}

func pinStates(n *graph.Node) []pinState {
	var out []pinState
	for _, dir := range []ir.Direction{ir.DirectionInput, ir.DirectionOutput} {
		for _, p := range n.Pins(dir) {
			out = append(out, pinState{
				Name: p.Name, OrigName: p.OrigName, Type: p.Type,
				Link: p.Link, Links: append([]graph.LinkID(nil), p.Links...),
			})
		}
	}
	return out
}
