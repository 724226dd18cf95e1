package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/testutil"
)

func TestHighway_Created(t *testing.T) {
	f := newFixture(t)
	n := f.create(TypeHighway)

	assert.Equal(t, []string{"_way_in"}, pinNames(n, ir.DirectionInput))
	assert.Equal(t, []string{"_way_out"}, pinNames(n, ir.DirectionOutput))
	require.NotNil(t, n.Widget(WidgetQuery))
	require.NotNil(t, n.Widget(WidgetType))
	assert.True(t, n.Widget(WidgetType).ReadOnly)
}

func TestHighway_UpdateBuildsPinsInSchemaOrder(t *testing.T) {
	f := newFixture(t)
	n := f.highway("q", testutil.Set("a"), testutil.Get("b"), testutil.Set("c"), testutil.Eat("d"))

	assert.Equal(t, []string{"_way_in", "+a", "+c"}, pinNames(n, ir.DirectionInput))
	assert.Equal(t, []string{"_way_out", "-b", "!d"}, pinNames(n, ir.DirectionOutput))
	for _, p := range append(n.Inputs[1:], n.Outputs[1:]...) {
		assert.Equal(t, p.Name, p.OrigName)
		assert.Equal(t, ir.Wildcard, p.Type)
	}
	_, h, err := f.e.Highway(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "q", h.Accepted())
}

// Reconciliation round trip: surviving pins are rewired to their old
// endpoints and re-typed; a pin dropped from the schema loses its wire
// without an error.
func TestHighway_ReconciliationRoundTrip(t *testing.T) {
	f := newFixture(t)
	n := f.highway("v1", testutil.Set("A"), testutil.Set("B"))
	x := f.source("INT")
	y := f.source("IMAGE", "MASK", "FLOAT")
	f.connect(x, 0, n, 1)
	f.connect(y, 2, n, 2)
	require.Equal(t, []string{"_way_in", "+A:INT", "+B:FLOAT"}, pinNames(n, ir.DirectionInput))

	f.parser.On("v2", testutil.Set("B"), testutil.Get("out"), testutil.Set("A"))
	q := "v2"
	res, err := f.e.UpdateNow(context.Background(), n.ID, &q)
	require.NoError(t, err)
	assert.Equal(t, &ReconcileReport{Inputs: 2, Outputs: 1, Restored: 2}, res.Report)

	assert.Equal(t, []string{"_way_in", "+B:FLOAT", "+A:INT"}, pinNames(n, ir.DirectionInput))
	lb, err := f.g.Link(n.Inputs[1].Link)
	require.NoError(t, err)
	assert.Equal(t, y.ID, lb.OriginID)
	assert.Equal(t, 2, lb.OriginSlot)
	la, err := f.g.Link(n.Inputs[2].Link)
	require.NoError(t, err)
	assert.Equal(t, x.ID, la.OriginID)
	assert.Equal(t, 0, la.OriginSlot)

	f.parser.On("v3", testutil.Set("A"))
	q = "v3"
	res, err = f.e.UpdateNow(context.Background(), n.ID, &q)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Restored)
	assert.Equal(t, 1, res.Report.Dropped)
	assert.Equal(t, []string{"_way_in", "+A:INT"}, pinNames(n, ir.DirectionInput))
	assert.Empty(t, y.Outputs[2].Links)
	assert.Empty(t, f.notifier.Notices)
}

func TestHighway_RestoresOutputFanOut(t *testing.T) {
	f := newFixture(t)
	n := f.highway("v1", testutil.Get("img"))
	s := f.sink("IMAGE", "IMAGE")
	f.connect(n, 1, s, 0)
	f.connect(n, 1, s, 1)

	f.parser.On("v2", testutil.Set("seed"), testutil.Get("img"))
	q := "v2"
	res, err := f.e.UpdateNow(context.Background(), n.ID, &q)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Report.Restored)
	assert.Equal(t, "IMAGE:-img", n.Outputs[1].Name)
	assert.Len(t, n.Outputs[1].Links, 2)
}

// A rejected query leaves every pin exactly as it was.
func TestHighway_ValidationRejectionIsNoOp(t *testing.T) {
	f := newFixture(t)
	n := f.highway("good", testutil.Set("a"), testutil.Get("b"))
	src := f.source("INT")
	f.connect(src, 0, n, 1)
	before := pinStates(n)
	links := len(f.g.Links())

	f.parser.Reject("bad", "line 1: unexpected token", "line 2: unknown variable")
	q := "bad"
	res, err := f.e.UpdateNow(context.Background(), n.ID, &q)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, UpdateRejected, res.Status)
	assert.Equal(t, []string{"line 1: unexpected token", "line 2: unknown variable"}, res.Errors)

	assert.Equal(t, before, pinStates(n))
	assert.Len(t, f.g.Links(), links)
	assert.Equal(t, "good", n.Widget(WidgetQuery).Value)
	require.Len(t, f.notifier.Notices, 1)
	assert.Equal(t, res.Errors, f.notifier.Notices[0].Messages)
}

func TestHighway_TransportFailureIsNoOp(t *testing.T) {
	f := newFixture(t)
	n := f.highway("good", testutil.Set("a"))
	before := pinStates(n)

	f.parser.Err = errors.New("connection refused")
	q := "other"
	res, err := f.e.UpdateNow(context.Background(), n.ID, &q)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.False(t, IsValidationError(err))
	assert.Equal(t, UpdateFailed, res.Status)
	assert.Equal(t, before, pinStates(n))
	assert.Equal(t, "good", n.Widget(WidgetQuery).Value)
	require.Len(t, f.notifier.Notices, 1)
}

func TestHighway_UnknownSchemaKindIsRejected(t *testing.T) {
	f := newFixture(t)
	n := f.highway("good", testutil.Set("a"))
	before := pinStates(n)

	f.parser.On("weird", testutil.Set("x"), ir.SchemaEntry{Kind: "put", Name: "y"})
	q := "weird"
	_, err := f.e.UpdateNow(context.Background(), n.ID, &q)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, before, pinStates(n))
}

func TestHighway_StaleResponseIsIgnored(t *testing.T) {
	f := newFixture(t)
	n, h, err := f.e.Highway(f.create(TypeHighway).ID)
	require.NoError(t, err)

	n.Widget(WidgetQuery).Value = "first"
	first := h.BeginUpdate(n)
	n.Widget(WidgetQuery).Value = "second"
	second := h.BeginUpdate(n)
	assert.Equal(t, first.Generation+1, second.Generation)

	res, err := h.CompleteUpdate(n, first, &ir.ParseResponse{Order: ir.Schema{testutil.Set("old")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, UpdateStale, res.Status)
	assert.Equal(t, []string{"_way_in"}, pinNames(n, ir.DirectionInput))

	res, err = h.CompleteUpdate(n, second, &ir.ParseResponse{Order: ir.Schema{testutil.Set("new")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, UpdateApplied, res.Status)
	assert.Equal(t, []string{"_way_in", "+new"}, pinNames(n, ir.DirectionInput))
	assert.Equal(t, "second", h.Accepted())
}

func TestHighway_NilResponseIsTransportFailure(t *testing.T) {
	f := newFixture(t)
	n, h, err := f.e.Highway(f.create(TypeHighway).ID)
	require.NoError(t, err)
	_, err = h.CompleteUpdate(n, h.BeginUpdate(n), nil, nil)
	assert.True(t, IsTransportError(err))
}

func TestHighway_ConnectTypesAndDisconnectResets(t *testing.T) {
	f := newFixture(t)
	n := f.highway("q", testutil.Set("seed"), testutil.Get("latent"))
	src := f.source("INT")
	dst := f.sink("LATENT")

	in := f.connect(src, 0, n, 1)
	out := f.connect(n, 1, dst, 0)
	assert.Equal(t, "+seed:INT", n.Inputs[1].Name)
	assert.Equal(t, "INT", n.Inputs[1].Type)
	assert.Equal(t, "LATENT:-latent", n.Outputs[1].Name)

	f.disconnect(in)
	f.disconnect(out)
	assert.Equal(t, "+seed", n.Inputs[1].Name)
	assert.Equal(t, ir.Wildcard, n.Inputs[1].Type)
	assert.Equal(t, "-latent", n.Outputs[1].Name)
	assert.Equal(t, ir.Wildcard, n.Outputs[1].Type)
}

// An output with two consumers keeps its type until the last one goes.
func TestHighway_OutputFanOutRetention(t *testing.T) {
	f := newFixture(t)
	n := f.highway("q", testutil.Get("img"))
	s := f.sink("IMAGE", "IMAGE")
	l1 := f.connect(n, 1, s, 0)
	l2 := f.connect(n, 1, s, 1)

	f.disconnect(l1)
	assert.Equal(t, "IMAGE:-img", n.Outputs[1].Name)
	assert.Equal(t, "IMAGE", n.Outputs[1].Type)

	f.disconnect(l2)
	assert.Equal(t, "-img", n.Outputs[1].Name)
	assert.Equal(t, ir.Wildcard, n.Outputs[1].Type)
}

// Replacing the wire on an input does not run the input's reset.
func TestHighway_ReplaceDoesNotReset(t *testing.T) {
	var renames []string
	p := testutil.NewStubParser()
	e := New(p, WithRandom(testutil.NewCountingReader()), WithRenameObserver(func(_ *graph.Node, _ ir.Direction, _ int, from, to string) {
		renames = append(renames, from+"->"+to)
	}))
	f := &fixture{t: t, e: e, g: e.Graph(), parser: p, notifier: &RecordingNotifier{}}
	n := f.highway("q", testutil.Set("a"))
	x := f.source("INT")
	y := f.source("INT")

	old := f.connect(x, 0, n, 1)
	renames = nil
	l := f.connect(y, 0, n, 1)

	assert.True(t, old.Replaced)
	assert.Equal(t, "+a:INT", n.Inputs[1].Name)
	assert.Equal(t, "INT", n.Inputs[1].Type)
	assert.Equal(t, l.ID, n.Inputs[1].Link)
	assert.Empty(t, renames, "no reset and no re-annotation on replace")
}

// No event sequence moves, renames, or retypes a system pin.
func TestHighway_SystemPinImmunity(t *testing.T) {
	f := newFixture(t)
	up := f.highway("q1", testutil.Get("x"))
	n := f.highway("q2", testutil.Set("a"))
	before := []pinState{pinStates(n)[0]}

	l := f.connect(up, 0, n, 0)
	require.NoError(t, n.Behavior().OnConnectionsChange(n, graph.ConnectionEvent{Dir: ir.DirectionInput, Index: -1, Connected: true}))
	f.disconnect(l)

	got := pinStates(n)[0]
	got.Link = 0
	assert.Equal(t, before, []pinState{got})
	assert.Equal(t, "_way_out", n.Outputs[0].Name)
	assert.Equal(t, HighwayPipe, n.Outputs[0].Type)
}

func TestHighway_BulkLoadResetsAnnotations(t *testing.T) {
	f := newFixture(t)
	doc := &graph.Document{
		Version: ir.DocumentVersion,
		Nodes: []graph.NodeData{{
			ID:   1,
			Type: TypeHighway,
			Inputs: []graph.PinData{
				{Name: "_way_in", OrigName: "_way_in", Type: HighwayPipe},
				{Name: "+seed:INT", OrigName: "+seed", Type: "INT", Link: 40},
			},
			Outputs: []graph.PinData{
				{Name: "_way_out", OrigName: "_way_out", Type: HighwayPipe},
				{Name: "IMAGE:-img", Type: "IMAGE", Links: []graph.LinkID{41}},
			},
			Widgets: []graph.WidgetData{{Name: WidgetQuery, Value: map[string]any{"data": "$seed -> $img", "update": "x"}}},
		}},
	}
	require.NoError(t, f.e.Load(doc))

	n, h, err := f.e.Highway(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"_way_in", "+seed"}, pinNames(n, ir.DirectionInput))
	assert.Equal(t, []string{"_way_out", "-img"}, pinNames(n, ir.DirectionOutput))
	assert.Equal(t, ir.Wildcard, n.Inputs[1].Type)
	assert.Equal(t, ir.Wildcard, n.Outputs[1].Type)
	assert.Equal(t, "$seed -> $img", h.Accepted())
}

func TestHighway_LoadKeepsLiveWiring(t *testing.T) {
	f := newFixture(t)
	n := f.highway("q", testutil.Set("a"))
	src := f.source("INT")
	f.connect(src, 0, n, 1)
	doc, err := f.e.Serialize()
	require.NoError(t, err)

	g := newFixture(t)
	require.NoError(t, g.e.Load(doc))
	m, _, err := g.e.Highway(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "+a:INT", m.Inputs[1].Name)
	assert.NotZero(t, m.Inputs[1].Link)
}

// Two saved links into one input: only the one the pin references is
// kept, so disconnecting it is the only way to reset the pin.
func TestHighway_LoadKeepsOneLinkPerInput(t *testing.T) {
	f := newFixture(t)
	doc := &graph.Document{
		Version: ir.DocumentVersion,
		Nodes: []graph.NodeData{
			{ID: 1, Type: "Source", Outputs: []graph.PinData{{Name: "INT", Type: "INT", Links: []graph.LinkID{1, 2}}}},
			{
				ID:   2,
				Type: TypeHighway,
				Inputs: []graph.PinData{
					{Name: "_way_in", Type: HighwayPipe},
					{Name: "+a:INT", OrigName: "+a", Type: "INT", Link: 2},
				},
				Outputs: []graph.PinData{{Name: "_way_out", Type: HighwayPipe}},
			},
		},
		Links: []graph.LinkData{
			{ID: 1, OriginID: 1, OriginSlot: 0, TargetID: 2, TargetSlot: 1, Type: "INT"},
			{ID: 2, OriginID: 1, OriginSlot: 0, TargetID: 2, TargetSlot: 1, Type: "INT"},
		},
	}
	require.NoError(t, f.e.Load(doc))

	links := f.g.Links()
	require.Len(t, links, 1)
	assert.Equal(t, graph.LinkID(2), links[0].ID)
	src, err := f.g.Node(1)
	require.NoError(t, err)
	assert.Equal(t, []graph.LinkID{2}, src.Outputs[0].Links)

	n, _, err := f.e.Highway(2)
	require.NoError(t, err)
	assert.Equal(t, "+a:INT", n.Inputs[1].Name)
	assert.Equal(t, graph.LinkID(2), n.Inputs[1].Link)

	require.Error(t, f.e.Disconnect(1))
	assert.Equal(t, "+a:INT", n.Inputs[1].Name)

	require.NoError(t, f.e.Disconnect(2))
	assert.Equal(t, "+a", n.Inputs[1].Name)
	assert.Equal(t, ir.Wildcard, n.Inputs[1].Type)
}

func TestHighway_LegacyNamesMigrateOnLoad(t *testing.T) {
	f := newFixture(t)
	up := f.source(HighwayPipe)
	doc := &graph.Document{
		Version:    ir.DocumentVersion,
		LastNodeID: 5,
		Nodes: []graph.NodeData{
			{ID: up.ID, Type: "Source", Outputs: []graph.PinData{{Name: HighwayPipe, Type: HighwayPipe, Links: []graph.LinkID{1}}}},
			{
				ID:      5,
				Type:    TypeHighway,
				Inputs:  []graph.PinData{{Name: "_pipe_in", Type: HighwayPipe, Link: 1}},
				Outputs: []graph.PinData{{Name: "_pipe_out", Type: HighwayPipe}},
			},
		},
		Links: []graph.LinkData{{ID: 1, OriginID: up.ID, OriginSlot: 0, TargetID: 5, TargetSlot: 0, Type: HighwayPipe}},
	}
	require.NoError(t, f.e.Load(doc))

	n, _, err := f.e.Highway(5)
	require.NoError(t, err)
	assert.Equal(t, "_way_in", n.Inputs[0].Name)
	assert.Equal(t, "_way_in", n.Inputs[0].OrigName)
	assert.Equal(t, "_way_out", n.Outputs[0].Name)
	assert.Equal(t, graph.LinkID(1), n.Inputs[0].Link)
}

func TestHighway_UnknownDirectionIsContractViolation(t *testing.T) {
	f := newFixture(t)
	n := f.create(TypeHighway)
	err := n.Behavior().OnConnectionsChange(n, graph.ConnectionEvent{Dir: 3, Index: 0, Link: &graph.Link{}})
	require.Error(t, err)
	assert.True(t, IsContractError(err))

	err = n.Behavior().OnConnectionsChange(n, graph.ConnectionEvent{Dir: ir.DirectionInput, Index: 9, Link: &graph.Link{}})
	assert.True(t, IsContractError(err))
}

func TestHighway_ReroutePassThroughType(t *testing.T) {
	f := newFixture(t)
	n := f.highway("q", testutil.Set("a"))
	src := f.source("LATENT")
	rr := f.create(TypeReroute)
	f.connect(src, 0, rr, 0)
	f.connect(rr, 0, n, 1)
	assert.Equal(t, "+a:LATENT", n.Inputs[1].Name)
}

func TestHighway_ConnectionsMarkGateDirty(t *testing.T) {
	f := newFixture(t)
	n, h, err := f.e.Highway(f.create(TypeHighway).ID)
	require.NoError(t, err)
	_, err = f.e.Serialize()
	require.NoError(t, err)
	require.False(t, h.Gate().Dirty())
	first := h.Gate().Hash()

	src := f.source(HighwayPipe)
	f.connect(src, 0, n, 0)
	assert.True(t, h.Gate().Dirty())

	doc, err := f.e.Serialize()
	require.NoError(t, err)
	assert.False(t, h.Gate().Dirty())
	assert.NotEqual(t, first, h.Gate().Hash())

	var nd graph.NodeData
	for _, x := range doc.Nodes {
		if x.ID == n.ID {
			nd = x
		}
	}
	var gated ir.UpdateValue
	var desc ir.TypeDescriptor
	for _, w := range nd.Widgets {
		switch w.Name {
		case WidgetQuery:
			gated = w.Value.(ir.UpdateValue)
		case WidgetType:
			desc = w.Value.(ir.TypeDescriptor)
		}
	}
	assert.Equal(t, h.Gate().Hash(), gated.Update)
	assert.Empty(t, desc.In)
	assert.Empty(t, desc.Out)
}

func TestDescribeListsNonSystemPins(t *testing.T) {
	f := newFixture(t)
	n := f.highway("q", testutil.Set("a"), testutil.Get("b"))
	f.connect(f.source("INT"), 0, n, 1)

	assert.Equal(t, ir.TypeDescriptor{
		In:  []ir.PinDescriptor{{Name: "+a", FullName: "+a:INT", Type: "INT"}},
		Out: []ir.PinDescriptor{{Name: "-b", FullName: "-b", Type: ir.Wildcard}},
	}, Describe(n))
}
