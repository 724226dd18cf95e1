package engine

import (
	"io"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/pins"
)

// Node type names as the host registers them.
const (
	TypeHighway  = "Highway"
	TypeJunction = "Junction"
	TypeReroute  = "Reroute"
)

// Pipe types carried by the system pins.
const (
	HighwayPipe  = "HIGHWAY_PIPE"
	JunctionPipe = "JUNCTION_PIPE"
)

// Widget names.
const (
	WidgetQuery  = "_query"
	WidgetOffset = "_offset"
	WidgetType   = "_type"
)

// HighwaySpec declares the pins and widgets a Highway starts with.
func HighwaySpec() graph.NodeSpec {
	return graph.NodeSpec{
		Type:    TypeHighway,
		Inputs:  []graph.PinSpec{{Name: "_way_in", Type: HighwayPipe}},
		Outputs: []graph.PinSpec{{Name: "_way_out", Type: HighwayPipe}},
		Widgets: []graph.WidgetSpec{{Name: WidgetQuery}},
	}
}

// JunctionSpec declares the pins and widgets a Junction starts with. The
// placeholder pins are added by the Junction's creation hook.
func JunctionSpec() graph.NodeSpec {
	return graph.NodeSpec{
		Type:    TypeJunction,
		Inputs:  []graph.PinSpec{{Name: "_junc_in", Type: JunctionPipe}},
		Outputs: []graph.PinSpec{{Name: "_junc_out", Type: JunctionPipe}},
		Widgets: []graph.WidgetSpec{{Name: WidgetOffset}},
	}
}

// Kit holds what every node behavior of one graph shares.
type Kit struct {
	// Rand feeds the update gates. Nil means crypto/rand.
	Rand io.Reader
	// Notifier receives user-visible failures. Nil means LogNotifier.
	Notifier Notifier
}

func (k Kit) notifier() Notifier {
	if k.Notifier == nil {
		return LogNotifier{}
	}
	return k.Notifier
}

// NodeTypes returns the graph options registering Highway, Junction and
// Reroute. Each node gets its own behavior value.
func NodeTypes(k Kit) []graph.Option {
	rec := &Reconciler{}
	return []graph.Option{
		graph.WithNodeType(graph.NodeType{
			Spec: HighwaySpec(),
			New:  func() graph.Behavior { return newHighway(k, rec) },
		}),
		graph.WithNodeType(graph.NodeType{
			Spec: JunctionSpec(),
			New:  func() graph.Behavior { return newJunction(k) },
		}),
		graph.WithNodeType(graph.NodeType{
			Spec: graph.RerouteSpec(),
			New:  func() graph.Behavior { return graph.Reroute{} },
		}),
	}
}

// Describe builds the type descriptor of n: its non-system pins.
func Describe(n *graph.Node) ir.TypeDescriptor {
	d := ir.TypeDescriptor{In: []ir.PinDescriptor{}, Out: []ir.PinDescriptor{}}
	for _, p := range n.Inputs {
		if pins.IsSystem(p.Name) {
			continue
		}
		d.In = append(d.In, ir.PinDescriptor{Name: p.OrigName, FullName: p.Name, Type: p.Type})
	}
	for _, p := range n.Outputs {
		if pins.IsSystem(p.Name) {
			continue
		}
		d.Out = append(d.Out, ir.PinDescriptor{Name: p.OrigName, FullName: p.Name, Type: p.Type})
	}
	return d
}

// attachWidgets wires the gate onto the named widget and adds the
// read-only descriptor widget.
func attachWidgets(n *graph.Node, gated string, gate *UpdateGate) {
	if w := n.Widget(gated); w != nil {
		w.Serialize = func(w *graph.Widget) (any, error) {
			return gate.Value(w.Value)
		}
	}
	if n.Widget(WidgetType) == nil {
		n.AddWidget(&graph.Widget{
			Name:     WidgetType,
			ReadOnly: true,
			Serialize: func(*graph.Widget) (any, error) {
				return Describe(n), nil
			},
		})
	}
}

// checkEvent validates an event against the host contract: a known
// direction and, unless bulk, a slot the node has.
func checkEvent(n *graph.Node, ev graph.ConnectionEvent) error {
	if !ev.Dir.Valid() {
		return NewContractError(n.ID, ev.Dir)
	}
	if ev.BulkLoad() {
		return nil
	}
	if ev.Index < 0 || ev.Index >= len(n.Pins(ev.Dir)) {
		return NewSlotContractError(n.ID, ev.Dir, ev.Index)
	}
	return nil
}
