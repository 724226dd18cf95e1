package graph

import "github.com/roach88/pinsync/internal/ir"

// ConnectionEvent is delivered to OnConnectionsChange.
//
// Link is nil for a bulk-load event: the node was configured from a
// document (paste, template, saved workflow) whose pins referenced links
// that do not exist in this graph. Index is -1 in that case.
type ConnectionEvent struct {
	Dir       ir.Direction
	Index     int
	Connected bool
	Link      *Link
}

// BulkLoad reports whether the event carries no single-link context.
func (e ConnectionEvent) BulkLoad() bool {
	return e.Link == nil
}

// Behavior is the per-node hook set the host editor invokes.
//
// OnConnectInput and OnConnectOutput run before a link is created and may
// veto it by returning false. OnConnectionsChange runs after a link has been
// registered or removed; an error from it is a programming error in the
// host contract and aborts the operation.
type Behavior interface {
	OnCreated(n *Node)
	OnConfigure(n *Node) error
	OnConnectInput(n *Node, slot int, origin *Node, originSlot int) bool
	OnConnectOutput(n *Node, slot int, target *Node, targetSlot int) bool
	OnConnectionsChange(n *Node, ev ConnectionEvent) error
}

// PassThrough is implemented by behaviors of nodes that forward whatever
// type flows into them (reroutes). PassThroughType reports the type
// currently flowing through, or false when none is known yet.
type PassThrough interface {
	PassThroughType(n *Node) (string, bool)
}

// DeclaredType returns the type a neighbor declares for one of its pins:
// the pass-through type for pass-through nodes that have one, otherwise the
// pin's own type.
func DeclaredType(n *Node, p *Pin) string {
	if pt, ok := n.behavior.(PassThrough); ok {
		if typ, ok := pt.PassThroughType(n); ok {
			return typ
		}
	}
	return p.Type
}

// Plain is the behavior of an ordinary typed node. Every hook is a no-op.
type Plain struct{}

func (Plain) OnCreated(*Node)                                  {}
func (Plain) OnConfigure(*Node) error                          { return nil }
func (Plain) OnConnectInput(*Node, int, *Node, int) bool       { return true }
func (Plain) OnConnectOutput(*Node, int, *Node, int) bool      { return true }
func (Plain) OnConnectionsChange(*Node, ConnectionEvent) error { return nil }

// Reroute is a generic pass-through node with one input and one output.
// Its output adopts the type of whatever is wired into its input.
type Reroute struct{ Plain }

// RerouteSpec declares the pins of a reroute node.
func RerouteSpec() NodeSpec {
	return NodeSpec{
		Type:    "Reroute",
		Inputs:  []PinSpec{{Name: "", Type: ir.Wildcard}},
		Outputs: []PinSpec{{Name: "", Type: ir.Wildcard}},
	}
}

// OnConnectionsChange follows the input link's type onto the output.
func (Reroute) OnConnectionsChange(n *Node, ev ConnectionEvent) error {
	if ev.BulkLoad() || ev.Dir != ir.DirectionInput || len(n.Outputs) == 0 {
		return nil
	}
	if ev.Connected {
		n.Outputs[0].Type = ev.Link.Type
	} else {
		n.Outputs[0].Type = ir.Wildcard
	}
	return nil
}

// PassThroughType reports the forwarded type once an input is wired.
func (Reroute) PassThroughType(n *Node) (string, bool) {
	if len(n.Outputs) == 0 || n.Outputs[0].Type == "" || n.Outputs[0].Type == ir.Wildcard {
		return "", false
	}
	return n.Outputs[0].Type, true
}
