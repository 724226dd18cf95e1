package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/pinsync/internal/ir"
)

// Link is one wire from an output slot to an input slot.
//
// Replaced is set by an input's connect hook when a new wire is about to
// take over an already-wired input; the disconnect handlers for the old
// link use it to skip their reset logic.
type Link struct {
	ID         LinkID
	OriginID   NodeID
	OriginSlot int
	TargetID   NodeID
	TargetSlot int
	Type       string
	Replaced   bool
}

// NodeType registers the declared pins and widgets of a node type together
// with the constructor of its behavior.
type NodeType struct {
	Spec NodeSpec
	New  func() Behavior
}

// Option configures a Graph.
type Option func(*Graph)

// WithNodeType registers a node type for Create, Load and Paste.
func WithNodeType(t NodeType) Option {
	return func(g *Graph) {
		g.types[t.Spec.Type] = t
	}
}

// WithRenameObserver sets the observer for Observed pin renames.
func WithRenameObserver(o RenameObserver) Option {
	return func(g *Graph) {
		g.onRename = o
	}
}

// Graph holds nodes and the link registry.
type Graph struct {
	nodes      map[NodeID]*Node
	order      []NodeID
	links      map[LinkID]*Link
	lastNodeID NodeID
	lastLinkID LinkID

	types    map[string]NodeType
	onRename RenameObserver
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		nodes: make(map[NodeID]*Node),
		links: make(map[LinkID]*Link),
		types: make(map[string]NodeType),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Create adds a node of a registered type.
func (g *Graph) Create(nodeType string) (*Node, error) {
	t, ok := g.types[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type %q: %w", nodeType, ErrUnknownType)
	}
	return g.Add(t.Spec), nil
}

// Add creates a node from spec, runs its OnCreated hook, and returns it.
// Types that are not registered get the Plain behavior.
func (g *Graph) Add(spec NodeSpec) *Node {
	g.lastNodeID++
	return g.add(g.lastNodeID, spec)
}

// specFor returns the registered spec of a type, or a bare spec for
// unregistered types.
func (g *Graph) specFor(nodeType, title string) NodeSpec {
	if t, ok := g.types[nodeType]; ok {
		spec := t.Spec
		if title != "" {
			spec.Title = title
		}
		return spec
	}
	return NodeSpec{Type: nodeType, Title: title}
}

func (g *Graph) behaviorFor(nodeType string) Behavior {
	if t, ok := g.types[nodeType]; ok && t.New != nil {
		return t.New()
	}
	return Plain{}
}

func (g *Graph) add(id NodeID, spec NodeSpec) *Node {
	n := &Node{
		ID:       id,
		Type:     spec.Type,
		Title:    spec.Title,
		behavior: g.behaviorFor(spec.Type),
		graph:    g,
	}
	if n.Title == "" {
		n.Title = spec.Type
	}
	for _, p := range spec.Inputs {
		n.AddInput(p.Name, p.Type)
	}
	for _, p := range spec.Outputs {
		n.AddOutput(p.Name, p.Type)
	}
	for _, w := range spec.Widgets {
		n.AddWidget(&Widget{Name: w.Name, Value: w.Value})
	}
	g.nodes[id] = n
	g.order = append(g.order, id)
	if id > g.lastNodeID {
		g.lastNodeID = id
	}
	n.behavior.OnCreated(n)
	return n
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	return n, nil
}

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Link returns the link with the given id.
func (g *Graph) Link(id LinkID) (*Link, error) {
	l, ok := g.links[id]
	if !ok {
		return nil, fmt.Errorf("link %d: %w", id, ErrUnknownLink)
	}
	return l, nil
}

// Links returns all links ordered by id.
func (g *Graph) Links() []*Link {
	out := make([]*Link, 0, len(g.links))
	for _, l := range g.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Connect wires output originSlot of originID into input targetSlot of
// targetID and returns the new link.
func (g *Graph) Connect(originID NodeID, originSlot int, targetID NodeID, targetSlot int) (*Link, error) {
	origin, err := g.Node(originID)
	if err != nil {
		return nil, err
	}
	target, err := g.Node(targetID)
	if err != nil {
		return nil, err
	}
	out, err := origin.Pin(ir.DirectionOutput, originSlot)
	if err != nil {
		return nil, err
	}
	in, err := target.Pin(ir.DirectionInput, targetSlot)
	if err != nil {
		return nil, err
	}
	if !TypesCompatible(out.Type, in.Type) {
		return nil, fmt.Errorf("connect %d:%d -> %d:%d (%s -> %s): %w",
			originID, originSlot, targetID, targetSlot, out.Type, in.Type, ErrTypeMismatch)
	}

	if !target.behavior.OnConnectInput(target, targetSlot, origin, originSlot) {
		return nil, fmt.Errorf("connect into node %d input %d: %w", targetID, targetSlot, ErrConnectionRejected)
	}
	if !origin.behavior.OnConnectOutput(origin, originSlot, target, targetSlot) {
		return nil, fmt.Errorf("connect from node %d output %d: %w", originID, originSlot, ErrConnectionRejected)
	}

	// Hooks may have appended pins; re-resolve by index.
	in = target.Inputs[targetSlot]
	out = origin.Outputs[originSlot]

	if in.Link != 0 {
		if err := g.Disconnect(in.Link); err != nil {
			return nil, fmt.Errorf("replace link on node %d input %d: %w", targetID, targetSlot, err)
		}
		// The old origin may have removed pins and shifted slots.
		originSlot, targetSlot = pinIndex(origin.Outputs, out), pinIndex(target.Inputs, in)
		if originSlot < 0 || targetSlot < 0 {
			return nil, fmt.Errorf("replace link into node %d: endpoint pin removed: %w", targetID, ErrSlotOutOfRange)
		}
	}

	g.lastLinkID++
	l := &Link{
		ID:         g.lastLinkID,
		OriginID:   originID,
		OriginSlot: originSlot,
		TargetID:   targetID,
		TargetSlot: targetSlot,
		Type:       out.Type,
	}
	g.links[l.ID] = l
	in.Link = l.ID
	out.Links = append(out.Links, l.ID)

	if err := origin.behavior.OnConnectionsChange(origin, ConnectionEvent{
		Dir: ir.DirectionOutput, Index: originSlot, Connected: true, Link: l,
	}); err != nil {
		return l, fmt.Errorf("node %d connections change: %w", originID, err)
	}
	if err := target.behavior.OnConnectionsChange(target, ConnectionEvent{
		Dir: ir.DirectionInput, Index: targetSlot, Connected: true, Link: l,
	}); err != nil {
		return l, fmt.Errorf("node %d connections change: %w", targetID, err)
	}
	return l, nil
}

// Disconnect removes a link. The target is notified first, then the origin.
// Both pins have already dropped the link when their handlers run.
func (g *Graph) Disconnect(id LinkID) error {
	l, err := g.Link(id)
	if err != nil {
		return err
	}
	delete(g.links, id)

	target := g.nodes[l.TargetID]
	origin := g.nodes[l.OriginID]

	if target != nil && l.TargetSlot < len(target.Inputs) && target.Inputs[l.TargetSlot].Link == id {
		target.Inputs[l.TargetSlot].Link = 0
	}
	if origin != nil && l.OriginSlot < len(origin.Outputs) {
		origin.Outputs[l.OriginSlot].removeLink(id)
	}

	if target != nil {
		if err := target.behavior.OnConnectionsChange(target, ConnectionEvent{
			Dir: ir.DirectionInput, Index: l.TargetSlot, Connected: false, Link: l,
		}); err != nil {
			return fmt.Errorf("node %d connections change: %w", target.ID, err)
		}
	}
	if origin != nil {
		if err := origin.behavior.OnConnectionsChange(origin, ConnectionEvent{
			Dir: ir.DirectionOutput, Index: l.OriginSlot, Connected: false, Link: l,
		}); err != nil {
			return fmt.Errorf("node %d connections change: %w", origin.ID, err)
		}
	}
	return nil
}

// Remove disconnects every link of a node and deletes it.
func (g *Graph) Remove(id NodeID) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	for _, p := range n.Inputs {
		if p.Link != 0 {
			if err := g.Disconnect(p.Link); err != nil {
				return err
			}
		}
	}
	for _, p := range n.Outputs {
		for len(p.Links) > 0 {
			if err := g.Disconnect(p.Links[0]); err != nil {
				return err
			}
		}
	}
	delete(g.nodes, id)
	for i, nid := range g.order {
		if nid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return nil
}

func pinIndex(ps []*Pin, p *Pin) int {
	for i, q := range ps {
		if q == p {
			return i
		}
	}
	return -1
}

// TypesCompatible applies the host's wiring rule: empty or wildcard types
// match anything; otherwise one of the comma-separated alternatives must
// match case-insensitively.
func TypesCompatible(a, b string) bool {
	if a == "" || b == "" || a == ir.Wildcard || b == ir.Wildcard {
		return true
	}
	for _, x := range strings.Split(strings.ToLower(a), ",") {
		for _, y := range strings.Split(strings.ToLower(b), ",") {
			if strings.TrimSpace(x) == strings.TrimSpace(y) {
				return true
			}
		}
	}
	return false
}
