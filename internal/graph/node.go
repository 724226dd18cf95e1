package graph

import (
	"fmt"

	"github.com/roach88/pinsync/internal/ir"
)

// NodeID identifies a node within one graph.
type NodeID int

// LinkID identifies a link within one graph. Zero means "no link".
type LinkID int

// Pin is one input or output slot on a node.
//
// Name is the host-visible name and may carry a type annotation
// ("+seed:INT"). OrigName is the stable identity used to match pins across
// schema replacements; reconciliation never mutates it.
type Pin struct {
	Name     string
	OrigName string
	Type     string
	Link     LinkID   // inputs only; 0 when unwired
	Links    []LinkID // outputs only; fan-out
}

// Linked reports whether the pin has at least one live link.
func (p *Pin) Linked() bool {
	return p.Link != 0 || len(p.Links) > 0
}

func (p *Pin) removeLink(id LinkID) {
	for i, l := range p.Links {
		if l == id {
			p.Links = append(p.Links[:i], p.Links[i+1:]...)
			return
		}
	}
}

// Widget is a named value on a node. Serialize, when set, replaces Value in
// the persisted document. ReadOnly widgets are never restored from a
// document; their value is derived.
type Widget struct {
	Name      string
	Value     string
	ReadOnly  bool
	Serialize func(w *Widget) (any, error)
}

// restore sets the widget value from a document value. Gated widgets are
// persisted as {"data": ..., "update": ...}; only data is restored.
func (w *Widget) restore(v any) {
	if w.ReadOnly || v == nil {
		return
	}
	switch val := v.(type) {
	case string:
		w.Value = val
	case ir.UpdateValue:
		w.Value = val.Data
	case map[string]any:
		if data, ok := val["data"].(string); ok {
			w.Value = data
		}
	default:
		w.Value = fmt.Sprint(val)
	}
}

// PinSpec declares one pin of a node type.
type PinSpec struct {
	Name string
	Type string
}

// WidgetSpec declares one widget of a node type.
type WidgetSpec struct {
	Name  string
	Value string
}

// NodeSpec declares the pins and widgets a node type starts with.
type NodeSpec struct {
	Type    string
	Title   string
	Inputs  []PinSpec
	Outputs []PinSpec
	Widgets []WidgetSpec
}

// Node is one node in the graph.
type Node struct {
	ID      NodeID
	Type    string
	Title   string
	Inputs  []*Pin
	Outputs []*Pin
	Widgets []*Widget

	behavior Behavior
	graph    *Graph
}

// Graph returns the graph the node belongs to.
func (n *Node) Graph() *Graph {
	return n.graph
}

// Behavior returns the node's hook set.
func (n *Node) Behavior() Behavior {
	return n.behavior
}

// Pins returns the pin list for one direction.
func (n *Node) Pins(dir ir.Direction) []*Pin {
	if dir == ir.DirectionInput {
		return n.Inputs
	}
	return n.Outputs
}

// Pin returns the pin at index i in the given direction.
func (n *Node) Pin(dir ir.Direction, i int) (*Pin, error) {
	pins := n.Pins(dir)
	if i < 0 || i >= len(pins) {
		return nil, fmt.Errorf("node %d %s %d: %w", n.ID, dir, i, ErrSlotOutOfRange)
	}
	return pins[i], nil
}

// Widget returns the widget with the given name, or nil.
func (n *Node) Widget(name string) *Widget {
	for _, w := range n.Widgets {
		if w.Name == name {
			return w
		}
	}
	return nil
}

// AddWidget appends a widget and returns it.
func (n *Node) AddWidget(w *Widget) *Widget {
	n.Widgets = append(n.Widgets, w)
	return w
}

// AddInput appends an input pin and returns its index.
func (n *Node) AddInput(name, typ string) int {
	n.Inputs = append(n.Inputs, &Pin{Name: name, OrigName: name, Type: typ})
	return len(n.Inputs) - 1
}

// AddOutput appends an output pin and returns its index.
func (n *Node) AddOutput(name, typ string) int {
	n.Outputs = append(n.Outputs, &Pin{Name: name, OrigName: name, Type: typ})
	return len(n.Outputs) - 1
}

// AddPin appends a pin in the given direction and returns its index.
func (n *Node) AddPin(dir ir.Direction, name, typ string) int {
	if dir == ir.DirectionInput {
		return n.AddInput(name, typ)
	}
	return n.AddOutput(name, typ)
}

// RemoveInput disconnects and removes input i. Links attached to later
// inputs have their target slot shifted down by one.
func (n *Node) RemoveInput(i int) error {
	p, err := n.Pin(ir.DirectionInput, i)
	if err != nil {
		return err
	}
	if p.Link != 0 {
		if err := n.graph.Disconnect(p.Link); err != nil {
			return fmt.Errorf("remove input %d: %w", i, err)
		}
	}
	n.Inputs = append(n.Inputs[:i], n.Inputs[i+1:]...)
	for _, q := range n.Inputs[i:] {
		if l, ok := n.graph.links[q.Link]; ok {
			l.TargetSlot--
		}
	}
	return nil
}

// RemoveOutput disconnects every link of output i and removes it. Links
// attached to later outputs have their origin slot shifted down by one.
func (n *Node) RemoveOutput(i int) error {
	p, err := n.Pin(ir.DirectionOutput, i)
	if err != nil {
		return err
	}
	for len(p.Links) > 0 {
		if err := n.graph.Disconnect(p.Links[0]); err != nil {
			return fmt.Errorf("remove output %d: %w", i, err)
		}
	}
	n.Outputs = append(n.Outputs[:i], n.Outputs[i+1:]...)
	for _, q := range n.Outputs[i:] {
		for _, id := range q.Links {
			if l, ok := n.graph.links[id]; ok {
				l.OriginSlot--
			}
		}
	}
	return nil
}

// RemovePin removes the pin at index i in the given direction.
func (n *Node) RemovePin(dir ir.Direction, i int) error {
	if dir == ir.DirectionInput {
		return n.RemoveInput(i)
	}
	return n.RemoveOutput(i)
}

// RenamePin sets the host-visible name of a pin. Observed renames are
// reported to the graph's rename observer.
func (n *Node) RenamePin(dir ir.Direction, i int, name string, scope Scope) error {
	p, err := n.Pin(dir, i)
	if err != nil {
		return err
	}
	if p.Name == name {
		return nil
	}
	from := p.Name
	p.Name = name
	if scope == Observed && n.graph != nil && n.graph.onRename != nil {
		n.graph.onRename(n, dir, i, from, name)
	}
	return nil
}
