package pins

import (
	"fmt"
	"strconv"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// Set is the ordered pin list on one side of one node. Index is the slot id
// the host uses on the wire. Set is a view; it holds no state of its own.
type Set struct {
	node *graph.Node
	dir  ir.Direction
}

// Of returns the set for one direction of n.
func Of(n *graph.Node, dir ir.Direction) Set {
	return Set{node: n, dir: dir}
}

// Inputs returns the input set of n.
func Inputs(n *graph.Node) Set { return Of(n, ir.DirectionInput) }

// Outputs returns the output set of n.
func Outputs(n *graph.Node) Set { return Of(n, ir.DirectionOutput) }

// Dir returns the set's direction.
func (s Set) Dir() ir.Direction { return s.dir }

// Len returns the number of pins, system pins included.
func (s Set) Len() int { return len(s.node.Pins(s.dir)) }

// At returns pin i. It panics on an out-of-range index like a slice would.
func (s Set) At(i int) *graph.Pin { return s.node.Pins(s.dir)[i] }

// Add appends a pin and returns its index.
func (s Set) Add(name, typ string) int {
	return s.node.AddPin(s.dir, name, typ)
}

// RemoveAt disconnects and removes pin i. The host shifts the slot indices
// of links on later pins.
func (s Set) RemoveAt(i int) error {
	if err := s.node.RemovePin(s.dir, i); err != nil {
		return fmt.Errorf("remove %s %d: %w", s.dir, i, err)
	}
	return nil
}

// IndexOf returns the index of the first pin whose original name is name.
func (s Set) IndexOf(name string) (int, bool) {
	for i, p := range s.node.Pins(s.dir) {
		if p.OrigName == name {
			return i, true
		}
	}
	return -1, false
}

// Managed returns the number of non-system pins.
func (s Set) Managed() int {
	c := 0
	for _, p := range s.node.Pins(s.dir) {
		if !IsSystem(p.Name) {
			c++
		}
	}
	return c
}

// RemoveManaged removes every non-system pin, last first.
func (s Set) RemoveManaged() error {
	for i := s.Len() - 1; i >= 0; i-- {
		if IsSystem(s.At(i).Name) {
			continue
		}
		if err := s.RemoveAt(i); err != nil {
			return err
		}
	}
	return nil
}

// Retype fixes pin i's type and renders its annotated name from its
// original name.
func (s Set) Retype(i int, typ string, scope graph.Scope) error {
	p := s.At(i)
	p.Type = typ
	return s.node.RenamePin(s.dir, i, Annotate(s.dir, p.OrigName, typ), scope)
}

// Reset returns pin i to its original name and the wildcard type.
func (s Set) Reset(i int, scope graph.Scope) error {
	p := s.At(i)
	p.Type = ir.Wildcard
	return s.node.RenamePin(s.dir, i, p.OrigName, scope)
}

// Renumber gives every non-system pin a contiguous numeric identity in
// order (0, 1, 2, ...) and renders its name with the direction template:
// "index:type" for inputs, "type:index" for outputs. It returns the count.
func (s Set) Renumber(scope graph.Scope) (int, error) {
	c := 0
	for i, p := range s.node.Pins(s.dir) {
		if IsSystem(p.Name) {
			continue
		}
		p.OrigName = strconv.Itoa(c)
		if err := s.node.RenamePin(s.dir, i, Annotate(s.dir, p.OrigName, p.Type), scope); err != nil {
			return c, err
		}
		c++
	}
	return c, nil
}
