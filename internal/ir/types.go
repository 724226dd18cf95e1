package ir

import "fmt"

// Wildcard is the untyped pin type. A pin carries it until a connection fixes it.
const Wildcard = "*"

// Direction identifies which side of a node a pin lives on.
//
// The numeric values are the host editor's slot codes and are received
// verbatim in connection events. Values other than DirectionInput and
// DirectionOutput indicate a host-contract violation.
type Direction int

const (
	DirectionInput  Direction = 1
	DirectionOutput Direction = 2
)

// Valid reports whether d is one of the two known host codes.
func (d Direction) Valid() bool {
	return d == DirectionInput || d == DirectionOutput
}

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection accepts "input"/"in" and "output"/"out".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "input", "in":
		return DirectionInput, nil
	case "output", "out":
		return DirectionOutput, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// PinDescriptor describes one non-system pin in a TypeDescriptor.
type PinDescriptor struct {
	Name     string `json:"name" yaml:"name"`           // stable identity (original name)
	FullName string `json:"full_name" yaml:"full_name"` // host-visible name incl. type annotation
	Type     string `json:"type" yaml:"type"`
}

// TypeDescriptor is the value of the synthetic read-only "_type" widget.
// It lists the current non-system pins of a node for external tooling.
type TypeDescriptor struct {
	In  []PinDescriptor `json:"in" yaml:"in"`
	Out []PinDescriptor `json:"out" yaml:"out"`
}

// UpdateValue is the serialized form of a gated widget (the Highway query or
// the Junction offset). Update carries the content hash that tells the host's
// cache the node's previous outputs are stale.
type UpdateValue struct {
	Data   string `json:"data" yaml:"data"`
	Update string `json:"update" yaml:"update"`
}
