// Package pins implements the pin-list primitives shared by the Highway and
// Junction reactors: the reserved (system) name set, the direction-specific
// naming templates, PinSet operations over one side of a node, the legacy
// name migration table, and the connection snapshot taken around a
// destructive schema replacement.
//
// System pins are identified by exact name membership and are never
// reordered, removed, renamed, or retyped by anything in this package.
package pins
