package graph

import "github.com/roach88/pinsync/internal/ir"

// Scope controls whether a pin mutation is reported to the graph's rename
// observer. It is passed explicitly into each mutation call so that one
// node's bulk edit never silences another node.
type Scope int

const (
	// Observed mutations notify the rename observer.
	Observed Scope = iota
	// Suppressed mutations are applied silently.
	Suppressed
)

// RenameObserver is told about every Observed pin rename.
type RenameObserver func(n *Node, dir ir.Direction, index int, from, to string)
