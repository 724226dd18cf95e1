package pins

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// Entry records one live connection of a non-system pin: which remote
// endpoint the pin named PinName was wired to.
type Entry struct {
	Dir        ir.Direction
	PinName    string
	RemoteNode graph.NodeID
	RemoteSlot int
}

// Snapshot is the set of entries captured before a schema replacement.
// It is consumed by Restore and never persisted.
type Snapshot []Entry

// RestoreReport summarizes a Restore pass.
type RestoreReport struct {
	Restored int
	Dropped  int
}

// Capture records every live connection on the non-system pins of n, keyed
// by each pin's original name. Inputs yield at most one entry; outputs
// yield one entry per link.
func Capture(n *graph.Node) (Snapshot, error) {
	g := n.Graph()
	var snap Snapshot
	for _, p := range n.Inputs {
		if IsSystem(p.Name) || p.Link == 0 {
			continue
		}
		l, err := g.Link(p.Link)
		if err != nil {
			return nil, fmt.Errorf("capture node %d input %q: %w", n.ID, p.Name, err)
		}
		snap = append(snap, Entry{
			Dir:        ir.DirectionInput,
			PinName:    p.OrigName,
			RemoteNode: l.OriginID,
			RemoteSlot: l.OriginSlot,
		})
	}
	for _, p := range n.Outputs {
		if IsSystem(p.Name) {
			continue
		}
		for _, id := range p.Links {
			l, err := g.Link(id)
			if err != nil {
				return nil, fmt.Errorf("capture node %d output %q: %w", n.ID, p.Name, err)
			}
			snap = append(snap, Entry{
				Dir:        ir.DirectionOutput,
				PinName:    p.OrigName,
				RemoteNode: l.TargetID,
				RemoteSlot: l.TargetSlot,
			})
		}
	}
	return snap, nil
}

// Restore reconnects each entry to the first pin in the same direction
// whose original name matches. Entries with no matching pin, a vanished
// remote node, or an input pin already restored earlier in this pass are
// dropped without error. Any other connect failure is returned.
func Restore(n *graph.Node, snap Snapshot) (RestoreReport, error) {
	g := n.Graph()
	var report RestoreReport
	claimed := make(map[int]bool)
	for _, e := range snap {
		i, ok := Of(n, e.Dir).IndexOf(e.PinName)
		if !ok {
			slog.Debug("dropping connection with no matching pin",
				"node", n.ID, "dir", e.Dir.String(), "pin", e.PinName)
			report.Dropped++
			continue
		}
		var err error
		if e.Dir == ir.DirectionInput {
			if claimed[i] {
				report.Dropped++
				continue
			}
			if _, err = g.Connect(e.RemoteNode, e.RemoteSlot, n.ID, i); err == nil {
				claimed[i] = true
			}
		} else {
			_, err = g.Connect(n.ID, i, e.RemoteNode, e.RemoteSlot)
		}
		switch {
		case err == nil:
			report.Restored++
		case droppable(err):
			slog.Debug("dropping connection that no longer fits",
				"node", n.ID, "pin", e.PinName, "remote", e.RemoteNode, "error", err)
			report.Dropped++
		default:
			return report, fmt.Errorf("restore node %d pin %q: %w", n.ID, e.PinName, err)
		}
	}
	return report, nil
}

func droppable(err error) bool {
	return errors.Is(err, graph.ErrUnknownNode) ||
		errors.Is(err, graph.ErrConnectionRejected) ||
		graph.IsSlotError(err)
}
