package engine

import (
	"log/slog"
	"strconv"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/pins"
)

// Junction is the behavior of a Junction node. Each side grows through a
// trailing placeholder pin: wiring the placeholder turns it into concrete
// pin "n:TYPE" (inputs) or "TYPE:n" (outputs) and appends a fresh
// placeholder. Losing its last link removes a concrete pin and renumbers
// the rest so indices stay contiguous.
//
// realInputs and realOutputs always equal the concrete pin count per side.
type Junction struct {
	gate  *UpdateGate
	guard guard

	realInputs  int
	realOutputs int
}

func newJunction(k Kit) *Junction {
	return &Junction{gate: NewUpdateGate(k.Rand)}
}

// Gate returns the node's update gate.
func (j *Junction) Gate() *UpdateGate { return j.gate }

// Counts returns the live concrete pin counters.
func (j *Junction) Counts() (inputs, outputs int) {
	return j.realInputs, j.realOutputs
}

// OnCreated attaches widgets and the two placeholders.
func (j *Junction) OnCreated(n *graph.Node) {
	attachWidgets(n, WidgetOffset, j.gate)
	n.AddInput(pins.Placeholder, ir.Wildcard)
	n.AddOutput(pins.Placeholder, ir.Wildcard)
}

// OnConfigure normalizes the loaded pin lists the way a bulk load does:
// unlinked concrete pins go, the rest are renumbered, and the counters
// are taken from what remains.
func (j *Junction) OnConfigure(n *graph.Node) error {
	if _, err := pins.Migrate(n); err != nil {
		return err
	}
	pins.DeriveOrigNames(n)
	return j.guard.hold(func() error { return j.normalize(n) })
}

func (j *Junction) normalize(n *graph.Node) error {
	if err := j.strip(n, ir.DirectionInput); err != nil {
		return err
	}
	if err := j.strip(n, ir.DirectionOutput); err != nil {
		return err
	}
	j.recount(n)
	return nil
}

func (j *Junction) recount(n *graph.Node) {
	j.realInputs = pins.Inputs(n).Managed()
	j.realOutputs = pins.Outputs(n).Managed()
}

// OnConnectInput grows the input side when the placeholder is wired.
func (j *Junction) OnConnectInput(n *graph.Node, slot int, origin *graph.Node, originSlot int) bool {
	j.gate.MarkDirty()
	p := n.Inputs[slot]
	if pins.IsSystem(p.Name) && p.Name != pins.Placeholder {
		return true
	}
	if p.Link != 0 {
		markReplaced(n, p.Link)
		return true
	}
	j.promote(n, ir.DirectionInput, slot, graph.DeclaredType(origin, origin.Outputs[originSlot]), j.realInputs)
	j.realInputs++
	return true
}

// OnConnectOutput grows the output side when the placeholder is wired.
// A concrete output that already has links accepts more without change.
func (j *Junction) OnConnectOutput(n *graph.Node, slot int, target *graph.Node, targetSlot int) bool {
	j.gate.MarkDirty()
	p := n.Outputs[slot]
	if pins.IsSystem(p.Name) && p.Name != pins.Placeholder {
		return true
	}
	if len(p.Links) > 0 {
		return true
	}
	j.promote(n, ir.DirectionOutput, slot, graph.DeclaredType(target, target.Inputs[targetSlot]), j.realOutputs)
	j.realOutputs++
	return true
}

// promote turns the pin at slot into concrete pin index and appends a new
// placeholder.
func (j *Junction) promote(n *graph.Node, dir ir.Direction, slot int, typ string, index int) {
	set := pins.Of(n, dir)
	p := set.At(slot)
	p.OrigName = strconv.Itoa(index)
	if err := set.Retype(slot, typ, graph.Observed); err != nil {
		slog.Error("promote placeholder", "node", n.ID, "dir", dir.String(), "slot", slot, "error", err)
		return
	}
	set.Add(pins.Placeholder, ir.Wildcard)
}

// OnConnectionsChange shrinks a side when a concrete pin loses its last
// link. A bulk-load event strips every concrete pin left without a live
// link, renumbers the rest, and restores the single trailing placeholder.
func (j *Junction) OnConnectionsChange(n *graph.Node, ev graph.ConnectionEvent) error {
	if j.guard.held() {
		return nil
	}
	if err := checkEvent(n, ev); err != nil {
		return err
	}
	reactiveEvents.WithLabelValues(TypeJunction, eventKind(ev.Connected, ev.BulkLoad())).Inc()

	if ev.BulkLoad() {
		return j.guard.hold(func() error { return j.normalize(n) })
	}

	j.gate.MarkDirty()
	if ev.Connected {
		return nil
	}

	p := n.Pins(ev.Dir)[ev.Index]
	if pins.IsSystem(p.Name) {
		return nil
	}
	switch ev.Dir {
	case ir.DirectionInput:
		if ev.Link.Replaced {
			return nil
		}
	case ir.DirectionOutput:
		if len(p.Links) > 0 {
			return nil
		}
	}
	return j.guard.hold(func() error {
		set := pins.Of(n, ev.Dir)
		if err := set.RemoveAt(ev.Index); err != nil {
			return err
		}
		if _, err := set.Renumber(graph.Suppressed); err != nil {
			return err
		}
		if ev.Dir == ir.DirectionInput {
			j.realInputs--
		} else {
			j.realOutputs--
		}
		return nil
	})
}

// strip removes unlinked concrete pins and misplaced placeholders on one
// side, renumbers, and makes sure the side ends in exactly one placeholder.
func (j *Junction) strip(n *graph.Node, dir ir.Direction) error {
	set := pins.Of(n, dir)
	for i := set.Len() - 1; i >= 0; i-- {
		p := set.At(i)
		switch {
		case p.Name == pins.Placeholder && i == set.Len()-1:
			continue
		case p.Name == pins.Placeholder:
		case pins.IsSystem(p.Name) || p.Linked():
			continue
		}
		if err := set.RemoveAt(i); err != nil {
			return err
		}
	}
	if _, err := set.Renumber(graph.Suppressed); err != nil {
		return err
	}
	if set.Len() == 0 || set.At(set.Len()-1).Name != pins.Placeholder {
		set.Add(pins.Placeholder, ir.Wildcard)
	}
	return nil
}
