package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/pins"
)

// ReconcileReport summarizes one schema replacement.
type ReconcileReport struct {
	Inputs   int `json:"inputs"`
	Outputs  int `json:"outputs"`
	Restored int `json:"restored"`
	Dropped  int `json:"dropped"`
}

// Reconciler replaces a node's non-system pins with those a schema
// declares and rewires prior connections by name. It holds no per-node
// state.
type Reconciler struct{}

// Apply runs one replace-and-restore on n.
//
// Every schema entry is validated before anything is touched, so a bad
// entry leaves the node unchanged. The strip and rebuild run with g held;
// the restore runs with it released so restored links pass through the
// node's reactive handlers and re-type their pins.
func (r *Reconciler) Apply(n *graph.Node, g *guard, schema ir.Schema) (*ReconcileReport, error) {
	if err := schema.Validate(); err != nil {
		return nil, &RuntimeError{
			Code:    ErrCodeValidation,
			Message: "invalid schema",
			NodeID:  n.ID,
			Err:     err,
		}
	}

	snap, err := pins.Capture(n)
	if err != nil {
		return nil, fmt.Errorf("reconcile node %d: %w", n.ID, err)
	}

	report := &ReconcileReport{}
	err = g.hold(func() error {
		if err := pins.Inputs(n).RemoveManaged(); err != nil {
			return err
		}
		if err := pins.Outputs(n).RemoveManaged(); err != nil {
			return err
		}
		for _, e := range schema {
			pins.Of(n, e.Kind.Direction()).Add(e.PinName(), ir.Wildcard)
			if e.Kind.Direction() == ir.DirectionInput {
				report.Inputs++
			} else {
				report.Outputs++
			}
		}
		for _, dir := range []ir.Direction{ir.DirectionInput, ir.DirectionOutput} {
			for _, p := range n.Pins(dir) {
				p.OrigName = p.Name
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile node %d: %w", n.ID, err)
	}

	restored, err := pins.Restore(n, snap)
	if err != nil {
		return nil, fmt.Errorf("reconcile node %d: %w", n.ID, err)
	}
	report.Restored = restored.Restored
	report.Dropped = restored.Dropped
	restoredTotal.Add(float64(restored.Restored))
	droppedTotal.Add(float64(restored.Dropped))

	slog.Info("schema applied",
		"node", n.ID,
		"inputs", report.Inputs,
		"outputs", report.Outputs,
		"restored", report.Restored,
		"dropped", report.Dropped,
	)
	return report, nil
}
