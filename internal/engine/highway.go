package engine

import (
	"errors"
	"log/slog"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/pins"
)

// Highway is the behavior of a Highway node: its pins come from a parsed
// query, and each non-system pin takes its type from whatever is wired
// into it.
type Highway struct {
	gate     *UpdateGate
	guard    guard
	gen      Clock
	accepted string

	rec      *Reconciler
	notifier Notifier
}

var errEmptyResponse = errors.New("empty parse response")

var (
	_ graph.Behavior = (*Highway)(nil)
	_ graph.Behavior = (*Junction)(nil)
)

func newHighway(k Kit, rec *Reconciler) *Highway {
	return &Highway{
		gate:     NewUpdateGate(k.Rand),
		rec:      rec,
		notifier: k.notifier(),
	}
}

// Gate returns the node's update gate.
func (h *Highway) Gate() *UpdateGate { return h.gate }

// Accepted returns the last query text the parser accepted.
func (h *Highway) Accepted() string { return h.accepted }

// Generation returns the latest update generation issued.
func (h *Highway) Generation() int64 { return h.gen.Current() }

// OnCreated attaches the gated query serializer and the descriptor widget.
func (h *Highway) OnCreated(n *graph.Node) {
	attachWidgets(n, WidgetQuery, h.gate)
}

// OnConfigure migrates legacy reserved names, derives missing original
// names, and treats the loaded query as accepted.
func (h *Highway) OnConfigure(n *graph.Node) error {
	if _, err := pins.Migrate(n); err != nil {
		return err
	}
	pins.DeriveOrigNames(n)
	if w := n.Widget(WidgetQuery); w != nil {
		h.accepted = w.Value
	}
	return nil
}

// OnConnectInput types a fresh input after the origin's declared type. An
// input that already holds a link is being replaced: the old link is
// flagged so its disconnect does not reset the pin.
func (h *Highway) OnConnectInput(n *graph.Node, slot int, origin *graph.Node, originSlot int) bool {
	h.gate.MarkDirty()
	p := n.Inputs[slot]
	if pins.IsSystem(p.Name) {
		return true
	}
	if p.Link != 0 {
		markReplaced(n, p.Link)
		return true
	}
	typ := graph.DeclaredType(origin, origin.Outputs[originSlot])
	if err := pins.Inputs(n).Retype(slot, typ, graph.Observed); err != nil {
		slog.Error("retype input", "node", n.ID, "slot", slot, "error", err)
	}
	return true
}

// OnConnectOutput types an output after the target's declared type.
func (h *Highway) OnConnectOutput(n *graph.Node, slot int, target *graph.Node, targetSlot int) bool {
	h.gate.MarkDirty()
	p := n.Outputs[slot]
	if pins.IsSystem(p.Name) {
		return true
	}
	typ := graph.DeclaredType(target, target.Inputs[targetSlot])
	if err := pins.Outputs(n).Retype(slot, typ, graph.Observed); err != nil {
		slog.Error("retype output", "node", n.ID, "slot", slot, "error", err)
	}
	return true
}

// OnConnectionsChange resets pins whose connection went away. A bulk-load
// event resets every non-system pin to its original name and the
// wildcard type.
func (h *Highway) OnConnectionsChange(n *graph.Node, ev graph.ConnectionEvent) error {
	if h.guard.held() {
		return nil
	}
	if err := checkEvent(n, ev); err != nil {
		return err
	}
	reactiveEvents.WithLabelValues(TypeHighway, eventKind(ev.Connected, ev.BulkLoad())).Inc()

	if ev.BulkLoad() {
		for _, dir := range []ir.Direction{ir.DirectionInput, ir.DirectionOutput} {
			set := pins.Of(n, dir)
			for i := 0; i < set.Len(); i++ {
				if pins.IsSystem(set.At(i).Name) {
					continue
				}
				if err := set.Reset(i, graph.Suppressed); err != nil {
					return err
				}
			}
		}
		return nil
	}

	h.gate.MarkDirty()
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
		// Outputs fan out; one remaining consumer keeps the type.
		if len(p.Links) > 0 {
			return nil
		}
	}
	return pins.Of(n, ev.Dir).Reset(ev.Index, graph.Observed)
}

// UpdateTicket identifies one in-flight update.
type UpdateTicket struct {
	NodeID     graph.NodeID
	Generation int64
	Query      string
}

// UpdateStatus is the outcome of CompleteUpdate.
type UpdateStatus string

const (
	UpdateApplied  UpdateStatus = "applied"
	UpdateRejected UpdateStatus = "rejected"
	UpdateFailed   UpdateStatus = "failed"
	UpdateStale    UpdateStatus = "stale"
)

// UpdateResult describes a completed update.
type UpdateResult struct {
	NodeID     graph.NodeID     `json:"node"`
	Generation int64            `json:"generation"`
	Status     UpdateStatus     `json:"status"`
	Errors     []string         `json:"errors,omitempty"`
	Report     *ReconcileReport `json:"report,omitempty"`
}

// BeginUpdate issues a new generation for the current query text. Pins
// are not touched until CompleteUpdate.
func (h *Highway) BeginUpdate(n *graph.Node) UpdateTicket {
	t := UpdateTicket{NodeID: n.ID, Generation: h.gen.Next()}
	if w := n.Widget(WidgetQuery); w != nil {
		t.Query = w.Value
	}
	slog.Debug("update submitted", "node", n.ID, "generation", t.Generation)
	return t
}

// CompleteUpdate applies a parser answer for ticket.
//
// A ticket older than the latest BeginUpdate is discarded. A transport
// failure or a non-empty error list reverts the query widget to the last
// accepted text, notifies the user, and leaves every pin untouched; the
// returned error says which. Otherwise the gate is marked dirty and the
// schema is applied.
func (h *Highway) CompleteUpdate(n *graph.Node, t UpdateTicket, resp *ir.ParseResponse, callErr error) (*UpdateResult, error) {
	res := &UpdateResult{NodeID: n.ID, Generation: t.Generation}

	if !h.gen.IsCurrent(t.Generation) {
		slog.Debug("discarding stale parse response",
			"node", n.ID, "generation", t.Generation, "current", h.gen.Current())
		updatesTotal.WithLabelValues(outcomeStale).Inc()
		res.Status = UpdateStale
		return res, nil
	}

	if callErr == nil && resp == nil {
		callErr = errEmptyResponse
	}
	if callErr != nil {
		h.revert(n)
		h.notifier.Notify(n, "Update failed", []string{"Could not reach the parsing service."})
		updatesTotal.WithLabelValues(outcomeFailed).Inc()
		res.Status = UpdateFailed
		return res, NewTransportError(n.ID, callErr)
	}

	if len(resp.Error) > 0 {
		h.revert(n)
		h.notifier.Notify(n, "Query rejected", resp.Error)
		updatesTotal.WithLabelValues(outcomeRejected).Inc()
		res.Status = UpdateRejected
		res.Errors = append([]string(nil), resp.Error...)
		return res, NewValidationError(n.ID, resp.Error)
	}

	if err := resp.Order.Validate(); err != nil {
		h.revert(n)
		h.notifier.Notify(n, "Query rejected", []string{err.Error()})
		updatesTotal.WithLabelValues(outcomeRejected).Inc()
		res.Status = UpdateRejected
		res.Errors = []string{err.Error()}
		return res, NewValidationError(n.ID, res.Errors)
	}

	h.gate.MarkDirty()
	report, err := h.rec.Apply(n, &h.guard, resp.Order)
	if err != nil {
		updatesTotal.WithLabelValues(outcomeFailed).Inc()
		res.Status = UpdateFailed
		return res, err
	}
	h.accepted = t.Query
	updatesTotal.WithLabelValues(outcomeApplied).Inc()
	res.Status = UpdateApplied
	res.Report = report
	return res, nil
}

func (h *Highway) revert(n *graph.Node) {
	if w := n.Widget(WidgetQuery); w != nil {
		w.Value = h.accepted
	}
}

func markReplaced(n *graph.Node, id graph.LinkID) {
	if l, err := n.Graph().Link(id); err == nil {
		l.Replaced = true
	}
}
