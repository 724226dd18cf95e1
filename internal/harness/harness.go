package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/pinsync/internal/engine"
	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/testutil"
)

// errUnreachable stands in for a network failure in update steps.
var errUnreachable = errors.New("parsing service unreachable")

// Harness is the test execution engine.
// It runs one scenario against a real engine with a scripted parser, a
// deterministic random source for update gates, and a recording notifier.
type Harness struct {
	engine   *engine.Engine
	parser   *testutil.StubParser
	notifier *engine.RecordingNotifier
	clock    *engine.Clock
	logger   *slog.Logger

	aliases map[string]graph.NodeID
	names   map[graph.NodeID]string
	result  *Result
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh engine for isolation.
//
// Execution flow:
// 1. Script the parser and create the declared nodes
// 2. Execute steps, checking each expected outcome
// 3. Snapshot every declared node
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	h := &Harness{
		parser:   testutil.NewStubParser(),
		notifier: &engine.RecordingNotifier{},
		clock:    engine.NewClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		aliases:  make(map[string]graph.NodeID, len(scenario.Nodes)),
		names:    make(map[graph.NodeID]string, len(scenario.Nodes)),
		result:   NewResult(),
	}
	for query, reply := range scenario.Parser {
		if len(reply.Error) > 0 {
			h.parser.Reject(query, reply.Error...)
			continue
		}
		h.parser.On(query, reply.Schema()...)
	}
	h.engine = engine.New(h.parser,
		engine.WithRandom(testutil.NewCountingReader()),
		engine.WithNotifier(h.notifier),
		engine.WithRenameObserver(h.observeRename),
	)

	if err := h.createNodes(scenario.Nodes); err != nil {
		return nil, fmt.Errorf("failed to create nodes: %w", err)
	}

	ctx := context.Background()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("failed to execute step %d: %w", i, err)
		}
	}

	for _, decl := range scenario.Nodes {
		snap, err := h.snapshot(decl.ID)
		if err != nil {
			return nil, err
		}
		h.result.Nodes = append(h.result.Nodes, snap)
	}

	for _, msg := range h.evaluateAssertions(scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) observeRename(n *graph.Node, dir ir.Direction, index int, from, to string) {
	h.result.AddTrace(h.clock.Next(), "rename", h.names[n.ID], fmt.Sprintf("%s %d: %s -> %s", dir, index, from, to))
}

func (h *Harness) createNodes(decls []NodeDecl) error {
	g := h.engine.Graph()
	for _, d := range decls {
		n, err := g.Create(d.Type)
		if errors.Is(err, graph.ErrUnknownType) {
			spec := graph.NodeSpec{Type: d.Type}
			for _, p := range d.Inputs {
				spec.Inputs = append(spec.Inputs, graph.PinSpec{Name: p.Name, Type: p.Type})
			}
			for _, p := range d.Outputs {
				spec.Outputs = append(spec.Outputs, graph.PinSpec{Name: p.Name, Type: p.Type})
			}
			n, err = g.Add(spec), nil
		}
		if err != nil {
			return fmt.Errorf("node %q: %w", d.ID, err)
		}
		h.aliases[d.ID] = n.ID
		h.names[n.ID] = d.ID
		h.logger.Debug("node created", "alias", d.ID, "id", n.ID, "type", d.Type)
	}
	return nil
}

// executeStep runs one step. Unexpected outcomes are recorded as result
// errors; only harness failures are returned.
func (h *Harness) executeStep(ctx context.Context, index int, st Step) error {
	var (
		kind, node, detail string
		stepErr            error
	)
	switch {
	case st.Connect != nil:
		kind, detail = "connect", st.Connect.From+" -> "+st.Connect.To
		stepErr = h.connect(st.Connect)
	case st.Disconnect != nil:
		kind, detail = "disconnect", st.Disconnect.From+" -> "+st.Disconnect.To
		stepErr = h.disconnect(st.Disconnect)
	case st.Update != nil:
		kind, node = "update", st.Update.Node
		detail, stepErr = h.update(ctx, index, st.Update)
	case st.Reload:
		kind = "reload"
		stepErr = h.reload()
	default:
		return fmt.Errorf("empty step")
	}

	switch {
	case stepErr != nil && !st.ExpectError:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", index, kind, stepErr))
		detail = appendDetail(detail, "error")
	case stepErr == nil && st.ExpectError:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected an error", index, kind))
	case stepErr != nil:
		detail = appendDetail(detail, "error")
	}
	h.result.AddTrace(h.clock.Next(), kind, node, detail)
	return nil
}

func appendDetail(detail, s string) string {
	if detail == "" {
		return s
	}
	return detail + ": " + s
}

func (h *Harness) endpoint(s string) (graph.NodeID, int, error) {
	alias, slot, err := ParseEndpoint(s)
	if err != nil {
		return 0, 0, err
	}
	id, ok := h.aliases[alias]
	if !ok {
		return 0, 0, fmt.Errorf("unknown node %q", alias)
	}
	return id, slot, nil
}

func (h *Harness) connect(ls *LinkStep) error {
	from, fromSlot, err := h.endpoint(ls.From)
	if err != nil {
		return err
	}
	to, toSlot, err := h.endpoint(ls.To)
	if err != nil {
		return err
	}
	_, err = h.engine.Connect(engine.ConnectRequest{
		OriginID: from, OriginSlot: fromSlot, TargetID: to, TargetSlot: toSlot,
	})
	return err
}

func (h *Harness) disconnect(ls *LinkStep) error {
	l, err := h.findLink(ls.From, ls.To)
	if err != nil {
		return err
	}
	if l == nil {
		return fmt.Errorf("no link %s -> %s", ls.From, ls.To)
	}
	return h.engine.Disconnect(l.ID)
}

// findLink returns the link between two endpoints, or nil.
func (h *Harness) findLink(fromEp, toEp string) (*graph.Link, error) {
	from, fromSlot, err := h.endpoint(fromEp)
	if err != nil {
		return nil, err
	}
	to, toSlot, err := h.endpoint(toEp)
	if err != nil {
		return nil, err
	}
	for _, l := range h.engine.Graph().Links() {
		if l.OriginID == from && l.OriginSlot == fromSlot && l.TargetID == to && l.TargetSlot == toSlot {
			return l, nil
		}
	}
	return nil, nil
}

// update runs an update step and returns its trace detail. A status other
// than the expected one is recorded as a result error.
func (h *Harness) update(ctx context.Context, index int, u *UpdateStep) (string, error) {
	want := u.Expect
	if want == "" {
		want = string(engine.UpdateApplied)
	}

	if u.Unreachable {
		h.parser.Err = errUnreachable
		defer func() { h.parser.Err = nil }()
	}

	id := h.aliases[u.Node]
	if u.SupersededBy != "" {
		return h.supersededUpdate(ctx, index, id, u, want)
	}

	query := u.Query
	res, err := h.engine.UpdateNow(ctx, id, &query)
	if res == nil {
		return "", err
	}
	h.checkStatus(index, res.Status, want)
	return fmt.Sprintf("%q: %s", u.Query, res.Status), nil
}

func (h *Harness) supersededUpdate(ctx context.Context, index int, id graph.NodeID, u *UpdateStep, want string) (string, error) {
	n, hw, err := h.engine.Highway(id)
	if err != nil {
		return "", err
	}
	w := n.Widget(engine.WidgetQuery)
	if w == nil {
		return "", fmt.Errorf("node %q has no query widget", u.Node)
	}

	w.Value = u.Query
	first := hw.BeginUpdate(n)
	w.Value = u.SupersededBy
	second := hw.BeginUpdate(n)

	resp, callErr := h.parser.Parse(ctx, first.Query)
	stale, _ := hw.CompleteUpdate(n, first, resp, callErr)
	if stale == nil || stale.Status != engine.UpdateStale {
		h.result.AddError(fmt.Sprintf("steps[%d] update: superseded answer was applied", index))
	}

	resp, callErr = h.parser.Parse(ctx, second.Query)
	res, err := hw.CompleteUpdate(n, second, resp, callErr)
	if res == nil {
		return "", err
	}
	h.checkStatus(index, res.Status, want)
	return fmt.Sprintf("%q superseded by %q: %s", u.Query, u.SupersededBy, res.Status), nil
}

func (h *Harness) checkStatus(index int, got engine.UpdateStatus, want string) {
	if string(got) != want {
		h.result.AddError(fmt.Sprintf("steps[%d] update: status %s, want %s", index, got, want))
	}
}

func (h *Harness) reload() error {
	doc, err := h.engine.Serialize()
	if err != nil {
		return err
	}
	return h.engine.Load(doc)
}

func (h *Harness) snapshot(alias string) (NodeSnapshot, error) {
	n, err := h.engine.Graph().Node(h.aliases[alias])
	if err != nil {
		return NodeSnapshot{}, fmt.Errorf("snapshot %q: %w", alias, err)
	}
	snap := NodeSnapshot{
		ID:         alias,
		Type:       n.Type,
		Inputs:     make([]string, 0, len(n.Inputs)),
		Outputs:    make([]string, 0, len(n.Outputs)),
		Descriptor: engine.Describe(n),
	}
	for _, p := range n.Inputs {
		snap.Inputs = append(snap.Inputs, p.Name)
	}
	for _, p := range n.Outputs {
		snap.Outputs = append(snap.Outputs, p.Name)
	}
	return snap, nil
}
