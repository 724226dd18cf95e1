package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pinsync/internal/engine"
	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", event.Seq, event.Kind, event.Node, event.Detail)
		}
	}
	return buf.String()
}

// evaluateAssertions checks every assertion against the final graph and
// returns one message per failure.
func (h *Harness) evaluateAssertions(assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertPins:
			err = h.assertPins(a)
		case AssertLink:
			err = h.assertLink(a)
		case AssertCounts:
			err = h.assertCounts(a)
		case AssertNotices:
			err = h.assertNotices(a)
		case AssertQuery:
			err = h.assertQuery(a)
		case AssertDirty:
			err = h.assertDirty(a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func (h *Harness) node(alias string) (*graph.Node, error) {
	id, ok := h.aliases[alias]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", alias)
	}
	return h.engine.Graph().Node(id)
}

// assertPins compares the full names, and optionally the types, of one
// side of a node.
func (h *Harness) assertPins(a Assertion) error {
	n, err := h.node(a.Node)
	if err != nil {
		return err
	}
	dir, err := ir.ParseDirection(a.Dir)
	if err != nil {
		return err
	}

	pins := n.Pins(dir)
	names := make([]string, 0, len(pins))
	types := make([]string, 0, len(pins))
	for _, p := range pins {
		names = append(names, p.Name)
		types = append(types, p.Type)
	}

	want := a.Names
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(names, want) {
		return &AssertionError{
			Type:     AssertPins,
			Expected: fmt.Sprintf("%s %s pins %q", a.Node, dir, want),
			Actual:   fmt.Sprintf("%q", names),
			Trace:    h.result.Trace,
		}
	}
	if a.Types != nil && !slices.Equal(types, a.Types) {
		return &AssertionError{
			Type:     AssertPins,
			Expected: fmt.Sprintf("%s %s pin types %q", a.Node, dir, a.Types),
			Actual:   fmt.Sprintf("%q", types),
			Trace:    h.result.Trace,
		}
	}
	return nil
}

func (h *Harness) assertLink(a Assertion) error {
	l, err := h.findLink(a.From, a.To)
	if err != nil {
		return err
	}
	switch {
	case a.Absent && l != nil:
		return &AssertionError{
			Type:     AssertLink,
			Expected: fmt.Sprintf("no link %s -> %s", a.From, a.To),
			Actual:   fmt.Sprintf("link %d", l.ID),
			Trace:    h.result.Trace,
		}
	case !a.Absent && l == nil:
		return &AssertionError{
			Type:     AssertLink,
			Expected: fmt.Sprintf("link %s -> %s", a.From, a.To),
			Actual:   "not found",
			Trace:    h.result.Trace,
		}
	}
	return nil
}

func (h *Harness) assertCounts(a Assertion) error {
	_, j, err := h.engine.Junction(h.aliases[a.Node])
	if err != nil {
		return err
	}
	in, out := j.Counts()
	if (a.Inputs != nil && *a.Inputs != in) || (a.Outputs != nil && *a.Outputs != out) {
		return &AssertionError{
			Type:     AssertCounts,
			Expected: fmt.Sprintf("%s counts in=%s out=%s", a.Node, optInt(a.Inputs), optInt(a.Outputs)),
			Actual:   fmt.Sprintf("in=%d out=%d", in, out),
		}
	}
	return nil
}

func optInt(v *int) string {
	if v == nil {
		return "*"
	}
	return fmt.Sprint(*v)
}

func (h *Harness) assertNotices(a Assertion) error {
	count := 0
	for _, notice := range h.notifier.Notices {
		if a.Node != "" && notice.NodeID != h.aliases[a.Node] {
			continue
		}
		if a.Title != "" && notice.Title != a.Title {
			continue
		}
		count++
	}
	if count != *a.Count {
		what := "notices"
		if a.Title != "" {
			what = fmt.Sprintf("%q notices", a.Title)
		}
		return &AssertionError{
			Type:     AssertNotices,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    h.result.Trace,
		}
	}
	return nil
}

func (h *Harness) assertQuery(a Assertion) error {
	n, err := h.node(a.Node)
	if err != nil {
		return err
	}
	w := n.Widget(engine.WidgetQuery)
	if w == nil {
		return fmt.Errorf("node %q has no query widget", a.Node)
	}
	if w.Value != a.Value {
		return &AssertionError{
			Type:     AssertQuery,
			Expected: fmt.Sprintf("%s query %q", a.Node, a.Value),
			Actual:   fmt.Sprintf("%q", w.Value),
			Trace:    h.result.Trace,
		}
	}
	return nil
}

func (h *Harness) assertDirty(a Assertion) error {
	n, err := h.node(a.Node)
	if err != nil {
		return err
	}
	var gate *engine.UpdateGate
	switch b := n.Behavior().(type) {
	case *engine.Highway:
		gate = b.Gate()
	case *engine.Junction:
		gate = b.Gate()
	default:
		return fmt.Errorf("node %q (%s) has no update gate", a.Node, n.Type)
	}
	if gate.Dirty() != *a.Dirty {
		return &AssertionError{
			Type:     AssertDirty,
			Expected: fmt.Sprintf("%s dirty=%t", a.Node, *a.Dirty),
			Actual:   fmt.Sprintf("dirty=%t", gate.Dirty()),
		}
	}
	return nil
}
