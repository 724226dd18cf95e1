package harness

import "github.com/roach88/pinsync/internal/ir"

// TraceEvent is one recorded step outcome or interactive rename.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"` // "connect", "disconnect", "update", "reload", "rename"
	Node   string `json:"node,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// NodeSnapshot is the final state of one declared node.
type NodeSnapshot struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Inputs     []string          `json:"inputs"`
	Outputs    []string          `json:"outputs"`
	Descriptor ir.TypeDescriptor `json:"descriptor"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step behaved as expected and all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains step outcomes and renames in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Nodes holds the final state of each declared node, in declaration order.
	Nodes []NodeSnapshot `json:"nodes"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Nodes:  []NodeSnapshot{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event.
func (r *Result) AddTrace(seq int64, kind, node, detail string) {
	r.Trace = append(r.Trace, TraceEvent{Seq: seq, Kind: kind, Node: node, Detail: detail})
}
