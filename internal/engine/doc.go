// Package engine implements the pin-synchronization behaviors of the
// Highway and Junction nodes and the loop that drives them.
//
// ARCHITECTURE:
//
// Reactors:
// Highway and Junction implement graph.Behavior. On every connect and
// disconnect they rename, retype, add, or remove a single pin in place.
// Neither talks to the network.
//
// Reconciliation:
// A Highway update sends the query text to a Parser. An accepted schema is
// applied by the Reconciler: snapshot live wiring, strip non-system pins,
// rebuild from the schema, restore wiring by original name. A rejected or
// failed parse touches nothing but the query widget, which reverts to the
// last accepted text.
//
// Single-Writer Event Loop:
// All graph mutations happen on one goroutine, either the caller's (CLI)
// or Run's (serve). The parse call is the only asynchronous step; its
// answer is enqueued back and applied on the loop. Each Highway tags its
// updates with a generation from its own Clock and discards answers that
// are no longer current.
//
// CRITICAL PATTERNS:
//
// Re-entrancy guard:
// While a node strips or rebuilds its own pins it holds its guard, and its
// OnConnectionsChange ignores the events those edits raise. The guard is
// released on every exit path.
//
// Rename scope:
// Pin renames carry a graph.Scope. Bulk resets and renumbering are
// Suppressed; renames caused by an interactive connect or disconnect are
// Observed.
//
// Host contract:
// An event with an unknown direction or slot is a RuntimeError with
// ErrCodeHostContract. Run stops on it.
package engine
