// Package graph is an in-memory model of the host graph editor contract.
//
// The real editor is an external collaborator; pinsync only depends on the
// capabilities listed below, and this package provides them so the pin
// reconciliation logic can run headless (CLI, HTTP bridge, tests):
//
//   - node types registered with their declared pins and behavior
//   - node lifecycle hooks (created, configured)
//   - pin mutation (add/remove input or output by index, rename, retype)
//   - connection operations (connect an output slot to an input slot by node id)
//   - a link registry keyed by link id, with an ad-hoc Replaced flag
//   - per-widget serialization hooks
//
// # Event ordering
//
// Connect mirrors the host editor: the target's OnConnectInput and the
// origin's OnConnectOutput run first and may veto; an existing link on the
// target input is then disconnected (its handlers see Link.Replaced as set
// by OnConnectInput); finally the new link is registered and both nodes
// receive a connected OnConnectionsChange.
//
// # Concurrency
//
// A Graph is not safe for concurrent use. All mutation happens on one
// goroutine (the editor's event dispatch, or the engine's Run loop).
package graph
