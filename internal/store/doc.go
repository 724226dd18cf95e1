// Package store provides SQLite-backed storage for saved workflows.
//
// A workflow is a named graph document. Each save stores the whole
// document and rebuilds a per-node index next to it:
//   - workflows: one row per name, with a UUIDv7 id, a revision and the
//     time of the last content change
//   - nodes: type, title, pin counts and type descriptor of each node
//
// # Revisions
//
// The revision increases only when the document digest changes, so saving
// the same graph twice is a no-op. Digests come from ir.Digest with the
// document domain.
//
// # Schema
//
// schema.sql creates the base tables. Later changes are entries in the
// migrations table, applied in order and tracked with PRAGMA user_version.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: nodes rows follow their workflow on delete
//
// Listings are ordered by name COLLATE BINARY so output is stable.
package store
