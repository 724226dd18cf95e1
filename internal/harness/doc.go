// Package harness runs graph scenarios against a real engine.
//
// A scenario declares a few nodes, scripts the parsing service, drives the
// graph through connects, disconnects, updates and reloads, and asserts on
// the final pins and links. Every run starts from a fresh engine.
//
// # Scenario Format
//
//	name: highway_rewire
//	description: "Updating a Highway keeps wires whose pin survives"
//	parser:
//	  "a + b":
//	    order: [[set, a], [set, b], [get, out]]
//	  "bad":
//	    error: ["unexpected token"]
//	nodes:
//	  - id: src
//	    type: Source
//	    outputs: [{name: seed, type: INT}]
//	  - id: hw
//	    type: Highway
//	steps:
//	  - update: {node: hw, query: "a + b"}
//	  - connect: {from: "src:0", to: "hw:1"}
//	  - update: {node: hw, query: "bad", expect: rejected}
//	  - reload: true
//	assertions:
//	  - type: pins
//	    node: hw
//	    dir: input
//	    names: [_way_in, "+a:INT", "+b"]
//	  - type: link
//	    from: "src:0"
//	    to: "hw:1"
//
// # Assertion Types
//
//   - pins: the full pin names (and optionally types) of one side of a node
//   - link: a link between two endpoints exists, or is absent
//   - counts: a Junction's concrete input and output counts
//   - notices: how many user notices were raised, optionally by title
//   - query: the query text a Highway holds
//   - dirty: whether a node's update gate is waiting for a new hash
//
// # Deterministic Testing
//
// Update gates draw from testutil.CountingReader, trace sequence numbers
// come from a logical clock, and the parser answers from its script, so
// identical scenarios produce identical snapshots for golden comparison.
package harness
