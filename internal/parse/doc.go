// Package parse is the client for the query parsing service.
//
// The service turns query text into an ordered pin schema. A request is a
// JSON POST of {"input": text}; a reply is {"error": [...], "order": [...]}
// where each order entry is a [kind, name] pair.
//
// Every reply body is checked against a CUE contract before it is decoded.
// A reply that fails the contract is treated like a network failure: the
// caller gets a *TransportError and must leave its pins alone.
//
// Concurrent calls with identical query text share one HTTP request.
package parse
