// Package testutil provides deterministic collaborators for tests: a
// resettable random source for update gates, a scripted parser, and an
// httptest parsing service.
package testutil
