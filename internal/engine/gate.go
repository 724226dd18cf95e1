package engine

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/roach88/pinsync/internal/ir"
)

// UpdateGate decides when a node's persisted widget value gets a fresh
// content hash. The hash is recomputed once per dirty cycle and whenever
// none has been computed yet; reading the value clears the flag.
//
// The gate is process-local. Neither the flag nor the hash is restored
// from a document.
type UpdateGate struct {
	dirty bool
	hash  string
	rand  io.Reader
}

// NewUpdateGate returns a clean gate drawing randomness from r, or from
// crypto/rand when r is nil.
func NewUpdateGate(r io.Reader) *UpdateGate {
	if r == nil {
		r = rand.Reader
	}
	return &UpdateGate{rand: r}
}

// MarkDirty requests a new hash on the next Value call.
func (g *UpdateGate) MarkDirty() { g.dirty = true }

// Dirty reports whether a new hash is pending.
func (g *UpdateGate) Dirty() bool { return g.dirty }

// Hash returns the current hash, empty before the first Value call.
func (g *UpdateGate) Hash() string { return g.hash }

// Value returns the serialized widget value for data.
func (g *UpdateGate) Value(data string) (ir.UpdateValue, error) {
	if g.dirty || g.hash == "" {
		h, err := ir.RandomHash(g.rand)
		if err != nil {
			return ir.UpdateValue{}, fmt.Errorf("update gate: %w", err)
		}
		g.hash = h
	}
	g.dirty = false
	return ir.UpdateValue{Data: data, Update: g.hash}, nil
}
