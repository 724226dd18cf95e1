package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/pinsync/internal/ir"
)

// StubParser answers parse calls from a script keyed by query text.
//
// Queries with no scripted response get an empty schema. Err, when set,
// fails every call. Hold, when set, blocks each call until a value is
// received or the context ends; tests use it to keep a request in flight.
//
// Thread-safety: safe for concurrent use.
type StubParser struct {
	mu        sync.Mutex
	responses map[string]*ir.ParseResponse
	calls     []string

	Err  error
	Hold chan struct{}
}

// NewStubParser creates a parser with no scripted responses.
func NewStubParser() *StubParser {
	return &StubParser{responses: make(map[string]*ir.ParseResponse)}
}

// On scripts the schema returned for query.
func (s *StubParser) On(query string, order ...ir.SchemaEntry) *StubParser {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[query] = &ir.ParseResponse{Error: []string{}, Order: order}
	return s
}

// Reject scripts validation errors for query.
func (s *StubParser) Reject(query string, messages ...string) *StubParser {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[query] = &ir.ParseResponse{Error: messages, Order: ir.Schema{}}
	return s
}

// Parse returns the scripted answer.
func (s *StubParser) Parse(ctx context.Context, query string) (*ir.ParseResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	hold, failure := s.Hold, s.Err
	resp, ok := s.responses[query]
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, fmt.Errorf("stub parser: %w", failure)
	}
	if !ok {
		return &ir.ParseResponse{Error: []string{}, Order: ir.Schema{}}, nil
	}
	out := *resp
	out.Order = append(ir.Schema{}, resp.Order...)
	return &out, nil
}

// Calls returns the queries received so far, in order.
func (s *StubParser) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Set, Get and Eat build schema entries.
func Set(name string) ir.SchemaEntry { return ir.SchemaEntry{Kind: ir.KindSet, Name: name} }
func Get(name string) ir.SchemaEntry { return ir.SchemaEntry{Kind: ir.KindGet, Name: name} }
func Eat(name string) ir.SchemaEntry { return ir.SchemaEntry{Kind: ir.KindEat, Name: name} }
