package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/roach88/pinsync/internal/ir"
)

// ParseServer is an httptest parsing service backed by a StubParser.
type ParseServer struct {
	*httptest.Server

	Parser *StubParser

	mu       sync.Mutex
	status   int
	raw      []byte
	requests []*http.Request
}

// NewParseServer starts a parsing service at path and closes it when the
// test ends.
func NewParseServer(t *testing.T, path string) *ParseServer {
	t.Helper()
	ps := &ParseServer{Parser: NewStubParser(), status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc(path, ps.handle)
	ps.Server = httptest.NewServer(mux)
	t.Cleanup(ps.Close)
	return ps
}

// FailWith makes every following request answer with status.
func (ps *ParseServer) FailWith(status int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.status = status
}

// Respond makes every following request answer 200 with body verbatim.
func (ps *ParseServer) Respond(body string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.raw = []byte(body)
}

// Requests returns the requests received so far.
func (ps *ParseServer) Requests() []*http.Request {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]*http.Request(nil), ps.requests...)
}

func (ps *ParseServer) handle(w http.ResponseWriter, r *http.Request) {
	ps.mu.Lock()
	ps.requests = append(ps.requests, r)
	status, raw := ps.status, ps.raw
	ps.mu.Unlock()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if raw != nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
		return
	}
	var req ir.ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := ps.Parser.Parse(r.Context(), req.Input)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
