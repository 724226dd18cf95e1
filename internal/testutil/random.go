package testutil

import "sync"

// CountingReader is a deterministic io.Reader for update gates.
//
// Each Read fills p with consecutive byte values continuing from the last
// call, so the first 32-byte read is always 0x00..0x1f and the second
// 0x20..0x3f. Two readers created the same way yield identical hashes.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type CountingReader struct {
	mu   sync.Mutex
	next byte
}

// NewCountingReader creates a reader starting at byte 0.
func NewCountingReader() *CountingReader {
	return &CountingReader{}
}

// Read fills p and never fails.
func (r *CountingReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

// Reset rewinds the reader to byte 0.
func (r *CountingReader) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
}
