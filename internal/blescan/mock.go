package blescan

import (
	"context"
	"sync"
)

// MockScanner serves canned payloads for development and tests. Each Scan
// pops the next queued payload; an empty queue scans quietly.
type MockScanner struct {
	mu       sync.Mutex
	payloads [][]byte

	// Err, when set, is returned by every Scan instead of a payload.
	Err error
}

// NewMockScanner returns a scanner that serves the given payloads in order.
func NewMockScanner(payloads ...[]byte) *MockScanner {
	return &MockScanner{payloads: payloads}
}

// Enqueue adds a payload to the end of the queue.
func (s *MockScanner) Enqueue(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
}

// Scan pops the next payload, or returns ErrNoMeasurement when the queue
// is empty.
func (s *MockScanner) Scan(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.payloads) == 0 {
		return nil, ErrNoMeasurement
	}
	payload := s.payloads[0]
	s.payloads = s.payloads[1:]
	return payload, nil
}
