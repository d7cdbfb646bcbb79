package delivery

import "sync"

// SpillBuffer catches the narrow race where a payload arrives before any
// surface queue has attached a listener at process start. The first surface
// that becomes ready drains it opportunistically.
type SpillBuffer struct {
	mu  sync.Mutex
	buf []Payload
}

// NewSpillBuffer creates an empty spill buffer.
func NewSpillBuffer() *SpillBuffer {
	return &SpillBuffer{}
}

// Add appends one payload.
func (s *SpillBuffer) Add(p Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, p)
}

// TakeAll removes and returns every buffered payload in arrival order.
func (s *SpillBuffer) TakeAll() []Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buf
	s.buf = nil
	return out
}

// Len returns the number of buffered payloads.
func (s *SpillBuffer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}
