package transmit

import (
	"sync"

	"github.com/traceloom/traceloom/trace"
)

// MockTransmission retains segments handed to it for later verification in
// tests.
type MockTransmission struct {
	Mux      sync.RWMutex
	Segments []*trace.Segment
	Flushed  int
}

func (m *MockTransmission) Start() error { return nil }

func (m *MockTransmission) Report(segment *trace.Segment) {
	m.Mux.Lock()
	defer m.Mux.Unlock()
	m.Segments = append(m.Segments, segment)
}

func (m *MockTransmission) Flush() {
	m.Mux.Lock()
	defer m.Mux.Unlock()
	m.Flushed++
}
