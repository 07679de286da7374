package metrics

import "sync"

// MockMetrics collects metrics that were registered and changed to allow
// tests to verify expected behavior
type MockMetrics struct {
	Registrations     map[string]string
	CounterIncrements map[string]int
	GaugeRecords      map[string]float64
	Histograms        map[string][]float64

	lock sync.Mutex
}

// Start initializes all metrics or resets all metrics to zero
func (m *MockMetrics) Start() {
	m.Registrations = make(map[string]string)
	m.CounterIncrements = make(map[string]int)
	m.GaugeRecords = make(map[string]float64)
	m.Histograms = make(map[string][]float64)
}

func (m *MockMetrics) Register(name string, metricType string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.Registrations[name] = metricType
}
func (m *MockMetrics) IncrementCounter(name string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.CounterIncrements[name] += 1
}
func (m *MockMetrics) Count(name string, n float64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.CounterIncrements[name] += int(n)
}
func (m *MockMetrics) Gauge(name string, val float64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.GaugeRecords[name] = val
}
func (m *MockMetrics) Histogram(name string, obs float64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.Histograms[name] = append(m.Histograms[name], obs)
}

// GetCount reads back a counter under the lock, for tests with concurrent
// producers.
func (m *MockMetrics) GetCount(name string) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.CounterIncrements[name]
}
