package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/ledwatch/internal/ledstate"
)

// MockResult is one scripted detection outcome.
type MockResult struct {
	Classification ledstate.Classification
	Err            error
}

// MockDetector is a test implementation of the Detector interface.
// It replays scripted results in order and repeats the last one.
type MockDetector struct {
	results []MockResult
	calls   int
	mu      sync.Mutex
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector(results ...MockResult) *MockDetector {
	return &MockDetector{results: results}
}

// Script returns MockResults for a sequence of classifications.
func Script(cs ...ledstate.Classification) []MockResult {
	out := make([]MockResult, len(cs))
	for i, c := range cs {
		out[i] = MockResult{Classification: c}
	}
	return out
}

// Detect returns the next scripted result.
func (m *MockDetector) Detect(frame *gocv.Mat) (ledstate.Classification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.results) == 0 {
		return ledstate.NoLedDetected(), nil
	}

	i := min(m.calls, len(m.results)-1)
	m.calls++

	r := m.results[i]
	if r.Err != nil {
		return ledstate.AmbiguousCount(0), r.Err
	}
	return r.Classification, nil
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
