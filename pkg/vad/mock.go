package vad

import "sync"

// MockModel is a mock implementation of Model for testing.
// It allows customizing the behavior of Infer through the InferFunc field.
type MockModel struct {
	// InferFunc is called when Infer is invoked.
	// If nil, returns 0.0 (no speech detected).
	InferFunc func(samples []float32) (float32, error)

	// InferCalls records all calls to Infer for verification.
	InferCalls [][]float32

	// ResetCalled tracks if Reset was called.
	ResetCalled bool

	// DestroyCalled tracks if Destroy was called.
	DestroyCalled bool

	mu sync.Mutex
}

// NewMockModel creates a new MockModel with default behavior.
func NewMockModel() *MockModel {
	return &MockModel{
		InferCalls: make([][]float32, 0),
	}
}

// NewMockModelWithProb creates a MockModel that returns a fixed probability.
func NewMockModelWithProb(prob float32) *MockModel {
	return &MockModel{
		InferFunc: func(samples []float32) (float32, error) {
			return prob, nil
		},
		InferCalls: make([][]float32, 0),
	}
}

// NewMockModelWithSequence creates a MockModel that returns probabilities in
// sequence. After all probabilities are returned, it cycles back to the
// beginning.
func NewMockModelWithSequence(probs []float32) *MockModel {
	idx := 0
	return &MockModel{
		InferFunc: func(samples []float32) (float32, error) {
			if len(probs) == 0 {
				return 0, nil
			}
			prob := probs[idx]
			idx = (idx + 1) % len(probs)
			return prob, nil
		},
		InferCalls: make([][]float32, 0),
	}
}

// Infer implements Model.
func (m *MockModel) Infer(samples []float32) (float32, error) {
	m.mu.Lock()
	// Make a copy to avoid issues with reused slices
	samplesCopy := make([]float32, len(samples))
	copy(samplesCopy, samples)
	m.InferCalls = append(m.InferCalls, samplesCopy)
	m.mu.Unlock()

	if m.InferFunc != nil {
		return m.InferFunc(samples)
	}
	return 0.0, nil
}

// Reset implements Model.
func (m *MockModel) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCalled = true
	return nil
}

// Destroy implements Model.
func (m *MockModel) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DestroyCalled = true
	return nil
}

// GetInferCallCount returns the number of times Infer was called.
func (m *MockModel) GetInferCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.InferCalls)
}

// Ensure MockModel implements Model at compile time.
var _ Model = (*MockModel)(nil)
