//go:build !vad

package vad

import "fmt"

// LogLevel represents the ONNX Runtime logging level.
type LogLevel int

const (
	LogLevelVerbose LogLevel = iota + 1
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// SileroConfig holds configuration for creating a Silero VAD model.
type SileroConfig struct {
	ModelPath  string
	SampleRate int
	LogLevel   LogLevel
}

// InitRuntime returns an error indicating that ONNX support is not built in.
func InitRuntime(libraryPath string) error {
	return fmt.Errorf("silero support is not enabled. Rebuild with '-tags vad' and ensure ONNX Runtime is installed")
}

// DestroyRuntime is a no-op for the stub implementation.
func DestroyRuntime() error {
	return nil
}

// NewSileroModel returns an error indicating that ONNX support is not built in.
func NewSileroModel(cfg SileroConfig) (*SileroModel, error) {
	return nil, fmt.Errorf("silero support is not enabled. Rebuild with '-tags vad' and ensure ONNX Runtime is installed")
}

// SileroModel is a stub implementation when built without the 'vad' build tag.
type SileroModel struct{}

// Infer returns an error for the stub implementation.
func (m *SileroModel) Infer(samples []float32) (float32, error) {
	return 0, fmt.Errorf("silero support is not enabled")
}

// Reset returns an error for the stub implementation.
func (m *SileroModel) Reset() error {
	return fmt.Errorf("silero support is not enabled")
}

// Destroy returns an error for the stub implementation.
func (m *SileroModel) Destroy() error {
	return fmt.Errorf("silero support is not enabled")
}
