//go:build vad

// Package vad provides voice activity detection on top of the Silero VAD model.
//
// This file implements the Model interface using onnxruntime_go for ONNX
// inference.
//
// Usage:
//
//	// Initialize the ONNX runtime (call once at startup)
//	if err := vad.InitRuntime(""); err != nil {
//	    log.Fatal(err)
//	}
//	defer vad.DestroyRuntime()
//
//	// Create a model
//	model, err := vad.NewSileroModel(vad.SileroConfig{
//	    ModelPath:  "path/to/silero_vad.onnx",
//	    SampleRate: 16000,
//	})
package vad

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	stateLen   = 2 * 1 * 128
	contextLen = 64
)

// LogLevel represents the ONNX Runtime logging level.
type LogLevel int

const (
	LogLevelVerbose LogLevel = iota + 1
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// runtimeInitialized tracks whether the ONNX runtime has been initialized.
var (
	runtimeInitialized bool
	runtimeMu          sync.Mutex
)

// InitRuntime initializes the ONNX runtime environment.
// libraryPath can be empty to use auto-detection, or specify the path to libonnxruntime.so.
// This should be called once at application startup before creating any models.
func InitRuntime(libraryPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeInitialized {
		return nil
	}

	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	} else {
		// Try to find the library in common locations
		libPath := findONNXRuntimeLibrary()
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	runtimeInitialized = true
	return nil
}

// DestroyRuntime destroys the ONNX runtime environment.
// This should be called once at application shutdown.
func DestroyRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !runtimeInitialized {
		return nil
	}

	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("failed to destroy ONNX runtime: %w", err)
	}

	runtimeInitialized = false
	return nil
}

// findONNXRuntimeLibrary tries to find the ONNX Runtime shared library.
func findONNXRuntimeLibrary() string {
	// Common paths to check
	paths := []string{
		// Environment variable
		os.Getenv("ONNXRUNTIME_LIB"),
		// Linux system paths
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/onnxruntime/lib/libonnxruntime.so",
		// macOS Homebrew paths
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
	}

	// Also check LD_LIBRARY_PATH
	if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
		for _, dir := range filepath.SplitList(ldPath) {
			paths = append(paths, filepath.Join(dir, "libonnxruntime.so"))
		}
	}

	// Check DYLD_LIBRARY_PATH for macOS
	if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
		for _, dir := range filepath.SplitList(dyldPath) {
			paths = append(paths, filepath.Join(dir, "libonnxruntime.dylib"))
		}
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// SileroConfig holds configuration for creating a Silero VAD model.
type SileroConfig struct {
	// The path to the ONNX Silero VAD model file to load.
	ModelPath string
	// The sampling rate of the input audio samples. Supported values are 8000 and 16000.
	SampleRate int
	// The loglevel for the onnx environment, by default it is set to LogLevelWarn.
	LogLevel LogLevel
}

// IsValid validates the model configuration.
func (c SileroConfig) IsValid() error {
	if c.ModelPath == "" {
		return fmt.Errorf("invalid ModelPath: should not be empty")
	}

	if c.SampleRate != 8000 && c.SampleRate != 16000 {
		return ErrUnsupportedSampleRate
	}

	return nil
}

// SileroModel runs the Silero VAD ONNX model. It owns the LSTM recurrent
// state and the rolling context buffer, so one instance serves exactly one
// audio source. Not safe for concurrent use.
type SileroModel struct {
	session *ort.DynamicAdvancedSession

	cfg SileroConfig

	// RNN state (h, c) for the LSTM layers
	state [stateLen]float32
	// Context buffer for continuous processing
	ctx [contextLen]float32
	// currSample tracks total samples processed, used to determine if context should be applied.
	// On the first inference (currSample == 0), no context is prepended.
	currSample int

	inputNames  []string
	outputNames []string
}

// NewSileroModel creates a new Silero VAD model with the given configuration.
// InitRuntime is called automatically if it has not been called yet.
func NewSileroModel(cfg SileroConfig) (*SileroModel, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Ensure runtime is initialized
	runtimeMu.Lock()
	if !runtimeInitialized {
		runtimeMu.Unlock()
		// Auto-initialize runtime
		if err := InitRuntime(""); err != nil {
			return nil, fmt.Errorf("%w: ONNX runtime not initialized: %v", ErrModelLoad, err)
		}
	} else {
		runtimeMu.Unlock()
	}

	m := &SileroModel{
		cfg:         cfg,
		inputNames:  []string{"input", "state", "sr"},
		outputNames: []string{"output", "stateN"},
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session options: %v", ErrModelLoad, err)
	}
	defer options.Destroy()

	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("%w: failed to set graph optimization level: %v", ErrModelLoad, err)
	}

	// Single-threaded inference; the model is small and sequential anyway.
	if err := options.SetIntraOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("%w: failed to set intra-op threads: %v", ErrModelLoad, err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("%w: failed to set inter-op threads: %v", ErrModelLoad, err)
	}

	// Dynamic session allows variable window sizes
	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		m.inputNames,
		m.outputNames,
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session: %v", ErrModelLoad, err)
	}

	m.session = session
	return m, nil
}

// Infer runs inference on one window and returns the speech probability.
// samples should be normalized float32 values in the range [-1, 1].
func (m *SileroModel) Infer(samples []float32) (float32, error) {
	if m == nil {
		return 0, fmt.Errorf("invalid nil model")
	}

	// Handle context: prepend previous samples for continuity (except on first call)
	pcm := samples
	if m.currSample > 0 {
		pcm = append(m.ctx[:], samples...)
	}
	// Save the last contextLen samples as context for the next iteration
	if len(samples) >= contextLen {
		copy(m.ctx[:], samples[len(samples)-contextLen:])
	}
	m.currSample += len(samples)

	inputShape := ort.NewShape(1, int64(len(pcm)))
	inputTensor, err := ort.NewTensor(inputShape, pcm)
	if err != nil {
		return 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	stateShape := ort.NewShape(2, 1, 128)
	stateTensor, err := ort.NewTensor(stateShape, m.state[:])
	if err != nil {
		return 0, fmt.Errorf("failed to create state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	srShape := ort.NewShape(1)
	srData := []int64{int64(m.cfg.SampleRate)}
	srTensor, err := ort.NewTensor(srShape, srData)
	if err != nil {
		return 0, fmt.Errorf("failed to create sr tensor: %w", err)
	}
	defer srTensor.Destroy()

	outputShape := ort.NewShape(1, 1)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return 0, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	stateNShape := ort.NewShape(2, 1, 128)
	stateNTensor, err := ort.NewEmptyTensor[float32](stateNShape)
	if err != nil {
		return 0, fmt.Errorf("failed to create stateN tensor: %w", err)
	}
	defer stateNTensor.Destroy()

	inputs := []ort.Value{inputTensor, stateTensor, srTensor}
	outputs := []ort.Value{outputTensor, stateNTensor}

	if err := m.session.Run(inputs, outputs); err != nil {
		return 0, fmt.Errorf("failed to run inference: %w", err)
	}

	// Carry the updated recurrent state into the next call
	stateNData := stateNTensor.GetData()
	copy(m.state[:], stateNData)

	outputData := outputTensor.GetData()
	if len(outputData) == 0 {
		return 0, fmt.Errorf("empty output from inference")
	}

	return outputData[0], nil
}

// Reset resets the model's recurrent state and context buffer.
// This should be called when starting a new audio stream.
func (m *SileroModel) Reset() error {
	if m == nil {
		return fmt.Errorf("invalid nil model")
	}

	for i := range stateLen {
		m.state[i] = 0
	}
	for i := range contextLen {
		m.ctx[i] = 0
	}
	m.currSample = 0

	return nil
}

// Destroy releases all resources held by the model.
// The model should not be used after calling Destroy.
func (m *SileroModel) Destroy() error {
	if m == nil {
		return fmt.Errorf("invalid nil model")
	}

	if m.session != nil {
		if err := m.session.Destroy(); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
		m.session = nil
	}

	return nil
}

// Ensure SileroModel implements Model at compile time.
var _ Model = (*SileroModel)(nil)
