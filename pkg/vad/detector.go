package vad

import (
	"fmt"

	"github.com/convoflows/voice-activity-detector/pkg/audio"
)

const (
	// DefaultWindowSize is the number of samples per classifier window
	// when Config.WindowSize is left zero.
	DefaultWindowSize = 512

	// SampleRate8kHz and SampleRate16kHz are the sampling rates supported
	// by the Silero VAD model.
	SampleRate8kHz  = 8000
	SampleRate16kHz = 16000
)

// Config holds configuration for creating a Detector.
type Config struct {
	// Model is the classifier that scores each window. Required.
	Model Model

	// SampleRate is the sampling rate of the input audio.
	// Supported values are 8000 and 16000.
	SampleRate int

	// WindowSize is the number of samples per window.
	// Defaults to DefaultWindowSize.
	WindowSize int
}

// Detector scores fixed-size windows of raw audio. It coerces window
// lengths, normalizes samples and delegates to the Model, which carries
// recurrent state across calls.
//
// A Detector serves exactly one logical audio source: windows must arrive
// in order, and a single instance must not be shared across concurrent
// sources. Use one Detector per source, or Reset between sources.
type Detector[T audio.Sample] struct {
	model      Model
	sampleRate int
	windowSize int

	// Scratch buffer reused across Predict calls.
	normalized []float32
}

// NewDetector creates a Detector for the given sample type.
func NewDetector[T audio.Sample](cfg Config) (*Detector[T], error) {
	if cfg.Model == nil {
		return nil, ErrNilModel
	}
	if cfg.SampleRate != SampleRate8kHz && cfg.SampleRate != SampleRate16kHz {
		return nil, fmt.Errorf("%w: got %d", ErrUnsupportedSampleRate, cfg.SampleRate)
	}
	if cfg.WindowSize == 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.WindowSize < 0 {
		return nil, fmt.Errorf("%w: got %d", audio.ErrInvalidWindowSize, cfg.WindowSize)
	}

	return &Detector[T]{
		model:      cfg.Model,
		sampleRate: cfg.SampleRate,
		windowSize: cfg.WindowSize,
		normalized: make([]float32, 0, cfg.WindowSize),
	}, nil
}

// Predict returns the speech probability for one window of samples.
// The window length is coerced: excess samples are dropped and a shortfall
// is padded with silence.
func (d *Detector[T]) Predict(samples []T) (float32, error) {
	window := audio.ChunkTolerant(samples, d.windowSize)
	return d.infer(window)
}

// PredictExact returns the speech probability for one window of samples,
// rejecting any input that is not exactly WindowSize samples with
// audio.ErrInvalidLength.
func (d *Detector[T]) PredictExact(samples []T) (float32, error) {
	window, err := audio.ChunkExact(samples, d.windowSize)
	if err != nil {
		return 0, err
	}
	return d.infer(window)
}

func (d *Detector[T]) infer(window []T) (float32, error) {
	d.normalized = audio.NormalizeInto(d.normalized[:0], window)

	prob, err := d.model.Infer(d.normalized)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInference, err)
	}
	return prob, nil
}

// Reset clears the model's recurrent state. Call it before feeding windows
// from a new, unrelated audio source through the same Detector.
func (d *Detector[T]) Reset() error {
	return d.model.Reset()
}

// Close releases the underlying model. The Detector and any pipelines
// built on it must not be used afterwards.
func (d *Detector[T]) Close() error {
	return d.model.Destroy()
}

// SampleRate returns the configured sampling rate.
func (d *Detector[T]) SampleRate() int {
	return d.sampleRate
}

// WindowSize returns the configured window size in samples.
func (d *Detector[T]) WindowSize() int {
	return d.windowSize
}
