// Package audio provides audio processing utilities.
//
// sample.go defines the raw PCM sample types accepted by the detection
// pipeline and their conversion to the normalized float32 domain expected
// by the classifier.
//
// Normalization is a pure per-element map: integer samples are scaled by
// their type's maximum magnitude into [-1, 1], float32 samples are passed
// through unclamped (the classifier tolerates out-of-range values).
package audio

import "math"

// Sample is a raw PCM sample element type supported by the pipeline.
// Audio is mono; multi-channel input must be downmixed by the caller.
type Sample interface {
	int8 | int16 | float32
}

// sampleScale returns the divisor mapping T's range into [-1, 1].
func sampleScale[T Sample]() float32 {
	var zero T
	switch any(zero).(type) {
	case int8:
		return math.MaxInt8
	case int16:
		return math.MaxInt16
	default:
		// float32 samples are already in the normalized domain.
		return 1
	}
}

// Normalize converts raw samples to the normalized float32 representation.
// The element count is preserved exactly.
func Normalize[T Sample](samples []T) []float32 {
	return NormalizeInto(make([]float32, 0, len(samples)), samples)
}

// NormalizeInto appends the normalized form of samples to dst and returns
// the extended slice. Pass dst[:0] to reuse a scratch buffer across calls.
func NormalizeInto[T Sample](dst []float32, samples []T) []float32 {
	scale := sampleScale[T]()
	for _, s := range samples {
		dst = append(dst, float32(s)/scale)
	}
	return dst
}
