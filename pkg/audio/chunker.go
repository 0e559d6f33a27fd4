// Package audio provides audio processing utilities.
//
// chunker.go partitions sample sequences into fixed-size windows for the
// classifier. Two single-shot modes plus a streaming rebuffering type:
//
//   - ChunkExact rejects input that is not exactly the window size.
//   - ChunkTolerant coerces any length: long input is truncated, short
//     input is right-padded with silence (the zero sample).
//   - Chunker accepts arbitrarily sized sample buffers and yields complete
//     windows, consuming exactly one window's worth of samples per window.
package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLength indicates an exact-mode window of the wrong size.
	ErrInvalidLength = errors.New("invalid window length")

	// ErrInvalidWindowSize indicates a non-positive window size.
	ErrInvalidWindowSize = errors.New("window size must be positive")
)

// ChunkExact returns samples unchanged if it holds exactly size elements,
// and ErrInvalidLength otherwise.
func ChunkExact[T Sample](samples []T, size int) ([]T, error) {
	if len(samples) != size {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrInvalidLength, len(samples), size)
	}
	return samples, nil
}

// ChunkTolerant coerces samples to exactly size elements. Excess samples
// are dropped; a shortfall is filled with silence. Truncation returns a
// subslice of the input without copying.
func ChunkTolerant[T Sample](samples []T, size int) []T {
	if len(samples) >= size {
		return samples[:size:size]
	}
	window := make([]T, size)
	copy(window, samples)
	return window
}

// Chunker rebuffers a stream of arbitrarily sized sample buffers into
// consecutive fixed-size windows. Not safe for concurrent use.
type Chunker[T Sample] struct {
	size    int
	pending []T
}

// NewChunker creates a streaming chunker producing windows of size samples.
func NewChunker[T Sample](size int) (*Chunker[T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindowSize, size)
	}
	return &Chunker[T]{size: size}, nil
}

// Push appends samples to the pending buffer and returns every complete
// window now available, in input order. Returned windows are never
// modified by subsequent calls.
func (c *Chunker[T]) Push(samples []T) [][]T {
	data := append(c.pending, samples...)

	var windows [][]T
	for len(data) >= c.size {
		windows = append(windows, data[:c.size:c.size])
		data = data[c.size:]
	}
	c.pending = data
	return windows
}

// Flush returns the final, silence-padded window if samples are pending,
// resetting the chunker. The second result reports whether a window was
// produced.
func (c *Chunker[T]) Flush() ([]T, bool) {
	if len(c.pending) == 0 {
		return nil, false
	}
	window := ChunkTolerant(c.pending, c.size)
	c.pending = nil
	return window, true
}

// Pending returns the number of buffered samples awaiting a full window.
func (c *Chunker[T]) Pending() int {
	return len(c.pending)
}

// WindowSize returns the configured window size.
func (c *Chunker[T]) WindowSize() int {
	return c.size
}
