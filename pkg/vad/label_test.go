package vad

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// labelInput builds one sample per window so window boundaries are easy to
// verify: window i contains the single sample i.
func labelInput(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i)
	}
	return samples
}

// speechProbs maps a pattern like "nnSnn" to per-window probabilities.
func speechProbs(pattern string) []float32 {
	probs := make([]float32, len(pattern))
	for i, c := range pattern {
		if c == 'S' {
			probs[i] = 0.9
		} else {
			probs[i] = 0.1
		}
	}
	return probs
}

func collectSegments(t *testing.T, pattern string, cfg LabelConfig) []Segment[int16] {
	t.Helper()

	d, err := NewDetector[int16](Config{
		Model:      NewMockModelWithSequence(speechProbs(pattern)),
		SampleRate: 16000,
		WindowSize: 1,
	})
	require.NoError(t, err)

	it, err := NewLabelIterator(d, slices.Values(labelInput(len(pattern))), cfg)
	require.NoError(t, err)

	var segments []Segment[int16]
	for it.Next() {
		segments = append(segments, it.Segment())
	}
	require.NoError(t, it.Err())
	return segments
}

// assertPartition checks that the segments reproduce windows 0..n-1 in
// order with no gaps or duplicates.
func assertPartition(t *testing.T, segments []Segment[int16], n int) {
	t.Helper()

	var all []int16
	for _, seg := range segments {
		all = append(all, seg.Samples()...)
	}
	require.Len(t, all, n, "segments must cover every window exactly once")
	for i, s := range all {
		assert.Equal(t, int16(i), s, "window order must be preserved")
	}
}

func TestLabelConfigIsValid(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LabelConfig
		wantErr bool
	}{
		{"valid", LabelConfig{Threshold: 0.5, PaddingChunks: 3}, false},
		{"zero padding", LabelConfig{Threshold: 0.5}, false},
		{"threshold bounds", LabelConfig{Threshold: 1.0}, false},
		{"threshold too high", LabelConfig{Threshold: 1.5}, true},
		{"threshold negative", LabelConfig{Threshold: -0.1}, true},
		{"negative padding", LabelConfig{Threshold: 0.5, PaddingChunks: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.IsValid()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLabelZeroPadding(t *testing.T) {
	// padding 0 degenerates to a per-window threshold test: one segment
	// per window, no merging even across adjacent speech windows.
	pattern := "nSSnn"
	segments := collectSegments(t, pattern, LabelConfig{Threshold: 0.5})

	require.Len(t, segments, len(pattern))
	for i, seg := range segments {
		require.Len(t, seg.Chunks, 1)
		assert.Equal(t, pattern[i] == 'S', seg.IsSpeech(), "window %d", i)
	}
	assertPartition(t, segments, len(pattern))
}

func TestLabelIsolatedSpeechPadding(t *testing.T) {
	// A single speech window with k non-speech windows on both sides
	// produces a speech segment spanning 2k+1 windows.
	const k = 3
	pattern := "nnnnnSnnnnn"
	segments := collectSegments(t, pattern, LabelConfig{Threshold: 0.5, PaddingChunks: k})

	require.Len(t, segments, 3)

	assert.Equal(t, SegmentNonSpeech, segments[0].Kind)
	assert.Len(t, segments[0].Chunks, 2)

	assert.Equal(t, SegmentSpeech, segments[1].Kind)
	assert.Len(t, segments[1].Chunks, 2*k+1)

	assert.Equal(t, SegmentNonSpeech, segments[2].Kind)
	assert.Len(t, segments[2].Chunks, 2)

	assertPartition(t, segments, len(pattern))
}

func TestLabelShortGapMerges(t *testing.T) {
	// A non-speech gap shorter than the padding does not split the run.
	segments := collectSegments(t, "SnnSnnnn", LabelConfig{Threshold: 0.5, PaddingChunks: 3})

	require.Len(t, segments, 2)
	assert.Equal(t, SegmentSpeech, segments[0].Kind)
	assert.Len(t, segments[0].Chunks, 7) // S nn S + 3 post-roll
	assert.Equal(t, SegmentNonSpeech, segments[1].Kind)
	assert.Len(t, segments[1].Chunks, 1)
	assertPartition(t, segments, 8)
}

func TestLabelExactGapSplits(t *testing.T) {
	// Exactly padding consecutive non-speech windows finalize the run;
	// the following speech starts a fresh segment.
	segments := collectSegments(t, "SnnSnn", LabelConfig{Threshold: 0.5, PaddingChunks: 2})

	require.Len(t, segments, 2)
	assert.Equal(t, SegmentSpeech, segments[0].Kind)
	assert.Len(t, segments[0].Chunks, 3) // S + 2 post-roll
	assert.Equal(t, SegmentSpeech, segments[1].Kind)
	assert.Len(t, segments[1].Chunks, 3) // S + 2 post-roll
	assertPartition(t, segments, 6)
}

func TestLabelEndOfStreamMidSpeech(t *testing.T) {
	// A stream ending inside a speech run (or its post-roll) flushes all
	// buffered windows as one final speech segment.
	segments := collectSegments(t, "nnnnSSn", LabelConfig{Threshold: 0.5, PaddingChunks: 2})

	require.Len(t, segments, 2)
	assert.Equal(t, SegmentNonSpeech, segments[0].Kind)
	assert.Len(t, segments[0].Chunks, 2)
	assert.Equal(t, SegmentSpeech, segments[1].Kind)
	assert.Len(t, segments[1].Chunks, 5) // 2 pre-roll + SS + pending n
	assertPartition(t, segments, 7)
}

func TestLabelAllNonSpeechSingleSegment(t *testing.T) {
	// With padding > 0, uninterrupted non-speech coalesces into one
	// segment emitted at end of stream.
	pattern := make([]byte, 100)
	for i := range pattern {
		pattern[i] = 'n'
	}
	segments := collectSegments(t, string(pattern), LabelConfig{Threshold: 0.75, PaddingChunks: 3})

	require.Len(t, segments, 1)
	assert.Equal(t, SegmentNonSpeech, segments[0].Kind)
	assert.Len(t, segments[0].Chunks, 100)
	assertPartition(t, segments, 100)
}

func TestLabelPartitionAcrossConfigs(t *testing.T) {
	pattern := "nSnnSSnnnSnnnnnSSSn"
	for _, padding := range []int{0, 1, 2, 3, 5, 10} {
		segments := collectSegments(t, pattern, LabelConfig{Threshold: 0.5, PaddingChunks: padding})
		assertPartition(t, segments, len(pattern))
	}
}

func TestLabelSilenceScenario(t *testing.T) {
	// 51,200 zero samples at window size 512: silence stays below the
	// threshold, so the whole input is one non-speech segment of 100
	// windows.
	d, err := NewDetector[int16](Config{
		Model:      NewMockModelWithProb(0.05),
		SampleRate: 16000,
		WindowSize: 512,
	})
	require.NoError(t, err)

	it, err := NewLabelIterator(d, slices.Values(make([]int16, 51200)), LabelConfig{
		Threshold:     0.75,
		PaddingChunks: 3,
	})
	require.NoError(t, err)

	var segments []Segment[int16]
	for it.Next() {
		segments = append(segments, it.Segment())
	}
	require.NoError(t, it.Err())

	require.Len(t, segments, 1)
	assert.Equal(t, SegmentNonSpeech, segments[0].Kind)
	assert.Len(t, segments[0].Chunks, 100)
	assert.Len(t, segments[0].Samples(), 51200)
}

func TestLabelInferenceFailure(t *testing.T) {
	calls := 0
	model := &MockModel{
		InferFunc: func(samples []float32) (float32, error) {
			calls++
			if calls > 4 {
				return 0, assert.AnError
			}
			return 0.1, nil
		},
	}
	d, err := NewDetector[int16](Config{Model: model, SampleRate: 16000, WindowSize: 1})
	require.NoError(t, err)

	it, err := NewLabelIterator(d, slices.Values(labelInput(10)), LabelConfig{
		Threshold:     0.5,
		PaddingChunks: 2,
	})
	require.NoError(t, err)

	// Buffered-but-undecided windows are not flushed after a failure.
	count := 0
	for it.Next() {
		count++
	}
	assert.Zero(t, count)
	assert.ErrorIs(t, it.Err(), ErrInference)
}

func TestLabelInvalidConfig(t *testing.T) {
	d := newTestDetector(t, NewMockModel(), 4)

	_, err := NewLabelIterator(d, slices.Values([]int16{}), LabelConfig{Threshold: 2})
	assert.Error(t, err)

	_, err = NewLabelStream(context.Background(), d, nil, LabelConfig{PaddingChunks: -1})
	assert.Error(t, err)
}

func TestLabelStream(t *testing.T) {
	t.Run("labels pushed audio and flushes on close", func(t *testing.T) {
		d, err := NewDetector[int16](Config{
			Model:      NewMockModelWithSequence(speechProbs("nnSnnnn")),
			SampleRate: 16000,
			WindowSize: 2,
		})
		require.NoError(t, err)

		in := make(chan []int16, 2)
		s, err := NewLabelStream(context.Background(), d, in, LabelConfig{
			Threshold:     0.5,
			PaddingChunks: 1,
		})
		require.NoError(t, err)

		// 7 windows of 2 samples, split awkwardly across pushes
		in <- make([]int16, 5)
		in <- make([]int16, 9)
		close(in)

		var segments []Segment[int16]
		for seg := range s.Segments() {
			segments = append(segments, seg)
		}
		require.NoError(t, s.Err())
		assert.NotEmpty(t, s.ID())

		// n [nSn] nnn: one nonspeech, speech with one window of padding
		// each side, then the trailing nonspeech flushed at close.
		require.Len(t, segments, 3)
		assert.Equal(t, SegmentNonSpeech, segments[0].Kind)
		assert.Len(t, segments[0].Chunks, 1)
		assert.Equal(t, SegmentSpeech, segments[1].Kind)
		assert.Len(t, segments[1].Chunks, 3)
		assert.Equal(t, SegmentNonSpeech, segments[2].Kind)
		assert.Len(t, segments[2].Chunks, 3)

		total := 0
		for _, seg := range segments {
			total += len(seg.Samples())
		}
		assert.Equal(t, 14, total)
	})

	t.Run("inference failure terminates without flush", func(t *testing.T) {
		model := &MockModel{
			InferFunc: func(samples []float32) (float32, error) {
				return 0, assert.AnError
			},
		}
		d := newTestDetector(t, model, 2)

		in := make(chan []int16, 1)
		s, err := NewLabelStream(context.Background(), d, in, LabelConfig{Threshold: 0.5, PaddingChunks: 2})
		require.NoError(t, err)

		in <- make([]int16, 6)
		close(in)

		for range s.Segments() {
			t.Fatal("no segments expected after failure on first window")
		}
		assert.ErrorIs(t, s.Err(), ErrInference)
	})

	t.Run("cancellation stops the stream", func(t *testing.T) {
		d := newTestDetector(t, NewMockModel(), 2)

		ctx, cancel := context.WithCancel(context.Background())
		in := make(chan []int16)
		s, err := NewLabelStream(ctx, d, in, LabelConfig{Threshold: 0.5, PaddingChunks: 1})
		require.NoError(t, err)
		cancel()

		select {
		case _, ok := <-s.Segments():
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("stream did not terminate after cancellation")
		}
		assert.ErrorIs(t, s.Err(), context.Canceled)
	})
}
