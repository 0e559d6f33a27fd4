package vad

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/convoflows/voice-activity-detector/pkg/audio"
	"github.com/convoflows/voice-activity-detector/pkg/trace"
)

// PredictResult pairs one window with its speech probability.
type PredictResult[T audio.Sample] struct {
	Chunk       []T
	Probability float32
}

// PredictIterator lazily scores an ordered sample sequence one window at a
// time, in strict input order. It is single-pass: once exhausted it cannot
// be restarted.
//
// Usage follows the scanner pattern:
//
//	it := vad.NewPredictIterator(detector, slices.Values(samples))
//	for it.Next() {
//	    chunk, prob := it.Chunk(), it.Probability()
//	    ...
//	}
//	if err := it.Err(); err != nil {
//	    ...
//	}
type PredictIterator[T audio.Sample] struct {
	d    *Detector[T]
	next func() (T, bool)
	stop func()

	chunk []T
	prob  float32
	err   error
	done  bool
}

// NewPredictIterator attaches a Detector to an ordered sample sequence.
// The iterator consumes exactly WindowSize samples per window; the final
// window is padded with silence if the input length is not a multiple of
// the window size.
func NewPredictIterator[T audio.Sample](d *Detector[T], samples iter.Seq[T]) *PredictIterator[T] {
	next, stop := iter.Pull(samples)
	return &PredictIterator[T]{d: d, next: next, stop: stop}
}

// Next advances to the next window, invoking the classifier once.
// It returns false when the input is exhausted or inference fails;
// check Err to distinguish the two.
func (it *PredictIterator[T]) Next() bool {
	if it.done {
		return false
	}

	window := make([]T, 0, it.d.WindowSize())
	for len(window) < cap(window) {
		s, ok := it.next()
		if !ok {
			break
		}
		window = append(window, s)
	}
	if len(window) == 0 {
		it.finish()
		return false
	}

	window = audio.ChunkTolerant(window, it.d.WindowSize())
	prob, err := it.d.Predict(window)
	if err != nil {
		// Fatal for this pipeline instance; already-produced results stand.
		it.err = err
		it.finish()
		return false
	}

	it.chunk = window
	it.prob = prob
	return true
}

// Chunk returns the current window, including any silence padding on the
// final window. Valid until the next call to Next.
func (it *PredictIterator[T]) Chunk() []T {
	return it.chunk
}

// Probability returns the speech probability of the current window.
func (it *PredictIterator[T]) Probability() float32 {
	return it.prob
}

// Err returns the inference error that terminated iteration, if any.
func (it *PredictIterator[T]) Err() error {
	return it.err
}

func (it *PredictIterator[T]) finish() {
	it.done = true
	it.stop()
}

// PredictStream is the push-based counterpart of PredictIterator. It reads
// arbitrarily sized sample buffers from an input channel, rebuffers them
// into windows and delivers results downstream in strict input order, one
// classifier invocation per window.
type PredictStream[T audio.Sample] struct {
	id  string
	d   *Detector[T]
	out chan PredictResult[T]
	err error
}

// NewPredictStream starts a stream reading from in until the channel is
// closed or ctx is cancelled. Closing in flushes the padded final window.
// Results must be drained; the stream goroutine exits once Results is
// closed, so dropping the stream after cancellation does not leak.
func NewPredictStream[T audio.Sample](ctx context.Context, d *Detector[T], in <-chan []T) *PredictStream[T] {
	s := &PredictStream[T]{
		id:  uuid.NewString(),
		d:   d,
		out: make(chan PredictResult[T], 1),
	}
	go s.run(ctx, in)
	return s
}

// ID returns the stream's identity, used in trace attributes.
func (s *PredictStream[T]) ID() string {
	return s.id
}

// Results returns the output channel. It is closed when the input channel
// closes, the context is cancelled, or inference fails.
func (s *PredictStream[T]) Results() <-chan PredictResult[T] {
	return s.out
}

// Err reports why the stream terminated. It must only be called after
// Results has been closed; nil means the input was fully consumed.
func (s *PredictStream[T]) Err() error {
	return s.err
}

func (s *PredictStream[T]) run(ctx context.Context, in <-chan []T) {
	ctx, span := trace.StartSpan(ctx, "vad.predict_stream")
	span.SetAttributes(
		attribute.String(trace.AttrStreamID, s.id),
		attribute.Int(trace.AttrAudioSampleRate, s.d.SampleRate()),
		attribute.Int(trace.AttrWindowSize, s.d.WindowSize()),
	)
	defer span.End()
	defer close(s.out)

	chunker, err := audio.NewChunker[T](s.d.WindowSize())
	if err != nil {
		s.err = err
		trace.RecordError(span, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.err = ctx.Err()
			return
		case buf, ok := <-in:
			if !ok {
				if tail, pending := chunker.Flush(); pending {
					s.emit(ctx, tail)
				}
				return
			}
			for _, window := range chunker.Push(buf) {
				if !s.emit(ctx, window) {
					return
				}
			}
		}
	}
}

func (s *PredictStream[T]) emit(ctx context.Context, window []T) bool {
	prob, err := s.d.Predict(window)
	if err != nil {
		s.err = err
		trace.RecordError(trace.SpanFromContext(ctx), err)
		return false
	}
	select {
	case s.out <- PredictResult[T]{Chunk: window, Probability: prob}:
		return true
	case <-ctx.Done():
		s.err = ctx.Err()
		return false
	}
}
