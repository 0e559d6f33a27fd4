package vad

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/convoflows/voice-activity-detector/pkg/audio"
	"github.com/convoflows/voice-activity-detector/pkg/trace"
)

// SegmentKind classifies a labeled segment.
type SegmentKind int

const (
	// SegmentNonSpeech marks a run of windows classified as non-speech.
	SegmentNonSpeech SegmentKind = iota
	// SegmentSpeech marks a run of windows classified as speech,
	// including pre-roll and post-roll padding.
	SegmentSpeech
)

// String returns the string representation of SegmentKind.
func (k SegmentKind) String() string {
	if k == SegmentSpeech {
		return "speech"
	}
	return "nonspeech"
}

// Segment is a finalized run of consecutive windows sharing one class.
// Concatenating the Chunks of all segments, in emission order, reproduces
// the window sequence of the predict pipeline exactly.
type Segment[T audio.Sample] struct {
	Kind   SegmentKind
	Chunks [][]T
}

// IsSpeech reports whether the segment was classified as speech.
func (s Segment[T]) IsSpeech() bool {
	return s.Kind == SegmentSpeech
}

// Samples returns the segment's windows concatenated into one slice.
func (s Segment[T]) Samples() []T {
	n := 0
	for _, c := range s.Chunks {
		n += len(c)
	}
	out := make([]T, 0, n)
	for _, c := range s.Chunks {
		out = append(out, c...)
	}
	return out
}

// LabelConfig parameterizes the label pipeline.
type LabelConfig struct {
	// Threshold is the speech probability cutoff; a window is classified
	// as speech iff its probability is >= Threshold.
	Threshold float32

	// PaddingChunks is the number of windows of pre-roll and post-roll
	// padding applied around each speech run. Zero disables padding and
	// merging: every window finalizes immediately as its own segment.
	PaddingChunks int
}

// IsValid validates the label configuration.
func (c LabelConfig) IsValid() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("invalid Threshold: must be in [0, 1], got %v", c.Threshold)
	}
	if c.PaddingChunks < 0 {
		return fmt.Errorf("invalid PaddingChunks: must be >= 0, got %d", c.PaddingChunks)
	}
	return nil
}

// labeler is the label state machine, shared by the pull and push
// pipelines. push feeds it one window at a time and returns any segments
// finalized by that window; flush drains the remainder at end of stream.
//
// Outside a speech run it holds at most PaddingChunks undecided records
// (the pre-roll candidates); older records drain into the open non-speech
// run, which is emitted as one segment when a speech transition closes it.
// Inside a speech run it buffers windows until PaddingChunks consecutive
// non-speech windows confirm the end; exactly that many suffice, and they
// are absorbed into the speech segment as post-roll.
type labeler[T audio.Sample] struct {
	threshold float32
	padding   int

	// current accumulates the open non-speech run (finally classified,
	// not yet emitted) while outside speech.
	current [][]T
	// pending holds up to padding undecided non-speech records that may
	// still be reclassified as pre-roll.
	pending [][]T
	// speech accumulates the open speech run, including tentative
	// post-roll, while inside speech.
	speech [][]T

	inSpeech bool
	// silence counts consecutive non-speech windows since the last
	// speech window of the open run.
	silence int
}

func newLabeler[T audio.Sample](cfg LabelConfig) *labeler[T] {
	return &labeler[T]{threshold: cfg.Threshold, padding: cfg.PaddingChunks}
}

func (l *labeler[T]) push(chunk []T, prob float32) []Segment[T] {
	isSpeech := prob >= l.threshold

	// Degenerate configuration: pure per-window threshold test with
	// immediate finalization, no merging.
	if l.padding == 0 {
		kind := SegmentNonSpeech
		if isSpeech {
			kind = SegmentSpeech
		}
		return []Segment[T]{{Kind: kind, Chunks: [][]T{chunk}}}
	}

	if l.inSpeech {
		l.speech = append(l.speech, chunk)
		if isSpeech {
			l.silence = 0
			return nil
		}
		l.silence++
		if l.silence < l.padding {
			return nil
		}
		// The run is over; the trailing silence stays as post-roll.
		seg := Segment[T]{Kind: SegmentSpeech, Chunks: l.speech}
		l.speech = nil
		l.inSpeech = false
		l.silence = 0
		return []Segment[T]{seg}
	}

	if !isSpeech {
		l.pending = append(l.pending, chunk)
		if len(l.pending) > l.padding {
			// Too old to become pre-roll; decided non-speech.
			l.current = append(l.current, l.pending[0])
			l.pending = l.pending[1:]
		}
		return nil
	}

	// Transition into speech: pending records become pre-roll, and the
	// open non-speech run, if any, is finalized.
	var segments []Segment[T]
	if len(l.current) > 0 {
		segments = append(segments, Segment[T]{Kind: SegmentNonSpeech, Chunks: l.current})
		l.current = nil
	}
	l.speech = make([][]T, 0, len(l.pending)+1)
	l.speech = append(l.speech, l.pending...)
	l.pending = nil
	l.speech = append(l.speech, chunk)
	l.inSpeech = true
	l.silence = 0
	return segments
}

// flush finalizes all buffered records at end of stream, using whatever
// classification they last held. It never waits for look-ahead that will
// not arrive.
func (l *labeler[T]) flush() (Segment[T], bool) {
	if l.inSpeech {
		seg := Segment[T]{Kind: SegmentSpeech, Chunks: l.speech}
		l.speech = nil
		l.inSpeech = false
		l.silence = 0
		return seg, len(seg.Chunks) > 0
	}

	chunks := append(l.current, l.pending...)
	l.current = nil
	l.pending = nil
	if len(chunks) == 0 {
		return Segment[T]{}, false
	}
	return Segment[T]{Kind: SegmentNonSpeech, Chunks: chunks}, true
}

// LabelIterator layers the label state machine over a PredictIterator,
// producing temporally smoothed speech and non-speech segments. Segments
// partition the window sequence: no gaps, no overlaps, original order.
type LabelIterator[T audio.Sample] struct {
	pred    *PredictIterator[T]
	lab     *labeler[T]
	queue   []Segment[T]
	seg     Segment[T]
	flushed bool
}

// NewLabelIterator attaches a labeling pipeline to an ordered sample
// sequence.
func NewLabelIterator[T audio.Sample](d *Detector[T], samples iter.Seq[T], cfg LabelConfig) (*LabelIterator[T], error) {
	if err := cfg.IsValid(); err != nil {
		return nil, err
	}
	return &LabelIterator[T]{
		pred: NewPredictIterator(d, samples),
		lab:  newLabeler[T](cfg),
	}, nil
}

// Next advances to the next finalized segment, consuming as many windows
// as the padding look-ahead requires. It returns false when the input is
// exhausted or inference fails; check Err to distinguish the two.
func (it *LabelIterator[T]) Next() bool {
	for len(it.queue) == 0 && !it.flushed {
		if !it.pred.Next() {
			it.flushed = true
			if it.pred.Err() != nil {
				// Terminated at the failing position; buffered records
				// are not flushed.
				return false
			}
			if seg, ok := it.lab.flush(); ok {
				it.queue = append(it.queue, seg)
			}
			break
		}
		it.queue = append(it.queue, it.lab.push(it.pred.Chunk(), it.pred.Probability())...)
	}

	if len(it.queue) == 0 {
		return false
	}
	it.seg = it.queue[0]
	it.queue = it.queue[1:]
	return true
}

// Segment returns the current segment. Valid until the next call to Next.
func (it *LabelIterator[T]) Segment() Segment[T] {
	return it.seg
}

// Err returns the inference error that terminated iteration, if any.
func (it *LabelIterator[T]) Err() error {
	return it.pred.Err()
}

// LabelStream is the push-based counterpart of LabelIterator.
type LabelStream[T audio.Sample] struct {
	id  string
	out chan Segment[T]
	err error
}

// NewLabelStream starts a labeling stream reading sample buffers from in
// until the channel is closed or ctx is cancelled. Closing in flushes all
// buffered windows as one final segment.
func NewLabelStream[T audio.Sample](ctx context.Context, d *Detector[T], in <-chan []T, cfg LabelConfig) (*LabelStream[T], error) {
	if err := cfg.IsValid(); err != nil {
		return nil, err
	}
	s := &LabelStream[T]{
		id:  uuid.NewString(),
		out: make(chan Segment[T], 1),
	}
	go s.run(ctx, d, in, cfg)
	return s, nil
}

// ID returns the stream's identity, used in trace attributes.
func (s *LabelStream[T]) ID() string {
	return s.id
}

// Segments returns the output channel. It is closed when the input channel
// closes, the context is cancelled, or inference fails.
func (s *LabelStream[T]) Segments() <-chan Segment[T] {
	return s.out
}

// Err reports why the stream terminated. It must only be called after
// Segments has been closed; nil means the input was fully consumed.
func (s *LabelStream[T]) Err() error {
	return s.err
}

func (s *LabelStream[T]) run(ctx context.Context, d *Detector[T], in <-chan []T, cfg LabelConfig) {
	ctx, span := trace.StartSpan(ctx, "vad.label_stream")
	span.SetAttributes(
		attribute.String(trace.AttrStreamID, s.id),
		attribute.Int(trace.AttrAudioSampleRate, d.SampleRate()),
		attribute.Int(trace.AttrWindowSize, d.WindowSize()),
		attribute.Float64(trace.AttrThreshold, float64(cfg.Threshold)),
		attribute.Int(trace.AttrPaddingChunks, cfg.PaddingChunks),
	)
	defer span.End()
	defer close(s.out)

	// The predict stage runs in this goroutine's child; its results drive
	// the same state machine the pull iterator uses.
	pred := NewPredictStream(ctx, d, in)
	lab := newLabeler[T](cfg)

	for res := range pred.Results() {
		for _, seg := range lab.push(res.Chunk, res.Probability) {
			if !s.send(ctx, span, seg) {
				return
			}
		}
	}
	if err := pred.Err(); err != nil {
		s.err = err
		trace.RecordError(span, err)
		return
	}
	if seg, ok := lab.flush(); ok {
		s.send(ctx, span, seg)
	}
}

func (s *LabelStream[T]) send(ctx context.Context, span oteltrace.Span, seg Segment[T]) bool {
	select {
	case s.out <- seg:
		trace.AddEvent(span, "vad.segment",
			attribute.String(trace.AttrSegmentKind, seg.Kind.String()),
			attribute.Int(trace.AttrSegmentChunks, len(seg.Chunks)),
		)
		return true
	case <-ctx.Done():
		s.err = ctx.Err()
		return false
	}
}
