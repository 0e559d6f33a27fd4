package trace

// Common attribute keys used throughout the library
const (
	// Stream attributes
	AttrStreamID      = "stream.id"
	AttrWindowSize    = "stream.window_size"
	AttrThreshold     = "stream.threshold"
	AttrPaddingChunks = "stream.padding_chunks"

	// Audio attributes
	AttrAudioSampleRate = "audio.sample_rate"
	AttrAudioChannels   = "audio.channels"
	AttrAudioDataSize   = "audio.data_size"

	// Segment attributes
	AttrSegmentKind   = "segment.kind"
	AttrSegmentChunks = "segment.chunks"
)
