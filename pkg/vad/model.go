package vad

// Model is the classifier collaborator behind a Detector.
// Implementations carry recurrent state across calls; a Model instance
// therefore belongs to exactly one audio source and must see its windows
// in arrival order. The interface allows mock implementations in testing.
type Model interface {
	// Infer runs inference on one window of audio and returns the speech
	// probability. samples should be normalized float32 values in the
	// range [-1, 1]. Returns a probability value in [0, 1] where higher
	// values indicate speech.
	Infer(samples []float32) (float32, error)

	// Reset resets the model's internal recurrent state.
	// This should be called when starting a new audio stream.
	Reset() error

	// Destroy releases all resources held by the model.
	// The model should not be used after calling Destroy.
	Destroy() error
}
