//go:build !whisper

package vad

type unavailable struct{}

// New returns a Detector that always reports ErrUnavailable.
func New(s Settings) Detector {
	return unavailable{}
}

func (unavailable) HasSpeech(samples []float32, sampleRate int) (bool, error) {
	return false, ErrUnavailable
}
