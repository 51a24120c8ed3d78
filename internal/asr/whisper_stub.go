//go:build !whisper

package asr

import "github.com/sirupsen/logrus"

// Supported reports whether this build can run inference.
const Supported = false

type stubBackend struct{}

// NewBackend returns a backend that cannot load models.
func NewBackend(logger *logrus.Logger) Backend {
	return stubBackend{}
}

func (stubBackend) Load(path string) (Model, error) {
	return nil, ErrNoWhisper
}
