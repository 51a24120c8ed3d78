//go:build !whisper

package audio

import (
	"context"
	"errors"
	"time"

	"transcribe/internal/config"

	"github.com/sirupsen/logrus"
)

// ErrNoMic is returned when the binary was built without PortAudio.
var ErrNoMic = errors.New("microphone support requires a build with '-tags whisper' (PortAudio required)")

// Device describes an input device.
type Device struct {
	Index     int     `json:"index"`
	Name      string  `json:"name"`
	Channels  int     `json:"channels"`
	LatencyMs float64 `json:"latency_ms"`
	Default   bool    `json:"default"`
}

// Devices lists available input devices.
func Devices() ([]Device, error) {
	return nil, ErrNoMic
}

// Record captures mono audio from the configured input device.
func Record(ctx context.Context, cfg *config.Config, dur time.Duration, logger *logrus.Logger) ([]float32, error) {
	return nil, ErrNoMic
}
