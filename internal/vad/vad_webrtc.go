//go:build whisper

package vad

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

type webrtcDetector struct {
	s Settings
}

// New returns a webrtc-backed Detector.
func New(s Settings) Detector {
	return &webrtcDetector{s: s}
}

func (d *webrtcDetector) HasSpeech(samples []float32, sampleRate int) (bool, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return false, fmt.Errorf("vad init: %w", err)
	}
	if err := v.SetMode(d.s.Mode); err != nil {
		return false, fmt.Errorf("vad mode: %w", err)
	}
	frameLen := sampleRate * d.s.FrameMS / 1000
	voiced := 0
	for _, frame := range frames(samples, frameLen) {
		active, err := v.Process(sampleRate, frame)
		if err != nil {
			return false, fmt.Errorf("vad process: %w", err)
		}
		if active {
			voiced++
			if enoughSpeech(voiced, d.s.FrameMS, d.s.MinSpeechMS) {
				return true, nil
			}
		}
	}
	return false, nil
}
