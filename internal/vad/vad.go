// Package vad decides whether decoded audio contains any speech at all, so
// silent input can skip inference.
package vad

import (
	"errors"

	"transcribe/internal/config"
)

// ErrUnavailable is returned when the binary has no VAD support compiled in.
var ErrUnavailable = errors.New("vad unavailable in this build")

// Detector reports whether samples contain speech.
type Detector interface {
	HasSpeech(samples []float32, sampleRate int) (bool, error)
}

// Settings control the webrtc detector.
type Settings struct {
	Mode        int // 0 (least aggressive) .. 3
	FrameMS     int // 10, 20 or 30
	MinSpeechMS int
}

// FromConfig extracts detector settings from cfg.
func FromConfig(cfg *config.Config) Settings {
	return Settings{
		Mode:        cfg.VAD.Aggressiveness,
		FrameMS:     cfg.VAD.FrameMS,
		MinSpeechMS: cfg.VAD.MinSpeechMS,
	}
}

// frames splits samples into little-endian 16-bit PCM frames of frameLen
// samples, dropping a trailing partial frame.
func frames(samples []float32, frameLen int) [][]byte {
	if frameLen <= 0 {
		return nil
	}
	n := len(samples) / frameLen
	out := make([][]byte, 0, n)
	for f := 0; f < n; f++ {
		b := make([]byte, frameLen*2)
		for i := 0; i < frameLen; i++ {
			s := samples[f*frameLen+i]
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			v := int16(s * 32767)
			b[2*i] = byte(v)
			b[2*i+1] = byte(uint16(v) >> 8)
		}
		out = append(out, b)
	}
	return out
}

// enoughSpeech reports whether voiced frames add up to minSpeechMS.
func enoughSpeech(voiced, frameMS, minSpeechMS int) bool {
	if minSpeechMS <= 0 {
		return voiced > 0
	}
	return voiced*frameMS >= minSpeechMS
}
