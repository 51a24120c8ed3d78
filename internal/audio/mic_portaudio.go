//go:build whisper

package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"transcribe/internal/config"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

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
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()
	out := []Device{}
	for i, d := range devs {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Device{
			Index:     i,
			Name:      d.Name,
			Channels:  d.MaxInputChannels,
			LatencyMs: d.DefaultLowInputLatency.Seconds() * 1000,
			Default:   def != nil && d.Name == def.Name,
		})
	}
	return out, nil
}

// Record captures mono audio from the configured input device until dur
// elapses or ctx is cancelled. Cancellation returns what was captured.
func Record(ctx context.Context, cfg *config.Config, dur time.Duration, logger *logrus.Logger) ([]float32, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	dev, err := selectDevice(cfg.Audio.DeviceName)
	if err != nil {
		return nil, err
	}

	frameMS := cfg.Audio.FrameMS
	if frameMS <= 0 {
		frameMS = 20
	}
	frameSamples := SampleRate * frameMS / 1000
	buf := make([]int16, frameSamples)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(SampleRate),
		FramesPerBuffer: frameSamples,
	}, &buf)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	defer func() { _ = stream.Close() }()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("start stream: %w", err)
	}
	defer func() { _ = stream.Stop() }()

	logger.Infof("recording %s from mic: %s @ %d Hz", dur, dev.Name, SampleRate)

	want := int(dur.Seconds() * SampleRate)
	pcm := make([]int16, 0, want)
	for len(pcm) < want {
		select {
		case <-ctx.Done():
			logger.Infof("recording interrupted after %d samples", len(pcm))
			return Int16ToFloat32(pcm), nil
		default:
		}
		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				logger.Warn("input overflow")
				continue
			}
			return nil, fmt.Errorf("stream read: %w", err)
		}
		pcm = append(pcm, buf...)
	}
	return Int16ToFloat32(pcm[:want]), nil
}

func selectDevice(preferred string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if preferred != "" {
		for _, d := range devs {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(preferred)) {
				return d, nil
			}
		}
	}
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		return def, nil
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no input devices found")
}
