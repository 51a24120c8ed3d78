// Package audio turns audio files and microphone input into the mono
// 16 kHz float32 samples whisper expects.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"transcribe/internal/config"

	"github.com/go-audio/wav"
	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// SampleRate is the rate whisper models are trained on.
const SampleRate = 16000

var errUnsupportedWAV = errors.New("unsupported wav encoding")

// Decoder loads audio files. RIFF/WAVE PCM is decoded in-process; anything
// else is converted by ffmpeg.
type Decoder struct {
	SampleRate int
	FFmpeg     string // command line, split with shell rules
	logger     *logrus.Logger
}

// NewDecoder returns a Decoder configured from cfg. Output is always
// SampleRate, the rate the rest of the pipeline assumes.
func NewDecoder(cfg *config.Config, logger *logrus.Logger) *Decoder {
	return &Decoder{SampleRate: SampleRate, FFmpeg: cfg.Audio.FFmpeg, logger: logger}
}

// Load decodes path into mono float32 samples at d.SampleRate.
func (d *Decoder) Load(ctx context.Context, path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	isWAV, err := sniffWAV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if isWAV {
		samples, err := decodeWAV(f, d.SampleRate)
		if err == nil {
			d.logger.Debugf("decoded wav %s: %d samples", path, len(samples))
			return samples, nil
		}
		if !errors.Is(err, errUnsupportedWAV) {
			return nil, fmt.Errorf("decode wav %s: %w", path, err)
		}
		d.logger.Debugf("wav %s: %v; falling back to ffmpeg", path, err)
	}
	return d.decodeFFmpeg(ctx, path)
}

func sniffWAV(r io.ReadSeeker) (bool, error) {
	hdr := make([]byte, 12)
	n, err := io.ReadFull(r, hdr)
	if _, serr := r.Seek(0, io.SeekStart); serr != nil {
		return false, serr
	}
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return n == 12 && string(hdr[0:4]) == "RIFF" && string(hdr[8:12]) == "WAVE", nil
}

func decodeWAV(r io.ReadSeeker, dstRate int) ([]float32, error) {
	dec := wav.NewDecoder(r)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: format tag %d", errUnsupportedWAV, dec.WavAudioFormat)
	}
	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = buf.SourceBitDepth
	}
	if depth != 8 && depth != 16 && depth != 24 && depth != 32 {
		return nil, fmt.Errorf("%w: %d-bit samples", errUnsupportedWAV, depth)
	}
	channels := 1
	rate := dstRate
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		if buf.Format.SampleRate > 0 {
			rate = buf.Format.SampleRate
		}
	}
	samples := Normalize(buf.Data, depth)
	return Resample(Downmix(samples, channels), rate, dstRate), nil
}

// Normalize converts integer PCM samples to float32 in [-1, 1].
// 8-bit WAV samples are unsigned.
func Normalize(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	if bitDepth == 8 {
		for i, v := range data {
			out[i] = float32(v-128) / 128.0
		}
		return out
	}
	scale := float32(int64(1) << (bitDepth - 1))
	for i, v := range data {
		out[i] = float32(v) / scale
	}
	return out
}

func (d *Decoder) decodeFFmpeg(ctx context.Context, path string) ([]float32, error) {
	argv, err := shlex.Split(d.FFmpeg)
	if err != nil {
		return nil, fmt.Errorf("parse audio.ffmpeg: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("audio.ffmpeg is empty; cannot decode %s", path)
	}
	args := append(argv[1:],
		"-nostdin", "-i", path,
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", "1", "-ar", strconv.Itoa(d.SampleRate),
		"-",
	)
	cmd := exec.CommandContext(ctx, argv[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	d.logger.Debugf("running %s %s", argv[0], strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	return PCM16ToFloat32(stdout.Bytes()), nil
}

// PCM16ToFloat32 converts little-endian signed 16-bit PCM to float32.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}
