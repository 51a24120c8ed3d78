//go:build whisper

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/sirupsen/logrus"
)

// Supported reports whether this build can run inference.
const Supported = true

type whisperBackend struct {
	logger *logrus.Logger
}

// NewBackend returns the whisper.cpp backend.
func NewBackend(logger *logrus.Logger) Backend {
	return &whisperBackend{logger: logger}
}

func (b *whisperBackend) Load(path string) (Model, error) {
	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %q: %w", path, err)
	}
	return &whisperModel{model: model, logger: b.logger}, nil
}

type whisperModel struct {
	model  whisper.Model
	logger *logrus.Logger
}

func (m *whisperModel) Transcribe(ctx context.Context, samples []float32, opts DecodeOptions) (SegmentReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wctx, err := m.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}
	if opts.Language != "" {
		if err := wctx.SetLanguage(opts.Language); err != nil {
			return nil, fmt.Errorf("set language %q: %w", opts.Language, err)
		}
	}
	wctx.SetTranslate(false)
	if opts.Threads > 0 {
		wctx.SetThreads(uint(opts.Threads))
	}
	wctx.SetBeamSize(opts.BeamSize)
	// Greedy at temperature 0 with no fallback keeps output deterministic.
	wctx.SetTemperature(0)
	wctx.SetTemperatureFallback(-1)

	if len(samples) == 0 {
		return &whisperSegments{done: true}, nil
	}
	m.logger.Debugf("whisper: %d samples, language=%s threads=%d beam=%d", len(samples), opts.Language, opts.Threads, opts.BeamSize)
	abort := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, abort, nil, nil); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("process: %w", err)
	}
	return &whisperSegments{ctx: wctx}, nil
}

func (m *whisperModel) Close() error {
	return m.model.Close()
}

// whisperSegments adapts whisper's NextSegment cursor.
type whisperSegments struct {
	ctx  whisper.Context
	done bool
}

func (s *whisperSegments) Next() (Segment, error) {
	if s.done {
		return Segment{}, io.EOF
	}
	seg, err := s.ctx.NextSegment()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
		}
		return Segment{}, err
	}
	return Segment{Index: seg.Num, Start: seg.Start, End: seg.End, Text: seg.Text}, nil
}
