package asr

import (
	"context"
	"errors"
	"runtime"
	"time"

	"transcribe/internal/audio"
	"transcribe/internal/config"
	"transcribe/internal/models"
	"transcribe/internal/vad"

	"github.com/sirupsen/logrus"
)

// AudioLoader decodes an audio file into mono 16 kHz samples.
type AudioLoader interface {
	Load(ctx context.Context, path string) ([]float32, error)
}

// Resolver maps a model spec to a local weight file.
type Resolver interface {
	Resolve(ctx context.Context, spec models.Spec) (string, error)
}

// Request describes one transcription. Exactly one of AudioPath and
// Samples is used; Samples wins when non-nil.
type Request struct {
	AudioPath string
	Samples   []float32
	Tier      string // empty selects asr.model
	OnSegment func(Segment)
}

// Result is the outcome of a transcription.
type Result struct {
	Text   string      `json:"text"`
	Spec   models.Spec `json:"-"`
	Silent bool        `json:"silent,omitempty"` // VAD found no speech; inference was skipped
}

// Transcriber runs decode -> resolve -> load -> (vad) -> infer -> join.
type Transcriber struct {
	cfg      *config.Config
	logger   *logrus.Logger
	backend  Backend
	resolver Resolver
	loader   AudioLoader
	detector vad.Detector
}

// Option customizes a Transcriber.
type Option func(*Transcriber)

// WithBackend replaces the inference backend.
func WithBackend(b Backend) Option { return func(t *Transcriber) { t.backend = b } }

// WithResolver replaces the model store.
func WithResolver(r Resolver) Option { return func(t *Transcriber) { t.resolver = r } }

// WithAudioLoader replaces the audio decoder.
func WithAudioLoader(l AudioLoader) Option { return func(t *Transcriber) { t.loader = l } }

// WithDetector replaces the speech detector; nil disables the gate.
func WithDetector(d vad.Detector) Option { return func(t *Transcriber) { t.detector = d } }

// NewTranscriber wires the default collaborators from cfg.
func NewTranscriber(cfg *config.Config, logger *logrus.Logger, opts ...Option) *Transcriber {
	t := &Transcriber{
		cfg:      cfg,
		logger:   logger,
		backend:  NewBackend(logger),
		resolver: models.NewStore(cfg, logger),
		loader:   audio.NewDecoder(cfg, logger),
	}
	if cfg.VAD.Enabled {
		t.detector = vad.New(vad.FromConfig(cfg))
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Spec returns the model configuration used for tier. An empty tier means
// the configured default, so "" and "base" yield the same spec by default.
func (t *Transcriber) Spec(tier string) models.Spec {
	return models.SpecFor(t.cfg, tier)
}

// Transcribe returns the text spoken in audioPath using model tier.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, tier string) (string, error) {
	res, err := t.Do(ctx, Request{AudioPath: audioPath, Tier: tier})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// TranscribeSamples is Transcribe for audio that is already decoded to
// mono 16 kHz.
func (t *Transcriber) TranscribeSamples(ctx context.Context, samples []float32, tier string) (string, error) {
	if samples == nil {
		samples = []float32{}
	}
	res, err := t.Do(ctx, Request{Samples: samples, Tier: tier})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Do runs a full transcription request.
func (t *Transcriber) Do(ctx context.Context, req Request) (Result, error) {
	spec := t.Spec(req.Tier)
	res := Result{Spec: spec}

	samples := req.Samples
	if samples == nil {
		start := time.Now()
		var err error
		samples, err = t.loader.Load(ctx, req.AudioPath)
		if err != nil {
			return res, inferenceErr("decode audio", err)
		}
		t.logger.Debugf("decoded %s: %.2fs of audio in %s", req.AudioPath, float64(len(samples))/audio.SampleRate, time.Since(start))
	}

	path, err := t.resolver.Resolve(ctx, spec)
	if err != nil {
		return res, inferenceErr("load model "+spec.Tier, err)
	}

	start := time.Now()
	model, err := t.backend.Load(path)
	if err != nil {
		return res, inferenceErr("load model "+spec.Tier, err)
	}
	defer func() {
		if cerr := model.Close(); cerr != nil {
			t.logger.Warnf("close model: %v", cerr)
		}
	}()
	t.logger.Debugf("loaded %s from %s in %s", spec, path, time.Since(start))

	// Silent input still requires a loadable model.
	if t.detector != nil {
		speech, err := t.detector.HasSpeech(samples, audio.SampleRate)
		switch {
		case errors.Is(err, vad.ErrUnavailable):
			t.logger.Debug("vad unavailable; skipping speech gate")
		case err != nil:
			return res, inferenceErr("detect speech", err)
		case !speech:
			t.logger.Info("no speech detected; skipping inference")
			res.Silent = true
			return res, nil
		}
	}

	start = time.Now()
	segs, err := model.Transcribe(ctx, samples, t.decodeOptions())
	if err != nil {
		return res, inferenceErr("transcribe", err)
	}
	text, err := Join(segs, req.OnSegment)
	if err != nil {
		return res, inferenceErr("transcribe", err)
	}
	t.logger.Debugf("transcribed %d chars in %s", len(text), time.Since(start))
	res.Text = text
	return res, nil
}

func (t *Transcriber) decodeOptions() DecodeOptions {
	threads := t.cfg.ASR.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return DecodeOptions{
		Language: t.cfg.ASR.Language,
		BeamSize: t.cfg.ASR.BeamSize,
		Threads:  threads,
	}
}
