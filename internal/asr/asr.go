// Package asr turns decoded audio into text with a pluggable inference
// backend (whisper.cpp in '-tags whisper' builds).
package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Segment is a recognized span of speech. Backends yield segments in
// non-decreasing time order.
type Segment struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// SegmentReader yields segments lazily; Next returns io.EOF after the last.
type SegmentReader interface {
	Next() (Segment, error)
}

// DecodeOptions control a single inference run.
type DecodeOptions struct {
	Language string
	BeamSize int
	Threads  int
}

// Model is a loaded inference engine.
type Model interface {
	Transcribe(ctx context.Context, samples []float32, opts DecodeOptions) (SegmentReader, error)
	Close() error
}

// Backend constructs models from weight files.
type Backend interface {
	Load(path string) (Model, error)
}

// ErrNoWhisper is returned by builds without the whisper backend.
var ErrNoWhisper = errors.New("built without whisper support; rebuild with '-tags whisper'")

// InferenceError wraps any failure of the decode/load/inference pipeline.
type InferenceError struct {
	Op  string
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

func inferenceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *InferenceError
	if errors.As(err, &ie) {
		return err
	}
	return &InferenceError{Op: op, Err: err}
}

// Join drains r in order, trims each segment's text, joins them with a
// single space and trims the result. visit, when non-nil, sees every
// segment as it is read.
func Join(r SegmentReader, visit func(Segment)) (string, error) {
	var parts []string
	for {
		seg, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if visit != nil {
			visit(seg)
		}
		parts = append(parts, strings.TrimSpace(seg.Text))
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}
