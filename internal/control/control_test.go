package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"transcribe/internal/asr"
	"transcribe/internal/audio"
	"transcribe/internal/config"
	"transcribe/internal/models"

	"github.com/sirupsen/logrus"
)

type sliceReader struct {
	segs []asr.Segment
	i    int
}

func (r *sliceReader) Next() (asr.Segment, error) {
	if r.i >= len(r.segs) {
		return asr.Segment{}, io.EOF
	}
	s := r.segs[r.i]
	r.i++
	return s, nil
}

type fakeModel struct{ texts []string }

func (m *fakeModel) Transcribe(ctx context.Context, samples []float32, opts asr.DecodeOptions) (asr.SegmentReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := &sliceReader{}
	for i, t := range m.texts {
		r.segs = append(r.segs, asr.Segment{Index: i, Text: t})
	}
	return r, nil
}

func (m *fakeModel) Close() error { return nil }

type fakeBackend struct {
	texts []string
	loads int
}

func (b *fakeBackend) Load(path string) (asr.Model, error) {
	b.loads++
	return &fakeModel{texts: b.texts}, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, spec models.Spec) (string, error) {
	return "/models/" + models.FileName(spec), nil
}

type harness struct {
	backend *fakeBackend
	cfgPath string
	wav     string
}

func newHarness(t *testing.T, texts ...string) *harness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	h := &harness{
		backend: &fakeBackend{texts: texts},
		cfgPath: filepath.Join(home, "config.toml"),
		wav:     filepath.Join(home, "speech.wav"),
	}
	if err := audio.WriteWAV(h.wav, make([]float32, 1600), audio.SampleRate); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return h
}

func (h *harness) saveConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	mutate(cfg)
	if err := config.Save(cfg, h.cfgPath); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func (h *harness) run(args ...string) (string, string, error) {
	return h.runContext(context.Background(), args...)
}

func (h *harness) runContext(ctx context.Context, args ...string) (string, string, error) {
	root := NewRootCmd("test",
		asr.WithBackend(h.backend),
		asr.WithResolver(fakeResolver{}),
		asr.WithDetector(nil),
	)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"-c", h.cfgPath}, args...))
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestRootRequiresAudioFile(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{{}, {"a.wav", "base", "extra"}} {
		stdout, _, err := h.run(args...)
		var ue *UsageError
		if !errors.As(err, &ue) {
			t.Fatalf("args %v: expected usage error, got %v", args, err)
		}
		if ue.Error() != Usage {
			t.Fatalf("usage text = %q", ue.Error())
		}
		if stdout != "" {
			t.Fatalf("stdout must stay empty, got %q", stdout)
		}
	}
}

func TestRootPrintsTranscript(t *testing.T) {
	h := newHarness(t, " Hello ", "world ")
	stdout, _, err := h.run(h.wav)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "Hello world\n" {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRootEmptyTranscript(t *testing.T) {
	h := newHarness(t)
	stdout, _, err := h.run(h.wav, "tiny")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "\n" {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRootJSONOutput(t *testing.T) {
	h := newHarness(t, " Hello ", "world ")
	stdout, _, err := h.run(h.wav, "small.en", "--format", "json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var out jsonOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if out.Text != "Hello world" || out.Model != "small.en" || out.ComputeType != "int8" || out.Device != "cpu" {
		t.Fatalf("unexpected output %+v", out)
	}
	if len(out.Segments) != 2 || out.Segments[0].Text != "Hello" || out.Segments[1].Index != 1 {
		t.Fatalf("unexpected segments %+v", out.Segments)
	}
}

func TestRootMissingFile(t *testing.T) {
	h := newHarness(t, "never")
	stdout, _, err := h.run(filepath.Join(t.TempDir(), "nonexistent.wav"))
	var ie *asr.InferenceError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InferenceError, got %v", err)
	}
	if stdout != "" {
		t.Fatalf("stdout must stay empty, got %q", stdout)
	}
	if h.backend.loads != 0 {
		t.Fatalf("model must not load for a missing file")
	}
}

func TestRootRejectsBadFormat(t *testing.T) {
	h := newHarness(t, "x")
	stdout, _, err := h.run(h.wav, "--format", "yaml")
	var ue *UsageError
	if !errors.As(err, &ue) || !strings.Contains(err.Error(), "yaml") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if stdout != "" || h.backend.loads != 0 {
		t.Fatalf("nothing should run for a bad flag")
	}
}

func TestRootUnknownFlagIsUsageError(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run(h.wav, "--beam-size", "5")
	var ue *UsageError
	if !errors.As(err, &ue) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRootHook(t *testing.T) {
	h := newHarness(t, " make ", "it so ")
	out := filepath.Join(t.TempDir(), "hook.txt")
	h.saveConfig(t, func(c *config.Config) {
		c.Hook.Command = `/bin/sh -c 'printf "%s" "$1" > "$OUT"' hook`
		c.Hook.Prefix = "voice: "
		c.Hook.Env = map[string]string{"OUT": out}
	})
	stdout, _, err := h.run(h.wav, "--hook")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "make it so\n" {
		t.Fatalf("stdout = %q", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("hook did not run: %v", err)
	}
	if string(data) != "voice: make it so" {
		t.Fatalf("hook payload = %q", data)
	}
}

func TestRootHookWithoutCommandFailsEarly(t *testing.T) {
	h := newHarness(t, "hello")
	stdout, _, err := h.run(h.wav, "--hook")
	if err == nil || !strings.Contains(err.Error(), "hook.command") {
		t.Fatalf("expected hook config error, got %v", err)
	}
	if stdout != "" || h.backend.loads != 0 {
		t.Fatalf("nothing should be transcribed without a hook command")
	}
}

func TestModelsPath(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	h.saveConfig(t, func(c *config.Config) { c.Models.Dir = dir })

	stdout, _, err := h.run("models", "path")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(stdout) != filepath.Join(dir, "ggml-base-q8_0.bin") {
		t.Fatalf("default path = %q", stdout)
	}
	stdout, _, _ = h.run("models", "path", "large-v3-turbo")
	if strings.TrimSpace(stdout) != filepath.Join(dir, "ggml-large-v3-turbo-q8_0.bin") {
		t.Fatalf("tier path = %q", stdout)
	}
}

func TestModelsList(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	h.saveConfig(t, func(c *config.Config) { c.Models.Dir = dir })
	for _, name := range []string{"ggml-base-q8_0.bin", "ggml-custom.bin"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	stdout, _, err := h.run("models", "list", "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var entries []modelEntry
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var base, custom bool
	for _, e := range entries {
		if e.Tier == "large-v3" && e.Published {
			t.Fatalf("large-v3 has no int8 weights upstream: %+v", e)
		}
		if e.Tier == "base" {
			base = e.Downloaded && e.Default
		}
		if e.File == "ggml-custom.bin" {
			custom = e.Downloaded && e.Tier == ""
		}
	}
	if !base || !custom {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestModelsDownloadRejectsPath(t *testing.T) {
	h := newHarness(t)
	if _, _, err := h.run("models", "download", "./weights.bin"); err == nil {
		t.Fatalf("expected error for a path")
	}
}

func TestMicSet(t *testing.T) {
	h := newHarness(t)
	if _, _, err := h.run("mic", "set", "USB Mic"); err != nil {
		t.Fatalf("run: %v", err)
	}
	cfg, err := config.Load(h.cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Audio.DeviceName != "USB Mic" {
		t.Fatalf("device name = %q", cfg.Audio.DeviceName)
	}
}

func TestMicSetKeepsEnvOutOfFile(t *testing.T) {
	h := newHarness(t)
	h.saveConfig(t, func(c *config.Config) { c.ASR.Model = "small" })
	t.Setenv("TRANSCRIBE_MODEL", "tiny.en")
	t.Setenv("TRANSCRIBE_VAD_ENABLED", "0")

	if _, _, err := h.run("mic", "set", "USB Mic"); err != nil {
		t.Fatalf("run: %v", err)
	}
	saved, err := config.LoadFile(h.cfgPath)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if saved.Audio.DeviceName != "USB Mic" {
		t.Fatalf("device name = %q", saved.Audio.DeviceName)
	}
	if saved.ASR.Model != "small" || !saved.VAD.Enabled {
		t.Fatalf("env overrides were persisted: model=%q vad=%v", saved.ASR.Model, saved.VAD.Enabled)
	}
}

func TestVersionFlag(t *testing.T) {
	h := newHarness(t)
	stdout, _, err := h.run("--version")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "transcribe vtest\n" {
		t.Fatalf("version output = %q", stdout)
	}
}

func stubRecorder(t *testing.T, fn func(ctx context.Context) ([]float32, error)) {
	t.Helper()
	orig := recordAudio
	recordAudio = func(ctx context.Context, cfg *config.Config, dur time.Duration, logger *logrus.Logger) ([]float32, error) {
		return fn(ctx)
	}
	t.Cleanup(func() { recordAudio = orig })
}

func TestRecordTranscribesTake(t *testing.T) {
	h := newHarness(t, " take ", "one ")
	stubRecorder(t, func(ctx context.Context) ([]float32, error) {
		return make([]float32, 3200), nil
	})
	wav := filepath.Join(t.TempDir(), "take.wav")
	stdout, _, err := h.run("record", "--duration", "200ms", "--out", wav)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "take one\n" {
		t.Fatalf("stdout = %q", stdout)
	}
	if _, err := os.Stat(wav); err != nil {
		t.Fatalf("recording not saved: %v", err)
	}
}

func TestRecordInterruptedTakeIsTranscribed(t *testing.T) {
	h := newHarness(t, "partial ", " take")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stubRecorder(t, func(rctx context.Context) ([]float32, error) {
		// Ctrl-C arrives mid-take; the recorder returns what it has.
		cancel()
		<-rctx.Done()
		return make([]float32, 800), nil
	})
	stdout, _, err := h.runContext(ctx, "record", "--duration", "10s")
	if err != nil {
		t.Fatalf("interrupted take should still transcribe: %v", err)
	}
	if stdout != "partial take\n" {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRecordFailureLeavesStdoutEmpty(t *testing.T) {
	h := newHarness(t, "never")
	stubRecorder(t, func(ctx context.Context) ([]float32, error) {
		return nil, errors.New("no input device")
	})
	stdout, _, err := h.run("record")
	if err == nil || !strings.Contains(err.Error(), "no input device") {
		t.Fatalf("expected record error, got %v", err)
	}
	if stdout != "" || h.backend.loads != 0 {
		t.Fatalf("nothing should be transcribed after a failed recording")
	}
}
