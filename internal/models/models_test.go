package models

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"transcribe/internal/config"
	"transcribe/internal/logging"
)

func TestFileName(t *testing.T) {
	cases := []struct {
		spec Spec
		want string
	}{
		{Spec{Tier: "base", ComputeType: "int8"}, "ggml-base-q8_0.bin"},
		{Spec{Tier: "base.en", ComputeType: "q5_1"}, "ggml-base.en-q5_1.bin"},
		{Spec{Tier: "medium", ComputeType: "q5_0"}, "ggml-medium-q5_0.bin"},
		{Spec{Tier: "large-v3-turbo", ComputeType: "float16"}, "ggml-large-v3-turbo.bin"},
		{Spec{Tier: "small", ComputeType: "default"}, "ggml-small.bin"},
	}
	for _, c := range cases {
		if got := FileName(c.spec); got != c.want {
			t.Fatalf("FileName(%+v)=%q want %q", c.spec, got, c.want)
		}
	}
}

func TestIsPath(t *testing.T) {
	if IsPath("base") || IsPath("large-v3") {
		t.Fatalf("tiers are not paths")
	}
	if !IsPath("./ggml-base.bin") || !IsPath("/models/x") || !IsPath("custom.bin") {
		t.Fatalf("expected path detection")
	}
}

func TestKnownIsACopy(t *testing.T) {
	k := Known()
	k[0] = "mutated"
	if Known()[0] == "mutated" {
		t.Fatalf("Known must return a copy")
	}
}

func newTestStore(t *testing.T, baseURL string) *Store {
	t.Helper()
	return &Store{
		Dir:          t.TempDir(),
		BaseURL:      baseURL,
		AutoDownload: true,
		Client:       http.DefaultClient,
		logger:       logging.NewTestLogger(),
	}
}

func TestResolveDownloadsOnFirstUse(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/ggml-base-q8_0.bin" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("weights"))
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL+"/")
	spec := Spec{Tier: "base", Device: "cpu", ComputeType: "int8"}
	path, err := s.Resolve(context.Background(), spec)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "weights" {
		t.Fatalf("unexpected file contents %q (%v)", data, err)
	}
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Fatalf("temp file should be gone")
	}

	// Second resolve is served from the cache.
	if _, err := s.Resolve(context.Background(), spec); err != nil {
		t.Fatalf("resolve cached: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single download, got %d", hits.Load())
	}
}

func TestResolveUnknownTierSurfacesLoaderError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	_, err := s.Resolve(context.Background(), Spec{Tier: "gigantic", ComputeType: "int8"})
	if err == nil || !strings.Contains(err.Error(), "ggml-gigantic-q8_0.bin") || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 naming the file, got %v", err)
	}
	if names, _ := s.Local(); len(names) != 0 {
		t.Fatalf("failed download must not leave files: %v", names)
	}
}

func TestResolveWithoutAutoDownload(t *testing.T) {
	s := newTestStore(t, "http://127.0.0.1:0")
	s.AutoDownload = false
	_, err := s.Resolve(context.Background(), Spec{Tier: "base", ComputeType: "int8"})
	if err == nil || !strings.Contains(err.Error(), "models download base") {
		t.Fatalf("expected hint to download, got %v", err)
	}
}

func TestResolveExplicitPath(t *testing.T) {
	s := newTestStore(t, "http://127.0.0.1:0")
	path := filepath.Join(t.TempDir(), "custom.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := s.Resolve(context.Background(), Spec{Tier: path, ComputeType: "int8"})
	if err != nil || got != path {
		t.Fatalf("Resolve(path) = %q, %v", got, err)
	}
	if _, err := s.Resolve(context.Background(), Spec{Tier: path + ".missing"}); err == nil {
		t.Fatalf("missing explicit path should fail")
	}
}

func TestLocalListsBinFiles(t *testing.T) {
	s := newTestStore(t, "")
	for _, n := range []string{"ggml-small.bin", "ggml-base-q8_0.bin", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(s.Dir, n), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	names, err := s.Local()
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if len(names) != 2 || names[0] != "ggml-base-q8_0.bin" || names[1] != "ggml-small.bin" {
		t.Fatalf("unexpected listing: %v", names)
	}
}

func TestLocalMissingDir(t *testing.T) {
	s := newTestStore(t, "")
	s.Dir = filepath.Join(s.Dir, "absent")
	names, err := s.Local()
	if err != nil || names != nil {
		t.Fatalf("expected empty listing, got %v %v", names, err)
	}
}

func TestSpecForDefaultsToConfiguredTier(t *testing.T) {
	cfg, _ := config.Default()
	if SpecFor(cfg, "") != SpecFor(cfg, "base") {
		t.Fatalf("empty tier should equal base: %v", SpecFor(cfg, ""))
	}
	cfg.ASR.ComputeType = "q5_1"
	if got := SpecFor(cfg, "small"); got != (Spec{Tier: "small", Device: "cpu", ComputeType: "q5_1"}) {
		t.Fatalf("unexpected spec %v", got)
	}
}

func TestPublished(t *testing.T) {
	cases := []struct {
		spec Spec
		want bool
	}{
		{Spec{Tier: "base", ComputeType: "int8"}, true},
		{Spec{Tier: "large-v3-turbo", ComputeType: "int8"}, true},
		{Spec{Tier: "large-v3", ComputeType: "int8"}, false},
		{Spec{Tier: "large-v3", ComputeType: "q5_0"}, true},
		{Spec{Tier: "large-v1", ComputeType: "int8"}, false},
		{Spec{Tier: "small", ComputeType: "q5_0"}, false},
		{Spec{Tier: "medium", ComputeType: "q5_1"}, false},
		{Spec{Tier: "something-new", ComputeType: "int8"}, true},
		{Spec{Tier: "./weights.bin", ComputeType: "int8"}, true},
	}
	for _, c := range cases {
		if got := Published(c.spec); got != c.want {
			t.Fatalf("Published(%+v)=%v want %v", c.spec, got, c.want)
		}
	}
	for _, tier := range Known() {
		if !Published(Spec{Tier: tier, ComputeType: "float16"}) {
			t.Fatalf("every known tier ships f16 weights; %s does not", tier)
		}
	}
}

func TestDownloadUnpublishedVariantHints(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	_, err := s.Download(context.Background(), Spec{Tier: "large-v3", ComputeType: "int8"})
	if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "float16, q5_0") {
		t.Fatalf("expected 404 with compute_type hint, got %v", err)
	}
}
