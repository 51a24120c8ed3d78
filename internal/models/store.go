package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"transcribe/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Store resolves model specs to weight files in a cache directory,
// downloading missing weights on first use.
type Store struct {
	Dir          string
	BaseURL      string
	AutoDownload bool
	Progress     io.Writer // nil disables the progress bar
	Client       *http.Client
	logger       *logrus.Logger
}

// NewStore returns a Store configured from cfg. Progress goes to stderr.
func NewStore(cfg *config.Config, logger *logrus.Logger) *Store {
	s := &Store{
		Dir:          cfg.Models.Dir,
		BaseURL:      cfg.Models.BaseURL,
		AutoDownload: cfg.Models.AutoDownload,
		Client:       http.DefaultClient,
		logger:       logger,
	}
	if cfg.Models.Progress {
		s.Progress = os.Stderr
	}
	return s
}

// SpecFor returns the spec used for tier under cfg. An empty tier selects
// asr.model.
func SpecFor(cfg *config.Config, tier string) Spec {
	if tier == "" {
		tier = cfg.ASR.Model
	}
	return Spec{Tier: tier, Device: cfg.ASR.Device, ComputeType: cfg.ASR.ComputeType}
}

// Path returns where weights for spec live in the cache.
func (s *Store) Path(spec Spec) string {
	if IsPath(spec.Tier) {
		return spec.Tier
	}
	return filepath.Join(s.Dir, FileName(spec))
}

// Resolve returns a local weight file for spec.
func (s *Store) Resolve(ctx context.Context, spec Spec) (string, error) {
	path := s.Path(spec)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	} else if IsPath(spec.Tier) {
		if err == nil {
			return "", fmt.Errorf("model file %s is empty", path)
		}
		return "", err
	}
	if !s.AutoDownload {
		return "", fmt.Errorf("model %s not found at %s; run 'transcribe models download %s'", spec.Tier, path, spec.Tier)
	}
	return s.Download(ctx, spec)
}

// Download fetches the weights for spec into the cache, replacing any
// existing file atomically.
func (s *Store) Download(ctx context.Context, spec Spec) (string, error) {
	if IsPath(spec.Tier) {
		return "", fmt.Errorf("%s is a file path, not a model tier", spec.Tier)
	}
	name := FileName(spec)
	dest := filepath.Join(s.Dir, name)
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}
	url := strings.TrimRight(s.BaseURL, "/") + "/" + name
	s.logger.Infof("downloading %s -> %s", url, dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		if !Published(spec) {
			return "", fmt.Errorf("download %s: %s (%s is published for compute_type %s)",
				name, resp.Status, spec.Tier, strings.Join(Alternatives(spec.Tier), ", "))
		}
		return "", fmt.Errorf("download %s: %s", name, resp.Status)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	written, err := s.copyWithProgress(ctx, out, resp.Body, resp.ContentLength, name)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("writing model file: %w", err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("download %s: got %d of %d bytes", name, written, resp.ContentLength)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("moving model file: %w", err)
	}
	s.logger.Infof("downloaded %s (%.1f MB)", name, float64(written)/(1024*1024))
	return dest, nil
}

func (s *Store) copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, name string) (int64, error) {
	if s.Progress == nil || total <= 0 {
		return io.Copy(dst, src)
	}
	p := mpb.NewWithContext(ctx, mpb.WithOutput(s.Progress), mpb.WithWidth(40))
	bar := p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name+" ", decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.CountersKibiByte("% .1f / % .1f"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)
	proxy := bar.ProxyReader(src)
	n, err := io.Copy(dst, proxy)
	_ = proxy.Close()
	if err != nil {
		bar.Abort(false)
	}
	p.Wait()
	return n, err
}

// Local lists weight files present in the cache, sorted.
func (s *Store) Local() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bin") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
