package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transcribe/internal/config"

	"github.com/sirupsen/logrus"
)

func TestConfigureWritesToLogFile(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.StateDir = dir
	cfg.Paths.LogPath = filepath.Join(dir, "logs", "transcribe.log")
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "warn"

	logger, err := Configure(cfg, false)
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if logger.GetLevel() != logrus.WarnLevel {
		t.Fatalf("level = %v", logger.GetLevel())
	}
	logger.Info("hidden")
	logger.Warn("visible")

	data, err := os.ReadFile(cfg.Paths.LogPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"visible"`) {
		t.Fatalf("unexpected log contents: %s", out)
	}
}

func TestConfigureVerboseRaisesLevel(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.StateDir = dir
	cfg.Paths.LogPath = filepath.Join(dir, "transcribe.log")

	logger, err := Configure(cfg, true)
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("verbose should enable debug, got %v", logger.GetLevel())
	}
}
