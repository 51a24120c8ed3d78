package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultModel         = "base"
	DefaultDevice        = "cpu"
	DefaultComputeType   = "int8"
	DefaultLanguage      = "en"
	DefaultModelsBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"
	// ModelSampleRate is the only input rate whisper accepts.
	ModelSampleRate = 16000
	defaultFFmpeg        = "ffmpeg -hide_banner -loglevel error"
	defaultStateDirLinux = ".local/state/transcribe"
	defaultConfigDir     = ".config/transcribe"
)

// ComputeTypes lists the accepted asr.compute_type values.
var ComputeTypes = []string{"int8", "q8_0", "q5_0", "q5_1", "float16", "float32", "default"}

// Config holds user configuration loaded from TOML.
type Config struct {
	ASR struct {
		Model       string `toml:"model"`        // tier name or path to ggml weights
		Device      string `toml:"device"`       // cpu
		ComputeType string `toml:"compute_type"` // int8, q5_1, float16, ...
		Language    string `toml:"language"`
		BeamSize    int    `toml:"beam_size"`
		Threads     int    `toml:"threads"` // 0 = all CPUs
	} `toml:"asr"`

	Models struct {
		Dir          string `toml:"dir"`
		BaseURL      string `toml:"base_url"`
		AutoDownload bool   `toml:"auto_download"`
		Progress     bool   `toml:"progress"`
	} `toml:"models"`

	Audio struct {
		SampleRate int    `toml:"sample_rate"`
		FFmpeg     string `toml:"ffmpeg"`
		DeviceName string `toml:"device_name"`
		FrameMS    int    `toml:"frame_ms"`
	} `toml:"audio"`

	VAD struct {
		Enabled        bool `toml:"enabled"`
		Aggressiveness int  `toml:"aggressiveness"`
		FrameMS        int  `toml:"frame_ms"`
		MinSpeechMS    int  `toml:"min_speech_ms"`
	} `toml:"vad"`

	Hook struct {
		Command    string            `toml:"command"`
		Args       []string          `toml:"args"`
		Prefix     string            `toml:"prefix"`
		TimeoutSec float64           `toml:"timeout_sec"`
		Env        map[string]string `toml:"env"`
		RedactPII  bool              `toml:"redact_pii"`
	} `toml:"hook"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		Stderr bool   `toml:"stderr"`
	} `toml:"logging"`

	Paths struct {
		StateDir   string `toml:"state_dir"`
		LogPath    string `toml:"log_path"`
		ConfigPath string `toml:"-"`
	} `toml:"paths"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	// macOS prefers ~/Library/Application Support/transcribe for state/logs
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "transcribe")
	}

	cfg := &Config{}

	cfg.ASR.Model = DefaultModel
	cfg.ASR.Device = DefaultDevice
	cfg.ASR.ComputeType = DefaultComputeType
	cfg.ASR.Language = DefaultLanguage
	cfg.ASR.BeamSize = 1
	cfg.ASR.Threads = 0

	cfg.Models.Dir = filepath.Join(stateDir, "models")
	cfg.Models.BaseURL = DefaultModelsBaseURL
	cfg.Models.AutoDownload = true
	cfg.Models.Progress = true

	cfg.Audio.SampleRate = ModelSampleRate
	cfg.Audio.FFmpeg = defaultFFmpeg
	cfg.Audio.FrameMS = 20

	cfg.VAD.Enabled = true
	cfg.VAD.Aggressiveness = 1
	cfg.VAD.FrameMS = 30
	cfg.VAD.MinSpeechMS = 200

	cfg.Hook.Args = []string{}
	cfg.Hook.TimeoutSec = 5
	cfg.Hook.Env = map[string]string{}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "transcribe.log")

	return cfg, nil
}

// DefaultPath returns ~/.config/transcribe/config.toml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultConfigDir, "config.toml")
}

// Load loads config from file, applying defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultPath()
	}
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}

	// Read if exists; otherwise write template.
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err := Save(cfg, path); err != nil {
			return nil, err
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	cfg.Models.Dir = expandTilde(cfg.Models.Dir)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFile reads the config file as written, without .env files or
// environment overrides. Use it when the result is saved back.
func LoadFile(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.Paths.ConfigPath = path
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// Validate checks the config for invalid values. The model tier is not
// checked; an unknown tier fails when its weights are resolved.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ASR.Model) == "" {
		return fmt.Errorf("asr.model must not be empty")
	}
	if c.ASR.Device != "cpu" {
		return fmt.Errorf("asr.device must be \"cpu\", got %q", c.ASR.Device)
	}
	if !validComputeType(c.ASR.ComputeType) {
		return fmt.Errorf("asr.compute_type must be one of %s, got %q", strings.Join(ComputeTypes, ", "), c.ASR.ComputeType)
	}
	if c.ASR.BeamSize != 1 {
		return fmt.Errorf("asr.beam_size must be 1 (greedy decoding), got %d", c.ASR.BeamSize)
	}
	if c.ASR.Threads < 0 {
		return fmt.Errorf("asr.threads must be >= 0")
	}
	if c.Audio.SampleRate != ModelSampleRate {
		return fmt.Errorf("audio.sample_rate must be %d (whisper input rate), got %d", ModelSampleRate, c.Audio.SampleRate)
	}
	if c.VAD.Aggressiveness < 0 || c.VAD.Aggressiveness > 3 {
		return fmt.Errorf("vad.aggressiveness must be 0-3, got %d", c.VAD.Aggressiveness)
	}
	switch c.VAD.FrameMS {
	case 10, 20, 30:
	default:
		return fmt.Errorf("vad.frame_ms must be 10, 20, or 30 (got %d)", c.VAD.FrameMS)
	}
	if _, err := logrus.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

func validComputeType(v string) bool {
	for _, ct := range ComputeTypes {
		if v == ct {
			return true
		}
	}
	return false
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath)} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// loadDotEnv loads KEY=value files when present. Variables already set in
// the environment win.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if fi, err := os.Stat(p); err != nil || fi.IsDir() {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRANSCRIBE_MODEL"); v != "" {
		cfg.ASR.Model = v
	}
	if v := os.Getenv("TRANSCRIBE_MODELS_DIR"); v != "" {
		cfg.Models.Dir = v
	}
	if v := os.Getenv("TRANSCRIBE_COMPUTE_TYPE"); v != "" {
		cfg.ASR.ComputeType = v
	}
	if v := os.Getenv("TRANSCRIBE_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ASR.Threads = n
		}
	}
	if v := os.Getenv("TRANSCRIBE_VAD_ENABLED"); v != "" {
		cfg.VAD.Enabled = truthy(v)
	}
	if v := os.Getenv("TRANSCRIBE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRANSCRIBE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TRANSCRIBE_REDACT_PII"); v != "" {
		cfg.Hook.RedactPII = truthy(v)
	}
}

func truthy(v string) bool {
	return v != "0" && strings.ToLower(v) != "false"
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
