package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"transcribe/internal/asr"
	"transcribe/internal/config"
	"transcribe/internal/hook"
	"transcribe/internal/models"

	"github.com/google/shlex"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail"`
}

// Run executes doctor checks. Hook and microphone checks only appear when
// they apply.
func Run(cfg *config.Config) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkDir("models dir", cfg.Models.Dir),
		checkModel(cfg),
		checkFFmpeg(cfg.Audio.FFmpeg),
		checkWhisper(),
	}
	if strings.TrimSpace(cfg.Hook.Command) != "" {
		results = append(results, checkHookExecutable(cfg.Hook.Command))
	}
	results = append(results, checkPortAudio())
	return results
}

// Failed reports whether any result failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return true
		}
	}
	return false
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkDir(label, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: label, Pass: true, Detail: path + " (created on first download)"}
		}
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	if !info.IsDir() {
		return Result{Name: label, Pass: false, Detail: path + " is not a directory"}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkModel(cfg *config.Config) Result {
	spec := models.SpecFor(cfg, "")
	label := "model " + spec.Tier
	path := models.NewStore(cfg, nil).Path(spec)
	info, err := os.Stat(path)
	switch {
	case err == nil && info.Size() > 0:
		return Result{Name: label, Pass: true, Detail: path}
	case err == nil:
		return Result{Name: label, Pass: false, Detail: path + " is empty"}
	case os.IsNotExist(err) && !models.Published(spec):
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("%s is not published; set asr.compute_type to one of %s", models.FileName(spec), strings.Join(models.Alternatives(spec.Tier), ", "))}
	case os.IsNotExist(err) && cfg.Models.AutoDownload && !models.IsPath(spec.Tier):
		return Result{Name: label, Pass: true, Detail: "not cached; downloads on first use"}
	case os.IsNotExist(err):
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("missing %s; run 'transcribe models download %s'", path, spec.Tier)}
	default:
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
}

func checkFFmpeg(command string) Result {
	label := "ffmpeg"
	argv, err := shlex.Split(command)
	if err != nil || len(argv) == 0 {
		return Result{Name: label, Pass: false, Detail: "audio.ffmpeg not set; only PCM WAV input will decode"}
	}
	resolved, err := exec.LookPath(argv[0])
	if err != nil {
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("%v; only PCM WAV input will decode", err)}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkWhisper() Result {
	if !asr.Supported {
		return Result{Name: "whisper", Pass: false, Detail: asr.ErrNoWhisper.Error()}
	}
	return Result{Name: "whisper", Pass: true, Detail: "compiled in"}
}

func checkHookExecutable(cmd string) Result {
	label := "hook.command"
	argv, err := hook.ParseArgs(os.ExpandEnv(cmd))
	if err != nil || len(argv) == 0 {
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("cannot parse %q", cmd)}
	}
	path := argv[0]
	// If contains a path separator, treat as explicit path.
	if strings.ContainsAny(path, `/\`) {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set hook.command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}
