// Package control builds the transcribe command tree.
package control

import (
	"fmt"

	"transcribe/internal/asr"
	"transcribe/internal/config"
	"transcribe/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Usage is printed when the positional arguments are wrong.
const Usage = "Usage: transcribe <audio_file> [model_size]"

// UsageError reports bad command-line arguments.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	if e.Err == nil {
		return Usage
	}
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error { return e.Err }

// flags shared by the root command and its subcommands.
type flags struct {
	cfgPath string
	format  string
	hook    bool
	verbose bool
}

// load reads the config and sets up logging.
func (f *flags) load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(f.cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.Configure(cfg, f.verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("configure logging: %w", err)
	}
	return cfg, logger, nil
}

// NewRootCmd returns the command tree. opts customize every Transcriber
// the commands create.
func NewRootCmd(version string, opts ...asr.Option) *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "transcribe <audio_file> [model_size]",
		Short: "Transcribe an audio file locally with whisper.cpp",
		Long: `Transcribe loads a whisper.cpp model on the CPU (int8 by default), decodes the
audio file to 16 kHz mono, transcribes it in English with greedy decoding and
prints the text on stdout. Model weights download to the cache on first use.`,
		Example: `  transcribe speech.wav
  transcribe interview.mp3 small.en
  transcribe memo.m4a --format json
  transcribe models download base
  transcribe record --duration 10s`,
		Args:                  positionalArgs,
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := asr.Request{AudioPath: args[0]}
			if len(args) == 2 {
				req.Tier = args[1]
			}
			return runTranscribe(cmd.Context(), cmd, f, req, opts)
		},
	}

	root.Version = version
	root.SetVersionTemplate("transcribe v{{.Version}}\n")
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&f.cfgPath, "config", "c", "", "Path to config file (TOML). Defaults to ~/.config/transcribe/config.toml")
	pf.StringVar(&f.format, "format", formatText, "Output format: text or json")
	pf.BoolVar(&f.hook, "hook", false, "Also send the transcript through hook.command")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Log to stderr at debug level")

	root.AddCommand(newModelsCmd(f))
	root.AddCommand(newMicCmd(f))
	root.AddCommand(newRecordCmd(f, opts))
	root.AddCommand(newDoctorCmd(f))
	root.AddCommand(newTestHookCmd(f))

	applyColorHelp(root, version)
	return root
}

func positionalArgs(_ *cobra.Command, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return &UsageError{}
	}
	return nil
}

func applyColorHelp(root *cobra.Command, version string) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			// Subcommands keep cobra's plain help.
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s", cmd.Short, cmd.UsageString())
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%stranscribe%s — local speech-to-text %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sCPU, int8, English, greedy decoding with whisper.cpp.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		writeln("  transcribe <audio_file> [model_size] [flags]")
		writeln("  transcribe [command]")
		writeln("")

		write("%sFlags%s\n", bold, reset)
		writeln("  -c, --config <path>     config file (default ~/.config/transcribe/config.toml)")
		writeln("      --format text|json  output format (json adds segments and model)")
		writeln("      --hook              send the transcript through hook.command")
		writeln("  -v, --verbose           debug logs on stderr")
		writeln("      --version           print version")
		writeln("  Env: TRANSCRIBE_MODEL=small.en, TRANSCRIBE_MODELS_DIR=/path,")
		writeln("       TRANSCRIBE_COMPUTE_TYPE=q5_1, TRANSCRIBE_THREADS=4,")
		writeln("       TRANSCRIBE_VAD_ENABLED=0, TRANSCRIBE_LOG_LEVEL=debug")
		writeln("")

		write("%sExamples%s\n", bold, reset)
		writeln(cmd.Example)
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden || !c.IsAvailableCommand() {
				continue
			}
			write("  %s%-10s%s %s\n", green, c.Name(), reset, c.Short)
		}
		writeln("")
		write("%sA file named like a command must be passed as ./name.%s\n", dim, reset)
	})
}
