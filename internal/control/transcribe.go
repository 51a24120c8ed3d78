package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"transcribe/internal/asr"
	"transcribe/internal/hook"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type jsonSegment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type jsonOutput struct {
	Text        string        `json:"text"`
	Model       string        `json:"model"`
	Device      string        `json:"device"`
	ComputeType string        `json:"compute_type"`
	Silent      bool          `json:"silent,omitempty"`
	Segments    []jsonSegment `json:"segments"`
}

func parseFormat(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case formatText, "":
		return formatText, nil
	case formatJSON:
		return formatJSON, nil
	default:
		return "", fmt.Errorf("invalid --format %q (want text or json)", v)
	}
}

// runTranscribe is shared by the root command and record.
func runTranscribe(ctx context.Context, cmd *cobra.Command, f *flags, req asr.Request, opts []asr.Option) error {
	format, err := parseFormat(f.format)
	if err != nil {
		return &UsageError{Err: err}
	}
	cfg, logger, err := f.load()
	if err != nil {
		return err
	}
	var runner *hook.Runner
	if f.hook {
		runner = hook.NewRunner(cfg, logger)
		if !runner.Configured() {
			return fmt.Errorf("--hook given but hook.command is empty in %s", cfg.Paths.ConfigPath)
		}
	}

	var segs []asr.Segment
	if format == formatJSON {
		req.OnSegment = func(s asr.Segment) { segs = append(segs, s) }
	}
	tr := asr.NewTranscriber(cfg, logger, opts...)
	res, err := tr.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := render(cmd.OutOrStdout(), format, res, segs); err != nil {
		return err
	}
	if runner != nil {
		return sendToHook(ctx, runner, logger, res.Text)
	}
	return nil
}

// render writes the transcript. Text output is the bare transcript plus a
// newline.
func render(w io.Writer, format string, res asr.Result, segs []asr.Segment) error {
	if format != formatJSON {
		_, err := fmt.Fprintln(w, res.Text)
		return err
	}
	out := jsonOutput{
		Text:        res.Text,
		Model:       res.Spec.Tier,
		Device:      res.Spec.Device,
		ComputeType: res.Spec.ComputeType,
		Silent:      res.Silent,
		Segments:    make([]jsonSegment, 0, len(segs)),
	}
	for _, s := range segs {
		out.Segments = append(out.Segments, jsonSegment{
			Index: s.Index,
			Start: s.Start.Seconds(),
			End:   s.End.Seconds(),
			Text:  strings.TrimSpace(s.Text),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func sendToHook(ctx context.Context, r *hook.Runner, logger *logrus.Logger, text string) error {
	if text == "" {
		logger.Info("empty transcript; hook skipped")
		return nil
	}
	return r.Run(ctx, hook.Job{Text: text, Timestamp: time.Now()})
}

// newTestHookCmd triggers the hook manually.
func newTestHookCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "test-hook \"some text\"",
		Short: "Send sample text through hook.command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.load()
			if err != nil {
				return err
			}
			r := hook.NewRunner(cfg, logger)
			if !r.Configured() {
				return fmt.Errorf("no hook.command configured in %s", cfg.Paths.ConfigPath)
			}
			return r.Run(cmd.Context(), hook.Job{Text: args[0], Timestamp: time.Now()})
		},
	}
}
