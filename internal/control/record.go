package control

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transcribe/internal/asr"
	"transcribe/internal/audio"

	"github.com/spf13/cobra"
)

// recordAudio is swapped out in tests.
var recordAudio = audio.Record

// newRecordCmd captures from the microphone and transcribes the take.
func newRecordCmd(f *flags, opts []asr.Option) *cobra.Command {
	var (
		dur time.Duration
		out string
	)
	cmd := &cobra.Command{
		Use:   "record [model_size]",
		Short: "Record from the microphone, then transcribe",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dur <= 0 {
				return &UsageError{Err: fmt.Errorf("--duration must be positive")}
			}
			cfg, logger, err := f.load()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "recording %s (ctrl-c stops early)...\n", dur)
			ctx := cmd.Context()
			samples, err := recordAudio(ctx, cfg, dur, logger)
			if err != nil {
				return fmt.Errorf("record: %w", err)
			}
			if out != "" {
				if err := audio.WriteWAV(out, samples, audio.SampleRate); err != nil {
					return fmt.Errorf("save recording: %w", err)
				}
				logger.Infof("recording saved to %s", out)
			}
			if samples == nil {
				samples = []float32{}
			}
			req := asr.Request{Samples: samples}
			if len(args) == 1 {
				req.Tier = args[0]
			}
			if ctx.Err() != nil {
				// The interrupt only ended the take; a second one cancels
				// transcription.
				var stop context.CancelFunc
				ctx, stop = signal.NotifyContext(context.WithoutCancel(ctx), os.Interrupt, syscall.SIGTERM)
				defer stop()
				logger.Info("recording stopped early; transcribing the partial take")
			}
			return runTranscribe(ctx, cmd, f, req, opts)
		},
	}
	cmd.Flags().DurationVar(&dur, "duration", 5*time.Second, "how long to record")
	cmd.Flags().StringVar(&out, "out", "", "also save the recording as a 16 kHz WAV file")
	return cmd
}
