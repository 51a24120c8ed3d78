package control

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"transcribe/internal/models"

	"github.com/spf13/cobra"
)

// newModelsCmd wires up the models subcommands (list/download/path).
func newModelsCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List, download and locate whisper.cpp models",
	}
	cmd.AddCommand(newModelsListCmd(f))
	cmd.AddCommand(newModelsDownloadCmd(f))
	cmd.AddCommand(newModelsPathCmd(f))
	return cmd
}

type modelEntry struct {
	Tier       string `json:"tier"`
	File       string `json:"file"`
	Downloaded bool   `json:"downloaded"`
	Default    bool   `json:"default"`
	Published  bool   `json:"published"`
}

func newModelsListCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known tiers and those present locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.load()
			if err != nil {
				return err
			}
			store := models.NewStore(cfg, logger)
			local, err := store.Local()
			if err != nil {
				return err
			}
			present := map[string]bool{}
			for _, name := range local {
				present[name] = true
			}

			var out []modelEntry
			seen := map[string]bool{}
			for _, tier := range models.Known() {
				spec := models.SpecFor(cfg, tier)
				name := models.FileName(spec)
				seen[name] = true
				out = append(out, modelEntry{
					Tier:       tier,
					File:       name,
					Downloaded: present[name],
					Default:    tier == cfg.ASR.Model,
					Published:  models.Published(spec),
				})
			}
			// Weights with other precisions or custom names.
			for _, name := range local {
				if !seen[name] {
					out = append(out, modelEntry{File: name, Downloaded: true, Published: true})
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "models dir: %s (compute_type %s)\n", store.Dir, cfg.ASR.ComputeType)
			for _, m := range out {
				mark := ""
				if m.Downloaded {
					mark = " (downloaded)"
				}
				if m.Default {
					mark += " (default)"
				}
				if !m.Published {
					mark += fmt.Sprintf(" (not published; use compute_type %s)", strings.Join(models.Alternatives(m.Tier), " or "))
				}
				tier := m.Tier
				if tier == "" {
					tier = "-"
				}
				_, _ = fmt.Fprintf(w, "- %-15s %s%s\n", tier, m.File, mark)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func newModelsDownloadCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "download <tier>",
		Short: "Download weights for a tier into the models dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.load()
			if err != nil {
				return err
			}
			spec := models.SpecFor(cfg, args[0])
			if models.IsPath(spec.Tier) {
				return fmt.Errorf("%q is a path; download takes a tier name (see 'transcribe models list')", spec.Tier)
			}
			store := models.NewStore(cfg, logger)
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "downloading %s -> %s\n", models.FileName(spec), store.Path(spec))
			path, err := store.Download(cmd.Context(), spec)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newModelsPathCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "path [tier]",
		Short: "Print where the weights for a tier are cached",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.load()
			if err != nil {
				return err
			}
			tier := ""
			if len(args) == 1 {
				tier = args[0]
			}
			store := models.NewStore(cfg, logger)
			path := store.Path(models.SpecFor(cfg, tier))
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			if _, err := os.Stat(path); err != nil {
				logger.Debugf("%s not present yet", path)
			}
			return nil
		},
	}
}
