package control

import (
	"encoding/json"
	"fmt"

	"transcribe/internal/config"
	"transcribe/internal/doctor"

	"github.com/spf13/cobra"
)

// newDoctorCmd runs environment checks.
func newDoctorCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies, config and model cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.cfgPath)
			if err != nil {
				return err
			}
			results := doctor.Run(cfg)
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					status := "ok"
					if !r.Pass {
						status = "fail"
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-4s %s\n", r.Name, status, r.Detail)
				}
			}
			if doctor.Failed(results) {
				return fmt.Errorf("doctor found issues")
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}
