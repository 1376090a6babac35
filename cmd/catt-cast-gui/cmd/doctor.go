package cmd

import (
	"fmt"

	"github.com/ergosteur/catt-cast-gui/internal/config"
	"github.com/ergosteur/catt-cast-gui/internal/diagnostics"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that catt, ffmpeg and yt-dlp are installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		results := diagnostics.Check(cmd.Context(), diagnostics.Tools(cfg.Catt.Path))

		failed := false
		for _, r := range results {
			fmt.Fprintln(cmd.OutOrStdout(), r.String())
			// The native backend does not need catt.
			if !r.OK() && !(r.Tool.Name == "catt" && cfg.Backend == config.BackendNative) {
				failed = true
			}
		}

		if failed {
			return errors.New("some required tools are missing or too old")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
