package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"yayd/internal/deps"
	"yayd/internal/fetch/ytdlp"
	"yayd/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external tools (yt-dlp, ffmpeg)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			if asJSON {
				return writeJSON(cmd, statuses)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDependencyTable(statuses))
			for _, status := range statuses {
				if !status.Available && !status.Optional {
					return fmt.Errorf("required dependency %s is missing", status.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.AddCommand(newDepsInstallCommand())
	return cmd
}

func newDepsInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "install",
		Short:       "Download a managed yt-dlp binary",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ytdlp.Install(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "yt-dlp installed at %s\n", path)
			return nil
		},
	}
}

func renderDependencyTable(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		state := "ok"
		if !status.Available {
			state = "missing"
			if status.Optional {
				state = "missing (optional)"
			}
		}
		rows = append(rows, []string{status.Name, status.Command, state, status.Detail})
	}
	return renderTable(
		[]string{"Tool", "Command", "Status", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
