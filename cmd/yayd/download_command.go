package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"yayd/internal/api"
	"yayd/internal/config"
	"yayd/internal/fileutil"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	var exportPath string

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download a video in this process without a daemon",
		Long: "Download runs a single job in the foreground and shows its progress.\n" +
			"Press Ctrl+C to cancel the download; partial files are cleaned up.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req := flags.request(args[0])
			if req.OutputDir != "" {
				if req.OutputDir, err = config.ExpandPath(req.OutputDir); err != nil {
					return fmt.Errorf("resolve output dir: %w", err)
				}
			}
			session, err := openLocalSession(cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			renderer := newProgressRenderer(out, isTerminalWriter(out), "downloading")
			final, err := session.run(runCtx, req.JobRequest(), renderer.Update)
			if err != nil {
				return err
			}
			if err := renderer.Finish(final); err != nil {
				return err
			}
			return exportResult(cmd, final, exportPath)
		},
	}
	flags.register(cmd, "Override the download directory")
	cmd.Flags().StringVar(&exportPath, "export", "", "Copy the finished file to this path as well")
	return cmd
}

// exportResult copies a completed single-file download to target.
func exportResult(cmd *cobra.Command, job api.JobStatus, target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil
	}
	if job.Collection {
		return fmt.Errorf("export is only supported for single videos")
	}
	if job.OutputPath == "" {
		return fmt.Errorf("download finished without an output file")
	}
	expanded, err := config.ExpandPath(target)
	if err != nil {
		return fmt.Errorf("resolve export path: %w", err)
	}
	dst, err := fileutil.ExportFile(job.OutputPath, expanded)
	if err != nil {
		return fmt.Errorf("export download: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", dst)
	return nil
}
