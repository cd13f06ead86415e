package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"yayd/internal/api"
	"yayd/internal/apiclient"
	"yayd/internal/config"
)

type submitFlags struct {
	quality   string
	audioOnly bool
	proxy     string
	useProxy  bool
	outputDir string
	verbose   bool
}

func (f *submitFlags) register(cmd *cobra.Command, outputDirUsage string) {
	cmd.Flags().StringVarP(&f.quality, "quality", "q", "best", "Video quality: 480, 720, 1080, or best")
	cmd.Flags().BoolVarP(&f.audioOnly, "audio-only", "a", false, "Download audio only (mp3)")
	cmd.Flags().StringVar(&f.proxy, "proxy", "", "Proxy URL for this download")
	cmd.Flags().BoolVar(&f.useProxy, "use-proxy", false, "Use the configured default proxy")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", outputDirUsage)
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Verbose yt-dlp output")
}

// request builds the submission. The output directory is passed through
// as typed; the daemon resolves it against its download directory.
func (f *submitFlags) request(url string) api.SubmitRequest {
	proxy := strings.TrimSpace(f.proxy)
	return api.SubmitRequest{
		URL:       strings.TrimSpace(url),
		Quality:   f.quality,
		AudioOnly: f.audioOnly,
		UseProxy:  f.useProxy || proxy != "",
		ProxyURL:  proxy,
		OutputDir: strings.TrimSpace(f.outputDir),
		Verbose:   f.verbose,
	}
}

func newJobCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSubmitCommand(ctx),
		newStatusCommand(ctx),
		newCancelCommand(ctx),
		newResultCommand(ctx),
		newListCommand(ctx),
		newForgetCommand(ctx),
		newWatchCommand(ctx),
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	var wait bool

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Queue a download on the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := flags.request(args[0])
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s: %s\n", resp.Message, resp.DownloadID)
				if !wait {
					return nil
				}
				return watchJob(cmd.Context(), client, out, resp.DownloadID)
			})
		},
	}
	flags.register(cmd, "Directory inside the daemon's download directory")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the download to finish, showing progress")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show the status of a download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				job, err := client.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, job)
				}
				printJobDetails(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (state: %s)\n", resp.Message, stateLabel(resp.State))
				return nil
			})
		},
	}
}

func newResultCommand(ctx *commandContext) *cobra.Command {
	var output string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "result <id>",
		Short: "Fetch the file produced by a completed download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				download, err := client.Result(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if download.Listing != nil {
					printListing(out, *download.Listing)
					return nil
				}
				defer download.Body.Close()
				target, err := resultTarget(output, download.Filename)
				if err != nil {
					return err
				}
				written, err := saveStream(download.Body, target, overwrite)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Saved %s (%s)\n", target, humanize.Bytes(uint64(written)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory (defaults to the current directory)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing destination file")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List downloads tracked by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				jobs, err := client.List(cmd.Context(), states...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No downloads")
					return nil
				}
				fmt.Fprintln(out, renderJobTable(jobs))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by state (pending, running, completed, failed, cancelled)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <id>",
		Short: "Remove a finished download from the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.Forget(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", args[0])
				return nil
			})
		},
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow a download until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				return watchJob(cmd.Context(), client, cmd.OutOrStdout(), args[0])
			})
		},
	}
}

// watchJob follows the daemon event stream until the job is terminal.
func watchJob(ctx context.Context, client *apiclient.Client, out io.Writer, id string) error {
	renderer := newProgressRenderer(out, isTerminalWriter(out), shortID(id))
	var final *api.JobStatus
	err := client.Events(ctx, id, func(ev api.JobEvent) error {
		if ev.Type == "terminal" || ev.Type == "forgotten" {
			job := ev.Job
			final = &job
			return nil
		}
		renderer.Update(ev.Job)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if final == nil {
		job, statusErr := client.Status(context.WithoutCancel(ctx), id)
		if statusErr != nil {
			return statusErr
		}
		if !isTerminalState(job.State) {
			return fmt.Errorf("stopped watching %s while %s", id, job.State)
		}
		final = &job
	}
	return renderer.Finish(*final)
}

func isTerminalState(state string) bool {
	switch state {
	case "completed", "failed", "cancelled":
		return true
	default:
		return false
	}
}

func printListing(out io.Writer, listing api.ResultListing) {
	title := listing.Title
	if title == "" {
		title = listing.Path
	}
	fmt.Fprintf(out, "Collection: %s\n", title)
	fmt.Fprintf(out, "Directory:  %s\n", listing.Path)
	rows := make([][]string, 0, len(listing.Files))
	for _, file := range listing.Files {
		rows = append(rows, []string{file.Name, humanize.Bytes(uint64(file.Size))})
	}
	fmt.Fprintln(out, renderTable([]string{"File", "Size"}, rows, []columnAlignment{alignLeft, alignRight}))
}

// resultTarget picks the local destination for a downloaded artifact. An
// existing directory (or empty output) receives the server-provided name.
func resultTarget(output, filename string) (string, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "download"
	}
	output = strings.TrimSpace(output)
	if output == "" {
		return filepath.Abs(name)
	}
	expanded, err := config.ExpandPath(output)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(expanded); err == nil && info.IsDir() {
		return filepath.Join(expanded, name), nil
	}
	return expanded, nil
}

func saveStream(r io.Reader, target string, overwrite bool) (int64, error) {
	if !overwrite {
		if _, err := os.Stat(target); err == nil {
			return 0, fmt.Errorf("%s already exists (use --overwrite to replace it)", target)
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create destination directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".yayd-*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	written, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		if copyErr != nil {
			return 0, fmt.Errorf("download result: %w", copyErr)
		}
		return 0, fmt.Errorf("close temp file: %w", closeErr)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("move result into place: %w", err)
	}
	return written, nil
}
