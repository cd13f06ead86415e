package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"yayd/internal/api"
)

func newPromptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Interactively enter a URL and download it in this process",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
				return errors.New("prompt requires an interactive terminal (TTY)")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			form, err := tea.NewProgram(newPromptModel(), tea.WithOutput(cmd.OutOrStdout())).Run()
			if err != nil {
				return ttyError(err)
			}
			answers, ok := form.(promptModel)
			if !ok || !answers.submitted {
				return nil
			}

			session, err := openLocalSession(cfg)
			if err != nil {
				return err
			}
			defer session.Close()
			return runPromptDownload(cmd.Context(), cmd, session, answers.Request())
		},
	}
}

func runPromptDownload(parent context.Context, cmd *cobra.Command, session *localSession, req api.SubmitRequest) error {
	runCtx, cancel := context.WithCancel(parent)
	defer cancel()

	program := tea.NewProgram(newDownloadModel(cancel), tea.WithOutput(cmd.OutOrStdout()))
	go func() {
		final, err := session.run(runCtx, req.JobRequest(), func(job api.JobStatus) {
			program.Send(jobUpdateMsg(job))
		})
		program.Send(jobDoneMsg{job: final, err: err})
	}()

	result, err := program.Run()
	if err != nil {
		cancel()
		return ttyError(err)
	}
	view, ok := result.(downloadModel)
	if !ok || !view.done {
		return nil
	}
	if view.err != nil {
		return view.err
	}
	switch view.job.State {
	case "completed":
		return nil
	case "cancelled":
		return fmt.Errorf("job %s cancelled", view.job.ID)
	default:
		return fmt.Errorf("job %s failed", view.job.ID)
	}
}

func ttyError(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "tty") {
		return errors.New("prompt requires an interactive terminal (TTY)")
	}
	return err
}
