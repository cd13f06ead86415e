package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"yayd/internal/config"
	"yayd/internal/history"
	"yayd/internal/jobs"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var states []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show finished downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := history.Filter{Limit: limit}
			for _, raw := range states {
				state, ok := jobs.ParseState(raw)
				if !ok {
					return fmt.Errorf("unknown state %q", raw)
				}
				filter.States = append(filter.States, state)
			}
			return withHistory(ctx, func(store *history.Store) error {
				entries, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No history")
					return nil
				}
				fmt.Fprintln(out, renderHistoryTable(entries))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by terminal state (completed, failed, cancelled)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete history entries older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := parseAge(olderThan)
			if err != nil {
				return err
			}
			cutoff := time.Now().Add(-age)
			return withHistory(ctx, func(store *history.Store) error {
				removed, err := store.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d history %s finished before %s\n",
					removed, pluralize(removed, "entry", "entries"), cutoff.Format(time.DateOnly))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&olderThan, "older-than", "30d", "Age cutoff such as 12h or 30d")
	return cmd
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("download history is disabled; set history.enabled = true in %s", configLabel(ctx))
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func configLabel(ctx *commandContext) string {
	if ctx.configPath != "" {
		return ctx.configPath
	}
	if path, err := config.DefaultConfigPath(); err == nil {
		return path
	}
	return "the config file"
}

func renderHistoryTable(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Title
		if name == "" {
			name = entry.Source
		}
		finished := "-"
		if entry.FinishedAt != nil {
			finished = humanize.Time(*entry.FinishedAt)
		}
		detail := entry.OutputPath
		if entry.State != jobs.StateCompleted {
			detail = entry.ErrorMessage
			if detail == "" {
				detail = entry.StatusMessage
			}
		}
		rows = append(rows, []string{
			shortID(entry.ID),
			stateLabel(string(entry.State)),
			truncate(name, 40),
			finished,
			truncate(detail, 50),
		})
	}
	return renderTable(
		[]string{"ID", "State", "Title", "Finished", "Output / Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

// parseAge accepts Go durations plus a whole-day suffix ("30d").
func parseAge(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age %q", value)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	age, err := time.ParseDuration(value)
	if err != nil || age < 0 {
		return 0, fmt.Errorf("invalid age %q", value)
	}
	return age, nil
}

func pluralize(n int64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
