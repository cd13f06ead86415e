package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"yayd/internal/api"
)

var titleCaser = cases.Title(language.English)

// stateLabel renders a job state for humans ("running" -> "Running").
func stateLabel(state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ReplaceAll(state, "_", " "))
}

func formatProgress(job api.JobStatus) string {
	if job.Indeterminate && job.State == "running" {
		return "?"
	}
	return fmt.Sprintf("%.1f%%", job.Progress)
}

// relativeTime renders an API timestamp as "3 minutes ago".
func relativeTime(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func jobDisplayName(job api.JobStatus) string {
	if job.Title != "" {
		return job.Title
	}
	return job.Source
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if max <= 1 || len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}

func renderJobTable(jobs []api.JobStatus) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			shortID(job.ID),
			stateLabel(job.State),
			formatProgress(job),
			truncate(jobDisplayName(job), 48),
			relativeTime(job.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "State", "Progress", "Title", "Submitted"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func printJobDetails(out io.Writer, job api.JobStatus) {
	fmt.Fprintf(out, "ID:        %s\n", job.ID)
	fmt.Fprintf(out, "Source:    %s\n", job.Source)
	if job.Title != "" {
		fmt.Fprintf(out, "Title:     %s\n", job.Title)
	}
	fmt.Fprintf(out, "State:     %s\n", stateLabel(job.State))
	fmt.Fprintf(out, "Progress:  %s\n", formatProgress(job))
	if job.Status != "" {
		fmt.Fprintf(out, "Status:    %s\n", job.Status)
	}
	quality := job.Quality
	if job.AudioOnly {
		quality = "audio"
	}
	fmt.Fprintf(out, "Quality:   %s\n", quality)
	if job.Collection {
		fmt.Fprintf(out, "Items:     %d\n", job.ItemCount)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", job.Error)
	}
	if job.OutputPath != "" {
		fmt.Fprintf(out, "Output:    %s\n", job.OutputPath)
	}
	fmt.Fprintf(out, "Submitted: %s\n", relativeTime(job.CreatedAt))
	if job.FinishedAt != "" {
		started := api.ParseTime(job.StartedAt)
		finished := api.ParseTime(job.FinishedAt)
		if !started.IsZero() && !finished.IsZero() {
			fmt.Fprintf(out, "Duration:  %s\n", finished.Sub(started).Round(time.Second))
		}
	}
}

// isTerminalWriter reports whether w is an interactive terminal.
func isTerminalWriter(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
