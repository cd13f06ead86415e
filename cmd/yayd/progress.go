package main

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/schollz/progressbar/v3"

	"yayd/internal/api"
)

// progressRenderer shows job progress as a bar on terminals and as sparse
// status lines elsewhere.
type progressRenderer struct {
	out        io.Writer
	bar        *progressbar.ProgressBar
	lastState  string
	lastBucket int
}

func newProgressRenderer(out io.Writer, interactive bool, label string) *progressRenderer {
	r := &progressRenderer{out: out, lastBucket: -1}
	if interactive {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}
	return r
}

// Update renders a non-terminal snapshot.
func (r *progressRenderer) Update(job api.JobStatus) {
	if r.bar != nil {
		r.bar.Describe(truncate(job.Status, 60))
		_ = r.bar.Set(int(math.Floor(job.Progress)))
		return
	}
	bucket := int(job.Progress) / 10
	if job.State == r.lastState && bucket == r.lastBucket {
		return
	}
	r.lastState = job.State
	r.lastBucket = bucket
	fmt.Fprintf(r.out, "%-9s %s\n", stateLabel(job.State), job.Status)
}

// Finish renders the terminal snapshot and returns an error for jobs that
// did not complete.
func (r *progressRenderer) Finish(job api.JobStatus) error {
	if r.bar != nil {
		if job.State == "completed" {
			_ = r.bar.Set(100)
		}
		_ = r.bar.Exit()
		fmt.Fprintln(r.out)
	}
	switch job.State {
	case "completed":
		if job.OutputPath != "" {
			fmt.Fprintf(r.out, "Download completed: %s\n", job.OutputPath)
		} else {
			fmt.Fprintln(r.out, "Download completed")
		}
		return nil
	case "cancelled":
		fmt.Fprintln(r.out, "Download cancelled")
		return fmt.Errorf("job %s cancelled", job.ID)
	default:
		fmt.Fprintf(r.out, "Download failed: %s\n", job.Error)
		return fmt.Errorf("job %s failed", job.ID)
	}
}
