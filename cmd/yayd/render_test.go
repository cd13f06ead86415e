package main

import (
	"bytes"
	"strings"
	"testing"

	"yayd/internal/api"
	"yayd/internal/deps"
)

func TestStateLabelAndProgress(t *testing.T) {
	if got := stateLabel("cancelled"); got != "Cancelled" {
		t.Fatalf("stateLabel = %q", got)
	}
	if got := stateLabel(""); got != "Unknown" {
		t.Fatalf("stateLabel empty = %q", got)
	}
	if got := formatProgress(api.JobStatus{State: "running", Progress: 12.34}); got != "12.3%" {
		t.Fatalf("formatProgress = %q", got)
	}
	if got := formatProgress(api.JobStatus{State: "running", Indeterminate: true}); got != "?" {
		t.Fatalf("formatProgress indeterminate = %q", got)
	}
}

func TestRenderDependencyTable(t *testing.T) {
	out := renderDependencyTable([]deps.Status{
		{Name: "yt-dlp", Command: "yt-dlp", Available: true},
		{Name: "ffprobe", Command: "ffprobe", Optional: true, Detail: "not found"},
	})
	for _, want := range []string{"yt-dlp", "ok", "missing (optional)", "not found"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected table to contain %q:\n%s", want, out)
		}
	}
}

func TestProgressRendererLineMode(t *testing.T) {
	var buf bytes.Buffer
	r := newProgressRenderer(&buf, false, "abc")
	r.Update(api.JobStatus{State: "running", Progress: 1, Status: "Downloading 1%"})
	r.Update(api.JobStatus{State: "running", Progress: 5, Status: "Downloading 5%"})
	r.Update(api.JobStatus{State: "running", Progress: 15, Status: "Downloading 15%"})
	if err := r.Finish(api.JobStatus{ID: "abc", State: "completed", OutputPath: "/tmp/clip.mp4"}); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "Downloading 5%") {
		t.Fatalf("expected updates within one bucket to be collapsed:\n%s", out)
	}
	requireContains(t, out, "Downloading 15%")
	requireContains(t, out, "Download completed: /tmp/clip.mp4")

	if err := r.Finish(api.JobStatus{ID: "abc", State: "failed", Error: "boom"}); err == nil {
		t.Fatal("expected failed job to return an error")
	}
}
