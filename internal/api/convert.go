package api

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"yayd/internal/deps"
	"yayd/internal/jobs"
)

// JobRequest converts the wire request into a controller request. "url" wins
// over "source" when both are set.
func (r SubmitRequest) JobRequest() jobs.Request {
	source := strings.TrimSpace(r.URL)
	if source == "" {
		source = strings.TrimSpace(r.Source)
	}
	return jobs.Request{
		Source:    source,
		Quality:   r.Quality,
		AudioOnly: r.AudioOnly,
		UseProxy:  r.UseProxy,
		ProxyURL:  r.ProxyURL,
		OutputDir: r.OutputDir,
		Verbose:   r.Verbose,
	}
}

// FromSnapshot converts a job snapshot to its API representation.
func FromSnapshot(snap jobs.Snapshot) JobStatus {
	return JobStatus{
		ID:              snap.ID,
		Source:          snap.Source,
		State:           string(snap.State),
		Status:          snap.StatusMessage,
		Progress:        snap.Progress,
		Indeterminate:   snap.Indeterminate,
		Error:           snap.Error,
		ErrorCode:       snap.ErrorCode,
		OutputPath:      snap.OutputPath,
		Title:           snap.Title,
		Collection:      snap.Collection,
		ItemIndex:       snap.ItemIndex,
		ItemCount:       snap.ItemCount,
		CancelRequested: snap.CancelRequested,
		Quality:         string(snap.Options.Quality),
		AudioOnly:       snap.Options.AudioOnly,
		ProxyUsed:       snap.Options.Proxy != "",
		OutputDir:       snap.Options.OutputDir,
		CreatedAt:       formatTime(snap.CreatedAt),
		StartedAt:       formatTime(snap.StartedAt),
		FinishedAt:      formatTime(snap.FinishedAt),
		Version:         snap.Version,
	}
}

// FromSnapshots converts a slice of snapshots, preserving order.
func FromSnapshots(snaps []jobs.Snapshot) []JobStatus {
	out := make([]JobStatus, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, FromSnapshot(snap))
	}
	return out
}

// FromEvent converts a bus event into its SSE payload.
func FromEvent(ev jobs.Event) JobEvent {
	return JobEvent{
		Seq:       ev.Seq,
		Type:      string(ev.Type),
		Timestamp: formatTime(ev.Timestamp),
		Job:       FromSnapshot(ev.Job),
	}
}

// FromResult lists the artifacts of a completed job. Missing files are
// reported with size zero.
func FromResult(id string, res jobs.Result) ResultListing {
	listing := ResultListing{
		ID:         id,
		Title:      res.Title,
		Path:       res.Path,
		Collection: res.Collection,
	}
	files := res.Files
	if len(files) == 0 && res.Path != "" {
		files = []string{res.Path}
	}
	for _, path := range files {
		file := ResultFile{Name: filepath.Base(path), Path: path}
		if info, err := os.Stat(path); err == nil {
			file.Size = info.Size()
		}
		listing.Files = append(listing.Files, file)
	}
	return listing
}

// FromDependencyStatuses converts dependency checks for transport.
func FromDependencyStatuses(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}

// ParseTime reads a timestamp produced by this package. Invalid or empty
// values yield the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
