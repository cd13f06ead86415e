package jobs

import (
	"fmt"
	"os"
	"strings"

	"yayd/internal/fileutil"
)

// Result describes the artifact of a completed job.
type Result struct {
	// Path is the downloaded file, or the collection directory.
	Path       string   `json:"path"`
	Collection bool     `json:"collection,omitempty"`
	Files      []string `json:"files,omitempty"`
	Title      string   `json:"title,omitempty"`
}

// Result locates the artifact for a completed job. It prefers the path the
// provider reported and falls back to scanning the output directory for files
// carrying the job id.
func (c *Controller) Result(id string) (Result, error) {
	j, err := c.lookup(id)
	if err != nil {
		return Result{}, err
	}
	snap := j.snapshot()
	switch snap.State {
	case StateCompleted:
	case StateFailed:
		if snap.Error == "" {
			return Result{}, ErrProviderFailure
		}
		return Result{}, fmt.Errorf("%w: %s", ErrProviderFailure, snap.Error)
	case StateCancelled:
		return Result{}, ErrCancelled
	default:
		return Result{}, fmt.Errorf("%w: job is %s", ErrNotReady, snap.State)
	}
	return resolveArtifact(snap)
}

func resolveArtifact(snap Snapshot) (Result, error) {
	res := Result{Collection: snap.Collection, Title: snap.Title}

	tagged, err := fileutil.FindTagged(snap.Options.OutputDir, snap.ID)
	if err != nil {
		return Result{}, fmt.Errorf("scan %s: %w", snap.Options.OutputDir, err)
	}

	if snap.Collection {
		if len(tagged) == 0 {
			return Result{}, fmt.Errorf("%w: file not found", ErrNotFound)
		}
		res.Files = tagged
		res.Path = fileutil.CommonDir(tagged)
		return res, nil
	}

	if path := strings.TrimSpace(snap.OutputPath); path != "" && fileExists(path) {
		res.Path = path
		return res, nil
	}
	if len(tagged) == 0 {
		return Result{}, fmt.Errorf("%w: file not found", ErrNotFound)
	}
	res.Path = tagged[0]
	return res, nil
}

// settledPath picks the artifact left after post-processing. Merging or
// audio extraction removes the intermediates the provider reported, so the
// reported name is only kept while it is on disk. Otherwise the newest
// surviving file from files wins, then the first file tagged with id.
func settledPath(reported string, files []string, dir, id string) string {
	reported = strings.TrimSpace(reported)
	if reported != "" && fileExists(reported) {
		return reported
	}
	for i := len(files) - 1; i >= 0; i-- {
		if fileExists(files[i]) {
			return files[i]
		}
	}
	if tagged, err := fileutil.FindTagged(dir, id); err == nil && len(tagged) > 0 {
		return tagged[0]
	}
	return reported
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
