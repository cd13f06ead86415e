package fetch

import (
	"context"
	"errors"
	"time"
)

// ErrAborted is returned by a Sink to ask the provider to stop. Providers
// should return it (possibly wrapped) from Fetch once they have stopped.
var ErrAborted = errors.New("fetch aborted")

// Phase tags a progress event.
type Phase string

const (
	PhaseDownloading    Phase = "downloading"
	PhasePostProcessing Phase = "postprocessing"
	PhaseMerged         Phase = "merged"
	PhaseFinished       Phase = "finished"
)

// Event is one progress report emitted by a provider.
type Event struct {
	Phase Phase
	// Downloaded and Total are byte counts. Total is zero when the provider
	// does not know (or cannot estimate) the size.
	Downloaded int64
	Total      int64
	// Speed is in bytes per second; zero when unknown.
	Speed float64
	// ETA is zero when unknown.
	ETA time.Duration
	// Filename is the artifact path once known.
	Filename string
	// ItemIndex and ItemCount describe the position within a collection
	// (1-based). Both are zero for single items.
	ItemIndex int
	ItemCount int
	Title     string
}

// Sink receives progress events. A non-nil return asks the provider to abort.
type Sink func(Event) error

// Config carries the per-fetch settings the controller derives from job options.
type Config struct {
	OutputTemplate string
	Format         string
	Proxy          string
	Verbose        bool
	// AudioOnly requests audio extraction in AudioFormat at AudioQuality.
	AudioOnly    bool
	AudioFormat  string
	AudioQuality string
	// Collection fetches every item of a collection source rather than one item.
	Collection bool
	// ItemCount is the probed collection size, zero when unknown.
	ItemCount int
}

// Info describes what the provider resolved.
type Info struct {
	Title      string
	Collection bool
	ItemCount  int
	Files      []string
}

// Provider performs a fetch for one source.
type Provider interface {
	Fetch(ctx context.Context, source string, cfg Config, sink Sink) (Info, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, source string, cfg Config, sink Sink) (Info, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context, source string, cfg Config, sink Sink) (Info, error) {
	return f(ctx, source, cfg, sink)
}

// Probe reports whether a source is a collection without downloading it.
// Proxy is the job's proxy endpoint; empty means a direct connection.
type Probe interface {
	Probe(ctx context.Context, source, proxy string) (Probed, error)
}

// Probed is the result of a collection probe.
type Probed struct {
	Collection bool
	Title      string
	ItemCount  int
}

// SingleItem is a Probe that reports every source as a single item.
type SingleItem struct{}

// Probe always reports a single item.
func (SingleItem) Probe(context.Context, string, string) (Probed, error) {
	return Probed{}, nil
}

// Chain tries each probe in order and returns the first that reports a
// collection. Errors from individual probes are skipped; if every probe fails
// the last error is returned.
type Chain []Probe

// Probe implements Probe.
func (c Chain) Probe(ctx context.Context, source, proxy string) (Probed, error) {
	var lastErr error
	failures := 0
	for _, p := range c {
		if p == nil {
			continue
		}
		res, err := p.Probe(ctx, source, proxy)
		if err != nil {
			lastErr = err
			failures++
			continue
		}
		if res.Collection {
			return res, nil
		}
	}
	if failures > 0 && failures == len(c) {
		return Probed{}, lastErr
	}
	return Probed{}, nil
}
