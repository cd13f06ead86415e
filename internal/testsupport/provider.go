package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"yayd/internal/fetch"
)

// FakeCall records one Fetch invocation.
type FakeCall struct {
	Source string
	Config fetch.Config
}

// FakeProvider is a scriptable fetch.Provider. It emits Steps in order, then
// optionally blocks on Hold, then either returns Err or writes an artifact at
// the expanded output template and reports it with a finished event.
type FakeProvider struct {
	Title string
	Ext   string
	Steps []fetch.Event
	// Hold, when non-nil, blocks the fetch until it is closed or the fetch
	// context ends.
	Hold chan struct{}
	Err  error
	// Intermediate, when set, is the extension of a per-format file (for
	// example "f137.mp4") that is reported finished and then merged into the
	// artifact. Only the intermediate name reaches the sink.
	Intermediate string

	mu    sync.Mutex
	calls []FakeCall
}

// Fetch implements fetch.Provider.
func (p *FakeProvider) Fetch(ctx context.Context, source string, cfg fetch.Config, sink fetch.Sink) (fetch.Info, error) {
	p.mu.Lock()
	p.calls = append(p.calls, FakeCall{Source: source, Config: cfg})
	p.mu.Unlock()

	for _, ev := range p.Steps {
		if err := sink(ev); err != nil {
			return fetch.Info{}, fmt.Errorf("progress callback: %w", err)
		}
	}
	if p.Hold != nil {
		select {
		case <-p.Hold:
		case <-ctx.Done():
			return fetch.Info{}, ctx.Err()
		}
	}
	if p.Err != nil {
		return fetch.Info{}, p.Err
	}

	title := p.Title
	if title == "" {
		title = "video"
	}
	ext := p.Ext
	if ext == "" {
		ext = "mp4"
		if cfg.AudioOnly && cfg.AudioFormat != "" {
			ext = cfg.AudioFormat
		}
	}
	path := ExpandTemplate(cfg.OutputTemplate, title, ext, 1)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fetch.Info{}, err
	}
	if p.Intermediate != "" {
		intermediate := ExpandTemplate(cfg.OutputTemplate, title, p.Intermediate, 1)
		if err := sink(fetch.Event{Phase: fetch.PhaseFinished, Filename: intermediate, Title: title}); err != nil {
			return fetch.Info{}, fmt.Errorf("progress callback: %w", err)
		}
		if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
			return fetch.Info{}, err
		}
		return fetch.Info{Title: title, Collection: cfg.Collection}, nil
	}
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return fetch.Info{}, err
	}
	if err := sink(fetch.Event{Phase: fetch.PhaseFinished, Filename: path, Title: title}); err != nil {
		return fetch.Info{}, fmt.Errorf("progress callback: %w", err)
	}
	return fetch.Info{Title: title, Collection: cfg.Collection, Files: []string{path}}, nil
}

// Calls returns a copy of the recorded invocations.
func (p *FakeProvider) Calls() []FakeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]FakeCall(nil), p.calls...)
}

// ExpandTemplate fills the output template fields the controller emits.
func ExpandTemplate(template, title, ext string, index int) string {
	r := strings.NewReplacer(
		"%(title).100s", title,
		"%(title)s", title,
		"%(ext)s", ext,
		"%(playlist_title)s", title,
		"%(playlist_index)03d", fmt.Sprintf("%03d", index),
	)
	return r.Replace(template)
}
