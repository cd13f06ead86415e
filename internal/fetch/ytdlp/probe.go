package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"
	ytget "github.com/ytget/ytdlp/v2"

	"yayd/internal/fetch"
)

const defaultProbeTimeout = 60 * time.Second

// FlatProbe asks yt-dlp for a flat extraction of the source and reports a
// collection when the result is a playlist or carries entries.
type FlatProbe struct {
	Binary  string
	Timeout time.Duration
}

// Probe implements fetch.Probe.
func (p FlatProbe) Probe(ctx context.Context, source, proxy string) (fetch.Probed, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := goytdlp.New().FlatPlaylist().DumpSingleJSON()
	if bin := strings.TrimSpace(p.Binary); bin != "" && bin != defaultBinary {
		cmd.SetExecutable(bin)
	}
	if proxy != "" {
		cmd.Proxy(proxy)
	}
	result, err := cmd.Run(ctx, source)
	if err != nil {
		stderr := ""
		if result != nil {
			stderr = result.Stderr
		}
		return fetch.Probed{}, fmt.Errorf("check url type: %w", providerError(err, stderr))
	}
	return parseFlatInfo([]byte(result.Stdout))
}

type flatInfo struct {
	Type          string            `json:"_type"`
	Title         string            `json:"title"`
	PlaylistCount int               `json:"playlist_count"`
	Entries       []json.RawMessage `json:"entries"`
}

// parseFlatInfo reads the single JSON document yt-dlp prints for a flat
// extraction.
func parseFlatInfo(data []byte) (fetch.Probed, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fetch.Probed{}, fmt.Errorf("could not extract video information")
	}
	var info flatInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return fetch.Probed{}, fmt.Errorf("decode flat extraction: %w", err)
	}
	if info.Type != "playlist" && info.Entries == nil {
		return fetch.Probed{}, nil
	}
	count := len(info.Entries)
	if count == 0 {
		count = info.PlaylistCount
	}
	title := strings.TrimSpace(info.Title)
	if title == "" {
		title = "Unknown Playlist"
	}
	return fetch.Probed{Collection: true, Title: title, ItemCount: count}, nil
}

// PlaylistLister returns the item titles of a playlist id, connecting through
// proxy when it is not empty.
type PlaylistLister func(ctx context.Context, playlistID, proxy string) ([]string, error)

// PlaylistProbe recognises "list=" URLs and counts their items through the
// ytget client. Sources without a playlist id are single items.
type PlaylistProbe struct {
	Timeout time.Duration
	List    PlaylistLister
}

// Probe implements fetch.Probe.
func (p PlaylistProbe) Probe(ctx context.Context, source, proxy string) (fetch.Probed, error) {
	id := PlaylistID(source)
	if id == "" {
		return fetch.Probed{}, nil
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	list := p.List
	if list == nil {
		list = listPlaylist
	}
	titles, err := list(ctx, id, proxy)
	if err != nil {
		return fetch.Probed{}, fmt.Errorf("failed to get playlist items: %w", err)
	}
	return fetch.Probed{Collection: true, Title: "Playlist " + id, ItemCount: len(titles)}, nil
}

func listPlaylist(ctx context.Context, playlistID, proxy string) ([]string, error) {
	client, err := proxyClient(proxy)
	if err != nil {
		return nil, err
	}
	items, err := ytget.New().WithHTTPClient(client).GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	return titles, nil
}

// proxyClient returns an HTTP client that routes through proxy, or a plain
// client when proxy is empty.
func proxyClient(proxy string) (*http.Client, error) {
	if proxy == "" {
		return &http.Client{}, nil
	}
	u, err := url.Parse(proxy)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy url %q", proxy)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyURL(u)
	return &http.Client{Transport: transport}, nil
}

// PlaylistID extracts the "list" query parameter from a source URL.
func PlaylistID(source string) string {
	source = strings.TrimSpace(source)
	if !strings.Contains(source, "list=") {
		return ""
	}
	if parsed, err := url.Parse(source); err == nil {
		if id := strings.TrimSpace(parsed.Query().Get("list")); id != "" {
			return id
		}
	}
	part := strings.SplitN(source, "list=", 2)[1]
	if idx := strings.IndexAny(part, "&#"); idx >= 0 {
		part = part[:idx]
	}
	return strings.TrimSpace(part)
}

// NewProbe returns the probe chain used by the daemon: yt-dlp flat
// extraction first, then the playlist id lookup.
func NewProbe(opts Options) fetch.Probe {
	return fetch.Chain{
		FlatProbe{Binary: opts.Binary},
		PlaylistProbe{},
	}
}
