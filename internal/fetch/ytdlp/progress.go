package ytdlp

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"yayd/internal/fetch"
	"yayd/internal/fileutil"
)

var (
	// itemIndexPattern matches "<token>_<index>-" in collection filenames.
	itemIndexPattern = regexp.MustCompile(`^[^_]+_(\d{3,})-`)
	// formatSuffixPattern matches per-format intermediates such as ".f137.mp4".
	formatSuffixPattern = regexp.MustCompile(`\.f\d+[0-9a-z-]*\.[^.]+$`)
)

// tracker converts raw progress updates into fetch events and remembers the
// files each item finished with.
type tracker struct {
	cfg         fetch.Config
	mergeFormat string
	itemCount   int
	title       string
	files       []string
	seen        map[string]struct{}
}

func newTracker(cfg fetch.Config, mergeFormat string) *tracker {
	count := 0
	if cfg.Collection {
		count = cfg.ItemCount
	}
	return &tracker{
		cfg:         cfg,
		mergeFormat: mergeFormat,
		itemCount:   count,
		seen:        make(map[string]struct{}),
	}
}

func (t *tracker) event(update goytdlp.ProgressUpdate, now time.Time) (fetch.Event, bool) {
	ev := fetch.Event{Filename: update.Filename}
	if update.Info != nil && update.Info.Title != nil {
		ev.Title = strings.TrimSpace(*update.Info.Title)
		if t.title == "" && !t.cfg.Collection {
			t.title = ev.Title
		}
	}
	if t.cfg.Collection {
		if index, count := playlistPosition(update); index > 0 {
			ev.ItemIndex = index
			if count > t.itemCount {
				t.itemCount = count
			}
			if index > t.itemCount {
				t.itemCount = index
			}
			ev.ItemCount = t.itemCount
		}
	}

	switch update.Status {
	case goytdlp.ProgressStatusDownloading:
		ev.Phase = fetch.PhaseDownloading
		ev.Downloaded = int64(update.DownloadedBytes)
		ev.Total = int64(update.TotalBytes)
		if !update.Started.IsZero() {
			if elapsed := now.Sub(update.Started).Seconds(); elapsed > 0 {
				ev.Speed = float64(update.DownloadedBytes) / elapsed
			}
		}
		if ev.Downloaded > 0 {
			ev.ETA = update.ETA()
		}
	case goytdlp.ProgressStatusPostProcessing:
		ev.Phase = fetch.PhasePostProcessing
	case goytdlp.ProgressStatusFinished:
		ev.Phase = fetch.PhaseFinished
		if update.Filename != "" {
			ev.Filename = t.finalName(update.Filename)
			t.remember(ev.Filename)
		}
	default:
		return fetch.Event{}, false
	}
	return ev, true
}

// finalName maps an intermediate download to the artifact yt-dlp leaves after
// merging or audio extraction.
func (t *tracker) finalName(name string) string {
	switch {
	case t.cfg.AudioOnly && t.cfg.AudioFormat != "":
		return strings.TrimSuffix(name, filepath.Ext(name)) + "." + t.cfg.AudioFormat
	case formatSuffixPattern.MatchString(name) && t.mergeFormat != "":
		return formatSuffixPattern.ReplaceAllString(name, "."+t.mergeFormat)
	default:
		return name
	}
}

func (t *tracker) remember(name string) {
	if _, ok := t.seen[name]; ok {
		return
	}
	t.seen[name] = struct{}{}
	t.files = append(t.files, name)
}

// existingFiles returns remembered artifacts that are on disk.
func (t *tracker) existingFiles() []string {
	var out []string
	for _, name := range t.files {
		if fileutil.IsPartial(name) {
			continue
		}
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			out = append(out, name)
		}
	}
	return out
}

// playlistPosition reads the entry position yt-dlp reports in the info dict.
// The "<token>_<index>-" filename prefix is the fallback when the dict has no
// playlist index.
func playlistPosition(update goytdlp.ProgressUpdate) (index, count int) {
	if info := update.Info; info != nil {
		if info.PlaylistIndex != nil {
			index = *info.PlaylistIndex
		}
		if info.PlaylistCount != nil {
			count = *info.PlaylistCount
		}
	}
	if index <= 0 {
		index = itemIndex(update.Filename)
	}
	return index, count
}

func itemIndex(filename string) int {
	if filename == "" {
		return 0
	}
	match := itemIndexPattern.FindStringSubmatch(filepath.Base(filename))
	if match == nil {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}
