package ytdlp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"yayd/internal/fetch"
)

func TestTrackerDownloadingEvent(t *testing.T) {
	now := time.Now()
	title := "Big Buck Bunny"
	tr := newTracker(fetch.Config{}, "mp4")
	ev, ok := tr.event(goytdlp.ProgressUpdate{
		Status:          goytdlp.ProgressStatusDownloading,
		DownloadedBytes: 50,
		TotalBytes:      200,
		Filename:        "/dl/Big_Buck_Bunny_tok.f137.mp4",
		Started:         now.Add(-2 * time.Second),
		Info:            &goytdlp.ExtractedInfo{Title: &title},
	}, now)
	if !ok {
		t.Fatal("expected downloading update to map to an event")
	}
	if ev.Phase != fetch.PhaseDownloading || ev.Downloaded != 50 || ev.Total != 200 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Speed != 25 {
		t.Fatalf("expected 25 B/s, got %v", ev.Speed)
	}
	if ev.Title != title || tr.title != title {
		t.Fatalf("title not tracked: event %q tracker %q", ev.Title, tr.title)
	}
	if ev.ItemIndex != 0 {
		t.Fatalf("single item should not carry an index, got %d", ev.ItemIndex)
	}
}

func TestTrackerFinishedMapsMergedName(t *testing.T) {
	tr := newTracker(fetch.Config{}, "mp4")
	for _, name := range []string{"/dl/clip_tok.f137.mp4", "/dl/clip_tok.f140.m4a"} {
		ev, ok := tr.event(goytdlp.ProgressUpdate{Status: goytdlp.ProgressStatusFinished, Filename: name}, time.Now())
		if !ok || ev.Phase != fetch.PhaseFinished {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Filename != "/dl/clip_tok.mp4" {
			t.Fatalf("finalName(%q) = %q", name, ev.Filename)
		}
	}
	if len(tr.files) != 1 {
		t.Fatalf("merged outputs should be remembered once, got %v", tr.files)
	}
}

func TestTrackerFinalNameAudio(t *testing.T) {
	tr := newTracker(fetch.Config{AudioOnly: true, AudioFormat: "mp3"}, "mp4")
	if got := tr.finalName("/dl/song_tok.webm"); got != "/dl/song_tok.mp3" {
		t.Fatalf("unexpected audio name %q", got)
	}
	plain := newTracker(fetch.Config{}, "mp4")
	if got := plain.finalName("/dl/My.film_tok.webm"); got != "/dl/My.film_tok.webm" {
		t.Fatalf("single-format download renamed: %q", got)
	}
}

func TestTrackerCollectionIndex(t *testing.T) {
	tr := newTracker(fetch.Config{Collection: true, ItemCount: 3}, "mp4")
	ev, ok := tr.event(goytdlp.ProgressUpdate{
		Status:          goytdlp.ProgressStatusDownloading,
		DownloadedBytes: 10,
		TotalBytes:      20,
		Filename:        "/dl/Mix/3f2a9c1e-aaaa_002-Track.f137.mp4",
	}, time.Now())
	if !ok {
		t.Fatal("expected event")
	}
	if ev.ItemIndex != 2 || ev.ItemCount != 3 {
		t.Fatalf("unexpected item position %d/%d", ev.ItemIndex, ev.ItemCount)
	}

	ev, _ = tr.event(goytdlp.ProgressUpdate{
		Status:   goytdlp.ProgressStatusDownloading,
		Filename: "/dl/Mix/3f2a9c1e-aaaa_005-Extra.mp4",
	}, time.Now())
	if ev.ItemCount != 5 {
		t.Fatalf("item count should grow with observed index, got %d", ev.ItemCount)
	}
}

func TestTrackerCollectionIndexFromInfo(t *testing.T) {
	tr := newTracker(fetch.Config{Collection: true, ItemCount: 2}, "mp4")
	index, count := 4, 6
	ev, ok := tr.event(goytdlp.ProgressUpdate{
		Status:          goytdlp.ProgressStatusDownloading,
		DownloadedBytes: 1,
		TotalBytes:      2,
		Filename:        "/dl/Mix/renamed by postprocessor.mp4",
		Info:            &goytdlp.ExtractedInfo{PlaylistIndex: &index, PlaylistCount: &count},
	}, time.Now())
	if !ok {
		t.Fatal("expected event")
	}
	if ev.ItemIndex != 4 || ev.ItemCount != 6 {
		t.Fatalf("unexpected item position %d/%d", ev.ItemIndex, ev.ItemCount)
	}

	// The info dict wins over a filename prefix that disagrees with it.
	index = 5
	ev, _ = tr.event(goytdlp.ProgressUpdate{
		Status:   goytdlp.ProgressStatusFinished,
		Filename: "/dl/Mix/tok_001-Other.mp4",
		Info:     &goytdlp.ExtractedInfo{PlaylistIndex: &index},
	}, time.Now())
	if ev.ItemIndex != 5 || ev.ItemCount != 6 {
		t.Fatalf("unexpected item position %d/%d", ev.ItemIndex, ev.ItemCount)
	}
}

func TestTrackerSkipsUnknownStatus(t *testing.T) {
	tr := newTracker(fetch.Config{}, "")
	if _, ok := tr.event(goytdlp.ProgressUpdate{Status: goytdlp.ProgressStatusStarting}, time.Now()); ok {
		t.Fatal("starting updates should be ignored")
	}
	ev, ok := tr.event(goytdlp.ProgressUpdate{Status: goytdlp.ProgressStatusPostProcessing}, time.Now())
	if !ok || ev.Phase != fetch.PhasePostProcessing {
		t.Fatalf("unexpected post-processing event %+v", ev)
	}
}

func TestExistingFilesSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a_tok.mp4")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	tr := newTracker(fetch.Config{}, "")
	tr.remember(present)
	tr.remember(filepath.Join(dir, "gone_tok.mp4"))
	tr.remember(filepath.Join(dir, "b_tok.mp4.part"))
	got := tr.existingFiles()
	if len(got) != 1 || got[0] != present {
		t.Fatalf("existingFiles = %v", got)
	}
}

func TestItemIndex(t *testing.T) {
	cases := map[string]int{
		"":                                  0,
		"/dl/clip_tok.mp4":                  0,
		"/dl/List/tok-1_001-Intro.mp4":      1,
		"/dl/List/tok-1_012-Track_two.webm": 12,
		"/dl/List/tok-1_1234-Long.mp4":      1234,
	}
	for name, want := range cases {
		if got := itemIndex(name); got != want {
			t.Errorf("itemIndex(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestProviderErrorPrefersYtdlpDiagnostic(t *testing.T) {
	base := errors.New("exit status 1")
	stderr := "WARNING: something\nERROR: [youtube] abc: Video unavailable\n"
	if got := providerError(base, stderr); got.Error() != "ERROR: [youtube] abc: Video unavailable" {
		t.Fatalf("unexpected error %q", got)
	}
	if got := providerError(base, "no diagnostics"); got != base {
		t.Fatalf("expected original error, got %v", got)
	}
}
