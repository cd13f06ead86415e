package jobs

import (
	"path/filepath"
	"testing"
)

func TestFormatSelector(t *testing.T) {
	cases := []struct {
		quality   Quality
		audioOnly bool
		want      string
	}{
		{Quality480, false, "bestvideo[height<=480]+bestaudio/best[height<=480]"},
		{Quality720, false, "bestvideo[height<=720]+bestaudio/best[height<=720]"},
		{Quality1080, false, "bestvideo[height<=1080]+bestaudio/best[height<=1080]"},
		{QualityBest, false, "bestvideo+bestaudio/best"},
		{Quality("8k"), false, "bestvideo+bestaudio/best"},
		{Quality720, true, "bestaudio/best"},
	}
	for _, tc := range cases {
		if got := FormatSelector(tc.quality, tc.audioOnly); got != tc.want {
			t.Errorf("FormatSelector(%q, %v) = %q, want %q", tc.quality, tc.audioOnly, got, tc.want)
		}
	}
}

func TestParseQuality(t *testing.T) {
	cases := map[string]Quality{
		"480":   Quality480,
		"720p":  Quality720,
		" 1080": Quality1080,
		"best":  QualityBest,
		"":      QualityBest,
		"4k":    QualityBest,
	}
	for in, want := range cases {
		if got := ParseQuality(in); got != want {
			t.Errorf("ParseQuality(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOutputTemplate(t *testing.T) {
	dir := filepath.Join("dl", "videos")
	if got, want := OutputTemplate(dir, "abc", false), filepath.Join(dir, "%(title).100s_abc.%(ext)s"); got != want {
		t.Fatalf("single template = %q, want %q", got, want)
	}
	want := filepath.Join(dir, "%(playlist_title)s", "abc_%(playlist_index)03d-%(title)s.%(ext)s")
	if got := OutputTemplate(dir, "abc", true); got != want {
		t.Fatalf("collection template = %q, want %q", got, want)
	}
}

func TestStateTransitions(t *testing.T) {
	allowed := map[[2]State]bool{
		{StatePending, StateRunning}:   true,
		{StatePending, StateCancelled}: true,
		{StateRunning, StateCompleted}: true,
		{StateRunning, StateFailed}:    true,
		{StateRunning, StateCancelled}: true,
	}
	for _, from := range AllStates() {
		for _, to := range AllStates() {
			if got := isValidTransition(from, to); got != allowed[[2]State{from, to}] {
				t.Errorf("isValidTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
	if _, ok := ParseState(" Running "); !ok {
		t.Fatal("expected ParseState to accept mixed case")
	}
}
