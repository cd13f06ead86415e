package fileutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindTaggedSkipsPartials(t *testing.T) {
	dir := t.TempDir()
	tag := "3f2a9c1e-aaaa"
	writeFile(t, filepath.Join(dir, "Song_"+tag+".mp4"), "v")
	writeFile(t, filepath.Join(dir, "Song_"+tag+".mp4.part"), "p")
	writeFile(t, filepath.Join(dir, "Song_"+tag+".f137.mp4.ytdl"), "y")
	writeFile(t, filepath.Join(dir, "Other_deadbeef.mp4"), "o")
	writeFile(t, filepath.Join(dir, "List", tag+"_001-a.mp4"), "a")

	got, err := FindTagged(dir, tag)
	if err != nil {
		t.Fatalf("FindTagged: %v", err)
	}
	want := []string{
		filepath.Join(dir, "List", tag+"_001-a.mp4"),
		filepath.Join(dir, "Song_"+tag+".mp4"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindTagged = %v, want %v", got, want)
	}

	partials, err := FindPartials(dir, tag)
	if err != nil {
		t.Fatalf("FindPartials: %v", err)
	}
	wantPartials := []string{
		filepath.Join(dir, "Song_"+tag+".f137.mp4.ytdl"),
		filepath.Join(dir, "Song_"+tag+".mp4.part"),
	}
	if !reflect.DeepEqual(partials, wantPartials) {
		t.Fatalf("FindPartials = %v, want %v", partials, wantPartials)
	}
}

func TestFindTaggedMissingRoot(t *testing.T) {
	got, err := FindTagged(filepath.Join(t.TempDir(), "missing"), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}

func TestFindTaggedRequiresTag(t *testing.T) {
	if _, err := FindTagged(t.TempDir(), " "); err == nil {
		t.Fatal("expected error for empty tag")
	}
}

func TestIsPartial(t *testing.T) {
	cases := map[string]bool{
		"video.mp4":             false,
		"video.mp4.part":        true,
		"video.MP4.PART":        true,
		"video.ytdl":            true,
		"video.temp":            true,
		"video.f137.mp4.tmp":    true,
		"video.mp4.part-Frag12": true,
	}
	for name, want := range cases {
		if got := IsPartial(name); got != want {
			t.Errorf("IsPartial(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestCommonDir(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "dl")
	got := CommonDir([]string{
		filepath.Join(root, "List", "a.mp4"),
		filepath.Join(root, "List", "b.mp4"),
	})
	if got != filepath.Join(root, "List") {
		t.Fatalf("CommonDir = %q", got)
	}
	got = CommonDir([]string{
		filepath.Join(root, "One", "a.mp4"),
		filepath.Join(root, "Two", "b.mp4"),
	})
	if got != root {
		t.Fatalf("CommonDir across siblings = %q", got)
	}
	if CommonDir(nil) != "" {
		t.Fatal("expected empty dir for no paths")
	}
}

func TestConfine(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "srv", "downloads")
	ok := []struct{ in, want string }{
		{"music", filepath.Join(root, "music")},
		{".", root},
		{filepath.Join(root, "a", ".."), root},
		{filepath.Join(root, "shows/s1"), filepath.Join(root, "shows", "s1")},
	}
	for _, tc := range ok {
		got, err := Confine(root, tc.in)
		if err != nil || got != tc.want {
			t.Errorf("Confine(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
	for _, in := range []string{"..", "../etc", filepath.Join(root, "..", "other"), string(filepath.Separator), root + "-evil"} {
		if got, err := Confine(root, in); err == nil {
			t.Errorf("Confine(%q) = %q, expected an error", in, got)
		}
	}
}

func TestExportFileIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	writeFile(t, src, "payload")
	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ExportFile(src, dest)
	if err != nil {
		t.Fatalf("ExportFile: %v", err)
	}
	if got != filepath.Join(dest, "src.mp4") {
		t.Fatalf("unexpected export path %q", got)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Fatalf("content mismatch: %q", data)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	writeFile(t, src, "verified copy content")

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "verified copy content" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst.bin")); err == nil {
		t.Fatal("expected error for missing source")
	}
}
