package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"yayd/internal/fetch"
	"yayd/internal/testsupport"
)

func TestDownloadRunsInProcessAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t, &testsupport.FakeProvider{})
	useLocalProvider(t, &testsupport.FakeProvider{
		Title: "local",
		Steps: []fetch.Event{{Phase: fetch.PhaseDownloading, Downloaded: 1, Total: 4}},
	})

	export := filepath.Join(t.TempDir(), "copy.mp4")
	out, _, err := runCLI(t, env, "download", "https://example.com/local", "--export", export)
	if err != nil {
		t.Fatalf("download: %v\n%s", err, out)
	}
	requireContains(t, out, "Download completed: ")
	requireContains(t, out, "Exported to "+export)

	data, err := os.ReadFile(export)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "media" {
		t.Fatalf("unexpected export content %q", data)
	}
	if len(env.controller.List()) != 0 {
		t.Fatal("download must not go through the daemon")
	}

	out, _, err = runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Completed")
	requireContains(t, out, "local")

	out, _, err = runCLI(t, env, "history", "--state", "failed")
	if err != nil {
		t.Fatalf("history --state: %v", err)
	}
	requireContains(t, out, "No history")

	out, _, err = runCLI(t, env, "history", "prune", "--older-than", "30d")
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	requireContains(t, out, "Removed 0 history entries")
}

func TestDownloadExportsMergedFile(t *testing.T) {
	env := setupCLITestEnv(t, &testsupport.FakeProvider{})
	useLocalProvider(t, &testsupport.FakeProvider{Title: "merged", Intermediate: "f137.mp4"})

	export := filepath.Join(t.TempDir(), "copy.mp4")
	out, _, err := runCLI(t, env, "download", "https://example.com/merged", "--export", export)
	if err != nil {
		t.Fatalf("download: %v\n%s", err, out)
	}
	requireContains(t, out, "Exported to "+export)
	if strings.Contains(out, ".f137.") {
		t.Fatalf("completion line names the per-format file:\n%s", out)
	}
	data, err := os.ReadFile(export)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "media" {
		t.Fatalf("unexpected export content %q", data)
	}
}

func TestSubmitPassesOutputDirToDaemon(t *testing.T) {
	env := setupCLITestEnv(t, &testsupport.FakeProvider{})
	if _, _, err := runCLI(t, env, "submit", "https://example.com/v", "--output-dir", "music"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	job := onlyJob(t, env.controller)
	if want := filepath.Join(env.cfg.Paths.DownloadDir, "music"); job.Options.OutputDir != want {
		t.Fatalf("output dir %q, want %q", job.Options.OutputDir, want)
	}

	if _, _, err := runCLI(t, env, "submit", "https://example.com/v", "--output-dir", "../outside"); err == nil {
		t.Fatal("expected a directory outside the download directory to be rejected")
	}
}

func TestDownloadReportsProviderFailure(t *testing.T) {
	env := setupCLITestEnv(t, &testsupport.FakeProvider{})
	useLocalProvider(t, &testsupport.FakeProvider{Err: errors.New("ERROR: Video unavailable")})

	out, _, err := runCLI(t, env, "download", "https://example.com/gone")
	if err == nil {
		t.Fatal("expected failed download to return an error")
	}
	requireContains(t, out, "Download failed: ")
	requireContains(t, out, "Video unavailable")
}

func TestHistoryRejectsUnknownState(t *testing.T) {
	env := setupCLITestEnv(t, &testsupport.FakeProvider{})
	if _, _, err := runCLI(t, env, "history", "--state", "paused"); err == nil {
		t.Fatal("expected unknown state error")
	}
}

func TestParseAge(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"30d", 30 * 24 * time.Hour, true},
		{"12h", 12 * time.Hour, true},
		{"0d", 0, true},
		{"-1d", 0, false},
		{"soon", 0, false},
	}
	for _, tc := range cases {
		got, err := parseAge(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("parseAge(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("parseAge(%q) expected error", tc.in)
		}
	}
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t, &testsupport.FakeProvider{})

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}

	env.cfg.Paths.APIToken = "secret-token"
	writeTestConfig(t, env.configPath, env.cfg)
	out, _, err = runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "download_dir")
	requireContains(t, out, "********")
	if strings.Contains(out, "secret-token") {
		t.Fatal("config show leaked the API token")
	}
}
