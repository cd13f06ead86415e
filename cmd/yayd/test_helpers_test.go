package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pelletier/go-toml/v2"

	"yayd/internal/config"
	"yayd/internal/daemon"
	"yayd/internal/jobs"
	"yayd/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	controller *jobs.Controller
	provider   *testsupport.FakeProvider
	serverURL  string
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, provider *testsupport.FakeProvider) *cliTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("DOWNLOAD_FOLDER", "")
	t.Setenv("YAYD_API_TOKEN", "")

	configPath := filepath.Join(homeDir, ".config", "yayd", "config.toml")
	writeTestConfig(t, configPath, cfg)

	controller := jobs.New(provider, jobs.SettingsFromConfig(cfg))
	d, err := daemon.New(cfg, controller, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = controller.Shutdown(ctx)
	})

	return &cliTestEnv{
		cfg:        cfg,
		controller: controller,
		provider:   provider,
		serverURL:  srv.URL,
		configPath: configPath,
		baseDir:    base,
	}
}

// useLocalProvider routes in-process downloads through provider.
func useLocalProvider(t *testing.T, provider *testsupport.FakeProvider) {
	t.Helper()
	previous := newLocalController
	newLocalController = func(cfg *config.Config, logger *slog.Logger, opts ...jobs.Option) *jobs.Controller {
		all := append([]jobs.Option{jobs.WithLogger(logger)}, opts...)
		return jobs.New(provider, jobs.SettingsFromConfig(cfg), all...)
	}
	t.Cleanup(func() { newLocalController = previous })
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--api", env.serverURL, "--config", env.configPath}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func onlyJob(t *testing.T, controller *jobs.Controller) jobs.Snapshot {
	t.Helper()
	snaps := controller.List()
	if len(snaps) != 1 {
		t.Fatalf("expected exactly one job, got %d", len(snaps))
	}
	return snaps[0]
}
