package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"yayd/internal/config"
	"yayd/internal/daemon"
	"yayd/internal/deps"
	"yayd/internal/fetch/ytdlp"
	"yayd/internal/history"
	"yayd/internal/jobs"
	"yayd/internal/logging"
	"yayd/internal/notifications"
	"yayd/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the yayd daemon and blocks until cmdCtx is cancelled or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "yayd.log")
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String("session_id", uuid.NewString()))

	logDependencySnapshot(logger, cfg)
	reportPreflight(signalCtx, logger, cfg)

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.HistoryPath())
		if err != nil {
			logger.Error("open history store", logging.Error(err))
			return err
		}
		defer store.Close()
	}

	observer := NewTerminalObserver(store, notifications.NewService(cfg), logger)
	defer observer.Wait()

	controller := NewController(cfg, logger, jobs.OnTerminal(observer.Observe))

	d, err := daemon.New(cfg, controller, logger, daemon.WithDependencyChecker(func(ctx context.Context) []deps.Status {
		return preflight.CheckSystemDeps(ctx, cfg)
	}))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	removePID, err := startAndRecordPID(signalCtx, d, filepath.Join(cfg.Paths.StateDir, "yayd.pid"))
	if err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check api_bind and that no other yayd daemon is running"),
		)
		return err
	}
	defer removePID()

	<-signalCtx.Done()
	logger.Info("yayd daemon shutting down")
	return nil
}

// NewController wires the yt-dlp provider and collection probe into a job
// controller configured from cfg.
func NewController(cfg *config.Config, logger *slog.Logger, opts ...jobs.Option) *jobs.Controller {
	fetchOpts := ytdlp.OptionsFromConfig(cfg, logger)
	all := []jobs.Option{
		jobs.WithLogger(logger),
		jobs.WithProbe(ytdlp.NewProbe(fetchOpts)),
	}
	all = append(all, opts...)
	return jobs.New(ytdlp.NewProvider(fetchOpts), jobs.SettingsFromConfig(cfg), all...)
}

func reportPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed", logging.String("check", result.Name))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run yayd deps for details"),
			logging.String(logging.FieldImpact, "downloads may fail"),
		)
	}
}

type starter interface {
	Start(ctx context.Context) error
}

// startAndRecordPID starts d and then writes the pid file. A daemon that
// fails to start leaves an existing pid file alone. The returned func
// removes the file.
func startAndRecordPID(ctx context.Context, d starter, pidPath string) (func(), error) {
	if err := d.Start(ctx); err != nil {
		return nil, err
	}
	if err := writePIDFile(pidPath); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return func() { _ = os.Remove(pidPath) }, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ytdlpBinary := cfg.YtdlpBinary()
	ffmpeg := deps.FFmpegLocation(cfg.Fetch.FFmpegLocation)
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ytdlp_available", binaryAvailable(ytdlpBinary)),
		logging.String("ytdlp_binary", ytdlpBinary),
		logging.Bool("ffmpeg_on_path", binaryAvailable("ffmpeg")),
		logging.String("ffmpeg_location", ffmpeg),
		logging.Bool("history_enabled", cfg.History.Enabled),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.String("download_dir", cfg.Paths.DownloadDir),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
