package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"yayd/internal/config"
	"yayd/internal/deps"
	"yayd/internal/jobs"
	"yayd/internal/logging"
)

const shutdownGrace = 10 * time.Second

// DependencyChecker reports external tool availability for health output.
type DependencyChecker func(ctx context.Context) []deps.Status

// Option customizes a Daemon.
type Option func(*Daemon)

// WithDependencyChecker sets the dependency probe used by Status.
func WithDependencyChecker(fn DependencyChecker) Option {
	return func(d *Daemon) {
		if fn != nil {
			d.checkDeps = fn
		}
	}
}

// Daemon owns the controller and API server and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	controller *jobs.Controller
	checkDeps  DependencyChecker

	lockPath string
	lock     *flock.Flock

	server *apiServer

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	Bind         string
	DownloadDir  string
	LockFilePath string
	HistoryPath  string
	Jobs         map[jobs.State]int
	Dependencies []deps.Status
}

// New constructs a daemon around an existing controller.
func New(cfg *config.Config, controller *jobs.Controller, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || controller == nil {
		return nil, errors.New("daemon requires config and controller")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		controller: controller,
		checkDeps:  func(context.Context) []deps.Status { return nil },
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.server = newAPIServer(d, logger)
	return d, nil
}

// Start acquires the daemon lock and begins serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another yayd daemon instance is already running")
	}

	if err := d.server.start(ctx, d.cfg.Paths.APIBind); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("yayd daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("bind", d.server.addr()),
	)
	return nil
}

// Stop shuts down the API server, cancels every job, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.server.stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := d.controller.Shutdown(ctx); err != nil {
		logging.WarnWithContext(d.logger, "jobs did not stop in time", "daemon_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "in-flight downloads may leave partial files"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("yayd daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Controller exposes the job controller.
func (d *Daemon) Controller() *jobs.Controller {
	return d.controller
}

// Handler returns the HTTP handler serving the API.
func (d *Daemon) Handler() http.Handler {
	return d.server.engine
}

// Addr reports the address the API server is listening on.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    startedAt,
		Bind:         d.server.addr(),
		DownloadDir:  d.cfg.Paths.DownloadDir,
		LockFilePath: d.lockPath,
		Jobs:         d.controller.Counts(),
		Dependencies: d.checkDeps(ctx),
	}
	if status.Bind == "" {
		status.Bind = d.cfg.Paths.APIBind
	}
	if d.cfg.History.Enabled {
		status.HistoryPath = d.cfg.HistoryPath()
	}
	return status
}
