package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"yayd/internal/config"
	"yayd/internal/fetch"
	"yayd/internal/fileutil"
	"yayd/internal/logging"
	"yayd/internal/services"
)

// Settings holds controller-wide defaults and limits.
type Settings struct {
	OutputDir    string
	AudioFormat  string
	AudioQuality string
	Verbose      bool
	DefaultProxy string
	// MaxConcurrent caps running workers; zero runs every job immediately.
	MaxConcurrent int
	// Timeout bounds one fetch; zero disables it.
	Timeout time.Duration
	// RetainTerminal keeps at most this many finished jobs; zero keeps all.
	RetainTerminal int
}

// SettingsFromConfig derives controller settings from application config.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{}
	}
	return Settings{
		OutputDir:      cfg.Paths.DownloadDir,
		AudioFormat:    cfg.Fetch.AudioFormat,
		AudioQuality:   cfg.Fetch.AudioQuality,
		Verbose:        cfg.Fetch.Verbose,
		DefaultProxy:   cfg.Fetch.DefaultProxy,
		MaxConcurrent:  cfg.Jobs.MaxConcurrent,
		Timeout:        time.Duration(cfg.Jobs.TimeoutSeconds) * time.Second,
		RetainTerminal: cfg.Jobs.RetainTerminal,
	}
}

// Request is a submission as received from a caller. Quality is free text and
// is normalized with ParseQuality.
type Request struct {
	Source    string
	Quality   string
	AudioOnly bool
	UseProxy  bool
	ProxyURL  string
	OutputDir string
	Verbose   bool
}

// Option customizes a Controller.
type Option func(*Controller)

// WithProbe sets the collection probe used before each fetch.
func WithProbe(p fetch.Probe) Option {
	return func(c *Controller) {
		if p != nil {
			c.probe = p
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEventBus sets the bus that receives job events.
func WithEventBus(bus *EventBus) Option {
	return func(c *Controller) {
		if bus != nil {
			c.bus = bus
		}
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(c *Controller) {
		if fn != nil {
			c.now = fn
		}
	}
}

// OnTerminal registers a callback invoked once per job when it reaches a
// terminal state. Callbacks run on the worker goroutine.
func OnTerminal(fn func(Snapshot)) Option {
	return func(c *Controller) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

// Controller owns the job table and the workers that run each job.
type Controller struct {
	provider  fetch.Provider
	probe     fetch.Probe
	settings  Settings
	logger    *slog.Logger
	bus       *EventBus
	newID     func() string
	now       func() time.Time
	observers []func(Snapshot)

	mu     sync.RWMutex
	jobs   map[string]*job
	order  []string
	closed bool

	slots  chan struct{}
	base   context.Context
	stop   context.CancelFunc
	active sync.WaitGroup
}

// New constructs a controller that delegates fetches to provider.
func New(provider fetch.Provider, settings Settings, opts ...Option) *Controller {
	base, stop := context.WithCancel(context.Background())
	c := &Controller{
		provider: provider,
		probe:    fetch.SingleItem{},
		settings: settings,
		logger:   logging.NewNop(),
		bus:      NewEventBus(0),
		newID:    uuid.NewString,
		now:      time.Now,
		jobs:     make(map[string]*job),
		base:     base,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(c)
	}
	if settings.MaxConcurrent > 0 {
		c.slots = make(chan struct{}, settings.MaxConcurrent)
	}
	c.logger = logging.NewComponentLogger(c.logger, "jobs")
	return c
}

// Events exposes the controller event bus.
func (c *Controller) Events() *EventBus {
	return c.bus
}

// Settings returns the controller settings.
func (c *Controller) Settings() Settings {
	return c.settings
}

// Submit validates the request, records a pending job, and starts its worker.
// It never blocks on network I/O.
func (c *Controller) Submit(ctx context.Context, req Request) (string, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return "", fmt.Errorf("%w: URL is required", ErrInvalidInput)
	}
	opts := Options{
		Quality:   ParseQuality(req.Quality),
		AudioOnly: req.AudioOnly,
		OutputDir: strings.TrimSpace(req.OutputDir),
		Verbose:   req.Verbose || c.settings.Verbose,
	}
	if opts.OutputDir == "" {
		opts.OutputDir = c.settings.OutputDir
	}
	if opts.OutputDir == "" {
		return "", fmt.Errorf("%w: output directory is required", ErrInvalidInput)
	}
	if req.UseProxy {
		opts.Proxy = strings.TrimSpace(req.ProxyURL)
		if opts.Proxy == "" {
			opts.Proxy = c.settings.DefaultProxy
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	id := c.newID()
	for _, exists := c.jobs[id]; exists || id == ""; _, exists = c.jobs[id] {
		id = uuid.NewString()
	}
	j := newJob(id, source, opts, c.now())
	c.jobs[id] = j
	c.order = append(c.order, id)
	c.active.Add(1)
	c.mu.Unlock()

	snap := j.snapshot()
	c.bus.Publish(Event{Type: EventSubmitted, Job: snap})
	logger := logging.WithContext(services.WithJobID(ctx, id), c.logger)
	logger.Info("job submitted",
		logging.String(logging.FieldSource, source),
		logging.String("quality", string(opts.Quality)),
		logging.Bool("audio_only", opts.AudioOnly),
		logging.Bool("proxy", opts.Proxy != ""),
	)

	go c.run(j)
	return id, nil
}

// Status returns an instantaneous snapshot of the job.
func (c *Controller) Status(id string) (Snapshot, error) {
	j, err := c.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return j.snapshot(), nil
}

// List returns snapshots of every tracked job, newest first.
func (c *Controller) List() []Snapshot {
	c.mu.RLock()
	tracked := make([]*job, 0, len(c.order))
	for i := len(c.order) - 1; i >= 0; i-- {
		if j, ok := c.jobs[c.order[i]]; ok {
			tracked = append(tracked, j)
		}
	}
	c.mu.RUnlock()

	out := make([]Snapshot, 0, len(tracked))
	for _, j := range tracked {
		out = append(out, j.snapshot())
	}
	return out
}

// Cancel requests cancellation. Cancelling a terminal job is a no-op.
// Pending jobs move straight to cancelled; running jobs are cancelled by
// their worker at the next progress callback or when the fetch context ends.
func (c *Controller) Cancel(id string) error {
	j, err := c.lookup(id)
	if err != nil {
		return err
	}

	j.mu.Lock()
	if j.rec.state.IsTerminal() {
		j.mu.Unlock()
		return nil
	}
	if !j.rec.cancelRequested {
		j.rec.cancelRequested = true
		j.rec.statusMessage = messageCancelling
		j.rec.version++
	}
	terminal := false
	if j.rec.state == StatePending {
		terminal = c.finishLocked(j, StateCancelled, messageCancelled, "", "")
	}
	cancelFetch := j.cancelFetch
	snap := j.snapshotLocked()
	j.mu.Unlock()

	j.signalCancel()
	if cancelFetch != nil {
		cancelFetch()
	}
	c.logger.Info("job cancel requested", logging.String(logging.FieldJobID, id), logging.String(logging.FieldState, string(snap.State)))
	if terminal {
		c.afterTerminal(snap)
	} else {
		c.bus.Publish(Event{Type: EventState, Job: snap})
	}
	return nil
}

// Forget drops a terminal job from the table.
func (c *Controller) Forget(id string) error {
	j, err := c.lookup(id)
	if err != nil {
		return err
	}
	snap := j.snapshot()
	if !snap.State.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobActive, id, snap.State)
	}
	c.mu.Lock()
	c.removeLocked(id)
	c.mu.Unlock()
	c.bus.Publish(Event{Type: EventForgotten, Job: snap})
	return nil
}

// Subscribe streams events for one job. The current snapshot is returned so
// callers can render state before the first event arrives.
func (c *Controller) Subscribe(id string) (Snapshot, <-chan Event, func(), error) {
	j, err := c.lookup(id)
	if err != nil {
		return Snapshot{}, nil, nil, err
	}
	ch, cancel := c.bus.Subscribe(j.id, 64)
	return j.snapshot(), ch, cancel, nil
}

// Wait blocks until the job is terminal or ctx ends.
func (c *Controller) Wait(ctx context.Context, id string) (Snapshot, error) {
	j, err := c.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	select {
	case <-j.done:
		return j.snapshot(), nil
	case <-ctx.Done():
		return j.snapshot(), ctx.Err()
	}
}

// Shutdown stops accepting jobs, cancels every active job, and waits for
// workers to exit or ctx to end.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	ids := append([]string(nil), c.order...)
	c.mu.Unlock()

	for _, id := range ids {
		_ = c.Cancel(id)
	}
	c.stop()

	done := make(chan struct{})
	go func() {
		c.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Counts returns the number of tracked jobs per state.
func (c *Controller) Counts() map[State]int {
	counts := make(map[State]int, len(allStates))
	for _, snap := range c.List() {
		counts[snap.State]++
	}
	return counts
}

func (c *Controller) lookup(id string) (*job, error) {
	id = strings.TrimSpace(id)
	c.mu.RLock()
	j, ok := c.jobs[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j, nil
}

func (c *Controller) removeLocked(id string) {
	delete(c.jobs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// run is the worker for one job.
func (c *Controller) run(j *job) {
	defer c.active.Done()
	defer close(j.done)

	ctx := services.WithJobID(c.base, j.id)
	logger := logging.WithContext(ctx, c.logger)

	if c.slots != nil {
		select {
		case c.slots <- struct{}{}:
			defer func() { <-c.slots }()
		case <-j.cancelCh:
			return
		case <-c.base.Done():
			c.finish(j, StateCancelled, messageCancelled, "", "")
			return
		}
	}

	var (
		fetchCtx    context.Context
		cancelFetch context.CancelFunc
	)
	if c.settings.Timeout > 0 {
		fetchCtx, cancelFetch = context.WithTimeout(ctx, c.settings.Timeout)
	} else {
		fetchCtx, cancelFetch = context.WithCancel(ctx)
	}
	defer cancelFetch()

	j.mu.Lock()
	if !j.transitionLocked(StateRunning, c.now()) {
		j.mu.Unlock()
		return
	}
	j.cancelFetch = cancelFetch
	j.rec.statusMessage = messageStarting
	snap := j.snapshotLocked()
	j.mu.Unlock()
	c.bus.Publish(Event{Type: EventState, Job: snap})
	logger.Info("job started", logging.String(logging.FieldSource, j.source))

	if err := os.MkdirAll(j.options.OutputDir, 0o755); err != nil {
		msg := fmt.Sprintf("create output directory %s: %v", j.options.OutputDir, err)
		c.finish(j, StateFailed, "Failed", msg, CodeInvalidInput)
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.String("reason", msg),
			logging.String(logging.FieldErrorHint, "check download_dir permissions"),
		)
		return
	}

	probed, err := c.probe.Probe(fetchCtx, j.source, j.options.Proxy)
	if err != nil {
		logger.Debug("collection probe failed; treating as single item", logging.Error(err))
		probed = fetch.Probed{}
	}
	if probed.Collection {
		j.mu.Lock()
		j.rec.collection = true
		if j.rec.title == "" {
			j.rec.title = probed.Title
		}
		if probed.ItemCount > 0 {
			j.rec.itemCount = probed.ItemCount
		}
		j.rec.version++
		j.mu.Unlock()
		logger.Info("source is a collection", logging.String("title", probed.Title), logging.Int("items", probed.ItemCount))
	}

	fetchCfg := fetch.Config{
		OutputTemplate: OutputTemplate(j.options.OutputDir, j.id, probed.Collection),
		Format:         FormatSelector(j.options.Quality, j.options.AudioOnly),
		Proxy:          j.options.Proxy,
		Verbose:        j.options.Verbose,
		AudioOnly:      j.options.AudioOnly,
		AudioFormat:    c.settings.AudioFormat,
		AudioQuality:   c.settings.AudioQuality,
		Collection:     probed.Collection,
		ItemCount:      probed.ItemCount,
	}

	var info fetch.Info
	if !j.cancelled() {
		info, err = c.provider.Fetch(fetchCtx, j.source, fetchCfg, c.sink(j, logger))
	}

	switch {
	case j.cancelled():
		c.removePartials(j, logger)
		c.finish(j, StateCancelled, messageCancelled, "", "")
		logger.Info("job cancelled")
	case err != nil:
		msg := err.Error()
		code := CodeProviderFailure
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("timed out after %s: %s", c.settings.Timeout, msg)
			code = CodeTimeout
		}
		c.finish(j, StateFailed, "Failed", msg, code)
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.String("reason", msg),
			logging.String(logging.FieldErrorHint, "retry the download or run with verbose output"),
		)
	default:
		c.complete(j, info)
		logger.Info("job completed", logging.String("output", j.snapshot().OutputPath))
	}
}

// removePartials deletes the in-progress fragments a cancelled fetch left in
// the job's output directory.
func (c *Controller) removePartials(j *job, logger *slog.Logger) {
	partials, err := fileutil.FindPartials(j.options.OutputDir, j.id)
	if err != nil {
		logger.Debug("scan for partial files failed", logging.Error(err))
		return
	}
	for _, path := range partials {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(logger, "failed to remove partial file", "partial_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete the file by hand"),
			)
			continue
		}
		logger.Debug("removed partial file", logging.String("path", path))
	}
}

func (j *job) cancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rec.cancelRequested
}

// sink translates provider events into record updates.
func (c *Controller) sink(j *job, logger *slog.Logger) fetch.Sink {
	sampler := logging.NewProgressSampler(5)
	return func(ev fetch.Event) error {
		j.mu.Lock()
		if j.rec.cancelRequested {
			j.mu.Unlock()
			return fetch.ErrAborted
		}
		if j.rec.state != StateRunning {
			j.mu.Unlock()
			return fetch.ErrAborted
		}
		applyEvent(&j.rec, ev)
		snap := j.snapshotLocked()
		j.mu.Unlock()

		c.bus.Publish(Event{Type: EventProgress, Job: snap})
		percent := snap.Progress
		if snap.Indeterminate {
			percent = -1
		}
		if sampler.ShouldLog(percent, string(ev.Phase)) {
			logger.Info("job progress",
				logging.String(logging.FieldPhase, string(ev.Phase)),
				logging.Float64(logging.FieldProgress, snap.Progress),
				logging.String("message", snap.StatusMessage),
			)
		}
		return nil
	}
}

// complete records a successful fetch.
func (c *Controller) complete(j *job, info fetch.Info) {
	output := settledPath(j.snapshot().OutputPath, info.Files, j.options.OutputDir, j.id)

	j.mu.Lock()
	if info.Title != "" && j.rec.title == "" {
		j.rec.title = info.Title
	}
	if info.Collection {
		j.rec.collection = true
	}
	if info.ItemCount > 0 {
		j.rec.itemCount = info.ItemCount
	}
	j.rec.outputPath = output
	j.rec.progress = 100
	j.rec.indeterminate = false
	terminal := c.finishLocked(j, StateCompleted, messageCompleted, "", "")
	snap := j.snapshotLocked()
	j.mu.Unlock()
	if terminal {
		c.afterTerminal(snap)
	}
}

func (c *Controller) finish(j *job, state State, message, errText, code string) {
	j.mu.Lock()
	terminal := c.finishLocked(j, state, message, errText, code)
	snap := j.snapshotLocked()
	j.mu.Unlock()
	if terminal {
		c.afterTerminal(snap)
	}
}

// finishLocked moves the job to a terminal state. It reports false when the
// job was already terminal.
func (c *Controller) finishLocked(j *job, state State, message, errText, code string) bool {
	if !j.transitionLocked(state, c.now()) {
		return false
	}
	j.rec.statusMessage = message
	if state == StateFailed {
		j.rec.err = errText
		j.rec.errCode = code
	}
	j.cancelFetch = nil
	return true
}

func (c *Controller) afterTerminal(snap Snapshot) {
	c.bus.Publish(Event{Type: EventTerminal, Job: snap})
	for _, fn := range c.observers {
		fn(snap)
	}
	c.prune()
}

// prune drops the oldest terminal jobs beyond the retention limit.
func (c *Controller) prune() {
	limit := c.settings.RetainTerminal
	if limit <= 0 {
		return
	}
	type entry struct {
		id       string
		finished time.Time
	}
	var terminal []entry
	c.mu.RLock()
	for _, id := range c.order {
		snap := c.jobs[id].snapshot()
		if snap.State.IsTerminal() {
			terminal = append(terminal, entry{id: id, finished: snap.FinishedAt})
		}
	}
	c.mu.RUnlock()
	if len(terminal) <= limit {
		return
	}
	sort.SliceStable(terminal, func(a, b int) bool { return terminal[a].finished.Before(terminal[b].finished) })
	c.mu.Lock()
	for _, e := range terminal[:len(terminal)-limit] {
		c.removeLocked(e.id)
	}
	c.mu.Unlock()
}
