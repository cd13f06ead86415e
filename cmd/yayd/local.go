package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"yayd/internal/api"
	"yayd/internal/config"
	"yayd/internal/daemonrun"
	"yayd/internal/history"
	"yayd/internal/jobs"
	"yayd/internal/logging"
	"yayd/internal/notifications"
)

const localShutdownGrace = 10 * time.Second

// newLocalController builds the controller used by in-process downloads.
var newLocalController = daemonrun.NewController

// localSession runs downloads inside the CLI process, without a daemon.
// Logs go to the log file so the terminal stays free for progress output.
type localSession struct {
	controller *jobs.Controller
	observer   *daemonrun.TerminalObserver
	store      *history.Store
	logger     *slog.Logger
}

func openLocalSession(cfg *config.Config) (*localSession, error) {
	logPath := filepath.Join(cfg.Paths.LogDir, "yayd.log")
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldComponent, "cli"))

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.HistoryPath())
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	observer := daemonrun.NewTerminalObserver(store, notifications.NewService(cfg), logger)
	return &localSession{
		controller: newLocalController(cfg, logger, jobs.OnTerminal(observer.Observe)),
		observer:   observer,
		store:      store,
		logger:     logger,
	}, nil
}

// Close stops the controller and flushes history and notifications.
func (s *localSession) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), localShutdownGrace)
	defer cancel()
	err := s.controller.Shutdown(ctx)
	s.observer.Wait()
	if s.store != nil {
		err = errors.Join(err, s.store.Close())
	}
	return err
}

// run submits req and reports every newer snapshot to update until the job
// is terminal. Cancelling ctx cancels the job and waits for it to settle.
func (s *localSession) run(ctx context.Context, req jobs.Request, update func(api.JobStatus)) (api.JobStatus, error) {
	id, err := s.controller.Submit(ctx, req)
	if err != nil {
		return api.JobStatus{}, err
	}
	snap, events, unsubscribe, err := s.controller.Subscribe(id)
	if err != nil {
		return api.JobStatus{}, err
	}
	defer unsubscribe()

	done := make(chan jobs.Snapshot, 1)
	go func() {
		final, _ := s.controller.Wait(context.Background(), id)
		done <- final
	}()

	if update != nil && !snap.State.IsTerminal() {
		update(api.FromSnapshot(snap))
	}
	interrupted := ctx.Done()
	for {
		select {
		case final := <-done:
			return api.FromSnapshot(final), nil
		case <-interrupted:
			interrupted = nil
			s.logger.Info("interrupt received; cancelling download", logging.String(logging.FieldJobID, id))
			if err := s.controller.Cancel(id); err != nil {
				return api.FromSnapshot(snap), err
			}
		case ev := <-events:
			if ev.Job.Version <= snap.Version || ev.Job.State.IsTerminal() {
				continue
			}
			snap = ev.Job
			if update != nil {
				update(api.FromSnapshot(snap))
			}
		}
	}
}
