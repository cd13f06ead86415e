package daemonrun

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"yayd/internal/history"
	"yayd/internal/jobs"
	"yayd/internal/logging"
	"yayd/internal/notifications"
)

const observerTimeout = 30 * time.Second

// TerminalObserver records finished jobs in the history ledger and sends
// notifications. Work runs off the controller's goroutine so Cancel never
// waits on network I/O.
type TerminalObserver struct {
	history  *history.Store
	notifier notifications.Service
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewTerminalObserver builds an observer. store may be nil when history is
// disabled.
func NewTerminalObserver(store *history.Store, notifier notifications.Service, logger *slog.Logger) *TerminalObserver {
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &TerminalObserver{
		history:  store,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "observer"),
	}
}

// Observe handles one terminal snapshot.
func (o *TerminalObserver) Observe(snap jobs.Snapshot) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
		defer cancel()
		o.record(ctx, snap)
		o.notify(ctx, snap)
	}()
}

// Wait blocks until every pending observation has finished.
func (o *TerminalObserver) Wait() {
	o.wg.Wait()
}

func (o *TerminalObserver) record(ctx context.Context, snap jobs.Snapshot) {
	if o.history == nil {
		return
	}
	if err := o.history.Record(ctx, snap); err != nil {
		logging.WarnWithContext(o.logger, "history record failed", "history_record_failed",
			logging.String(logging.FieldJobID, snap.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job missing from yayd history"),
		)
	}
}

func (o *TerminalObserver) notify(ctx context.Context, snap jobs.Snapshot) {
	title := snap.Title
	if title == "" {
		title = snap.Source
	}
	var err error
	switch snap.State {
	case jobs.StateCompleted:
		err = o.notifier.NotifyDownloadCompleted(ctx, title, snap.OutputPath)
	case jobs.StateFailed:
		err = o.notifier.NotifyDownloadFailed(ctx, title, snap.Error)
	case jobs.StateCancelled:
		err = o.notifier.NotifyDownloadCancelled(ctx, title)
	}
	if err != nil {
		logging.WarnWithContext(o.logger, "notification failed", "notification_failed",
			logging.String(logging.FieldJobID, snap.ID),
			logging.Error(err),
		)
	}
}
