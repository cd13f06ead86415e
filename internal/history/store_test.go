package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"yayd/internal/history"
	"yayd/internal/jobs"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func snapshot(id string, state jobs.State, finished time.Time) jobs.Snapshot {
	created := finished.Add(-time.Minute)
	return jobs.Snapshot{
		ID:     id,
		Source: "https://example.com/watch?v=" + id,
		Options: jobs.Options{
			Quality:   jobs.Quality720,
			AudioOnly: id == "audio",
			Proxy:     "http://proxy:3128",
			OutputDir: "/downloads",
		},
		State:         state,
		Progress:      100,
		StatusMessage: "Download completed",
		OutputPath:    "/downloads/clip_" + id + ".mp4",
		Title:         "Clip " + id,
		CreatedAt:     created,
		StartedAt:     created.Add(time.Second),
		FinishedAt:    finished,
	}
}

func TestRecordAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Record(ctx, snapshot("audio", jobs.StateCompleted, finished)); err != nil {
		t.Fatalf("record: %v", err)
	}
	entry, err := store.Get(ctx, "audio")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry")
	}
	if entry.State != jobs.StateCompleted || !entry.AudioOnly || !entry.ProxyUsed || entry.Quality != "720" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.FinishedAt == nil || !entry.FinishedAt.Equal(finished) {
		t.Fatalf("finished_at not persisted: %v", entry.FinishedAt)
	}
	if entry.ErrorMessage != "" {
		t.Fatalf("unexpected error message %q", entry.ErrorMessage)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown id, got %+v, %v", missing, err)
	}
}

func TestRecordRejectsActiveJobs(t *testing.T) {
	store := openStore(t)
	snap := snapshot("run", jobs.StateRunning, time.Now())
	if err := store.Record(context.Background(), snap); err == nil {
		t.Fatal("expected error for running job")
	}
}

func TestRecordUpserts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	snap := snapshot("a", jobs.StateFailed, time.Now().UTC())
	snap.Error = "ERROR: Video unavailable"
	snap.ErrorCode = jobs.CodeProviderFailure
	if err := store.Record(ctx, snap); err != nil {
		t.Fatalf("record: %v", err)
	}
	snap.Error = "ERROR: still unavailable"
	if err := store.Record(ctx, snap); err != nil {
		t.Fatalf("record again: %v", err)
	}
	entries, err := store.List(ctx, history.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].ErrorMessage != "ERROR: still unavailable" || entries[0].ErrorCode != "provider_failure" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestListOrderingFilterAndLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []jobs.Snapshot{
		snapshot("old", jobs.StateCompleted, base),
		snapshot("mid", jobs.StateCancelled, base.Add(time.Hour)),
		snapshot("new", jobs.StateCompleted, base.Add(2*time.Hour)),
	}
	for _, snap := range records {
		if err := store.Record(ctx, snap); err != nil {
			t.Fatalf("record %s: %v", snap.ID, err)
		}
	}

	entries, err := store.List(ctx, history.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 || entries[0].ID != "new" || entries[2].ID != "old" {
		t.Fatalf("unexpected order %+v", entries)
	}

	entries, err = store.List(ctx, history.Filter{States: []jobs.State{jobs.StateCompleted}, Limit: 1})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "new" {
		t.Fatalf("unexpected filtered entries %+v", entries)
	}

	removed, err := store.Prune(ctx, base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", removed)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := history.Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := first.Record(context.Background(), snapshot("x", jobs.StateCompleted, time.Now())); err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = first.Close()

	second, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if entry, err := second.Get(context.Background(), "x"); err != nil || entry == nil {
		t.Fatalf("entry lost across reopen: %+v, %v", entry, err)
	}
}
