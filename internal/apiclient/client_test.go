package apiclient_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"yayd/internal/api"
	"yayd/internal/apiclient"
	"yayd/internal/daemon"
	"yayd/internal/fetch"
	"yayd/internal/jobs"
	"yayd/internal/testsupport"
)

func newClient(t *testing.T, provider *testsupport.FakeProvider, token string) (*apiclient.Client, *jobs.Controller, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var opts []testsupport.ConfigOption
	if token != "" {
		opts = append(opts, testsupport.WithAPIToken(token))
	}
	cfg := testsupport.NewConfig(t, opts...)
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

	client, err := apiclient.New(srv.URL, token)
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	return client, controller, srv.URL
}

func TestNewEmptyBind(t *testing.T) {
	client, err := apiclient.New("", "")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
	if _, err := client.List(context.Background()); !apiclient.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestSubmitWatchAndDownload(t *testing.T) {
	provider := &testsupport.FakeProvider{
		Title: "clip",
		Steps: []fetch.Event{{Phase: fetch.PhaseDownloading, Downloaded: 5, Total: 10}},
	}
	client, _, _ := newClient(t, provider, "token")
	ctx := context.Background()

	submitted, err := client.Submit(ctx, api.SubmitRequest{URL: "https://example.com/v", Quality: "480"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var last api.JobEvent
	err = client.Events(ctx, submitted.DownloadID, func(ev api.JobEvent) error {
		last = ev
		return nil
	})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if last.Type != string(jobs.EventTerminal) || last.Job.State != "completed" {
		t.Fatalf("expected terminal completed event, got %+v", last)
	}

	status, err := client.Status(ctx, submitted.DownloadID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Progress != 100 {
		t.Fatalf("expected progress 100, got %v", status.Progress)
	}

	download, err := client.Result(ctx, submitted.DownloadID)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if download.Listing != nil || download.Body == nil {
		t.Fatalf("expected file stream, got %+v", download)
	}
	defer download.Body.Close()
	data, err := io.ReadAll(download.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "media" {
		t.Fatalf("unexpected body %q", data)
	}
	if download.Filename != "clip_"+submitted.DownloadID+".mp4" {
		t.Fatalf("unexpected filename %q", download.Filename)
	}

	if err := client.Forget(ctx, submitted.DownloadID); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	list, err := client.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
}

func TestErrorsMapToSentinels(t *testing.T) {
	provider := &testsupport.FakeProvider{Hold: make(chan struct{})}
	client, controller, _ := newClient(t, provider, "")
	ctx := context.Background()
	t.Cleanup(func() { close(provider.Hold) })

	if _, err := client.Status(ctx, "missing"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := client.Submit(ctx, api.SubmitRequest{}); !errors.Is(err, jobs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	submitted, err := client.Submit(ctx, api.SubmitRequest{URL: "https://example.com/v"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := client.Result(ctx, submitted.DownloadID); !errors.Is(err, jobs.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	resp, err := client.Cancel(ctx, submitted.DownloadID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if resp.Message != "Download cancelled" {
		t.Fatalf("unexpected cancel message %q", resp.Message)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := controller.Wait(waitCtx, submitted.DownloadID); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if _, err := client.Result(ctx, submitted.DownloadID); !errors.Is(err, jobs.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestUnauthorized(t *testing.T) {
	_, _, serverURL := newClient(t, &testsupport.FakeProvider{}, "secret")
	bad, err := apiclient.New(serverURL, "wrong")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := bad.List(context.Background()); err == nil {
		t.Fatal("expected unauthorized error")
	}
}

func TestIsUnavailableForClosedServer(t *testing.T) {
	srv := httptest.NewServer(nil)
	addr := srv.URL
	srv.Close()

	client, err := apiclient.New(addr, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Health(context.Background())
	if !apiclient.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestEventsResumesDroppedStream(t *testing.T) {
	var (
		mu      sync.Mutex
		headers []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = append(headers, r.Header.Get("Last-Event-ID"))
		attempt := len(headers)
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		switch attempt {
		case 1:
			fmt.Fprint(w, "event: state\nid: 4\ndata: {\"seq\":4,\"type\":\"state\",\"job\":{\"id\":\"j1\",\"state\":\"running\"}}\n\n")
			fmt.Fprint(w, "event: progress\nid: 7\ndata: {\"seq\":7,\"type\":\"progress\",\"job\":{\"id\":\"j1\",\"state\":\"running\",\"progress\":40}}\n\n")
			// The connection drops before the terminal event.
		default:
			fmt.Fprint(w, "event: terminal\nid: 9\ndata: {\"seq\":9,\"type\":\"terminal\",\"job\":{\"id\":\"j1\",\"state\":\"completed\"}}\n\n")
		}
	}))
	defer srv.Close()

	client, err := apiclient.New(srv.URL, "")
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	var seqs []int64
	err = client.Events(context.Background(), "j1", func(ev api.JobEvent) error {
		seqs = append(seqs, ev.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(seqs) != 3 || seqs[0] != 4 || seqs[1] != 7 || seqs[2] != 9 {
		t.Fatalf("unexpected events %v", seqs)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(headers) != 2 || headers[0] != "" || headers[1] != "7" {
		t.Fatalf("unexpected Last-Event-ID headers %q", headers)
	}
}

func TestEventsGivesUpOnRepeatedDrops(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer srv.Close()

	client, err := apiclient.New(srv.URL, "")
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	err = client.Events(context.Background(), "j1", func(api.JobEvent) error { return nil })
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", attempts)
	}
}
