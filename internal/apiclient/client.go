// Package apiclient talks to a running yayd daemon over its HTTP API.
package apiclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"yayd/internal/api"
)

// ErrUnavailable reports that no daemon API is configured.
var ErrUnavailable = errors.New("yayd daemon unavailable")

// Client issues requests against the daemon API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New builds a client for bind ("host:port" or a full URL). An empty bind
// yields a nil client.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout: event streams and file downloads run until the caller cancels.
		http: &http.Client{},
	}, nil
}

// Download is the outcome of a result request: either a file stream or the
// listing of a collection.
type Download struct {
	Listing  *api.ResultListing
	Filename string
	Size     int64
	Body     io.ReadCloser
}

// Submit starts a download.
func (c *Client) Submit(ctx context.Context, req api.SubmitRequest) (api.SubmitResponse, error) {
	var resp api.SubmitResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/download", nil, req, &resp)
	return resp, err
}

// Status returns one job.
func (c *Client) Status(ctx context.Context, id string) (api.JobStatus, error) {
	var resp api.JobStatus
	err := c.doJSON(ctx, http.MethodGet, "/api/status/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

// Cancel requests cancellation of a job.
func (c *Client) Cancel(ctx context.Context, id string) (api.CancelResponse, error) {
	var resp api.CancelResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/cancel/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

// List returns tracked jobs, newest first, optionally filtered by state.
func (c *Client) List(ctx context.Context, states ...string) ([]api.JobStatus, error) {
	values := url.Values{}
	for _, state := range states {
		if s := strings.TrimSpace(state); s != "" {
			values.Add("state", s)
		}
	}
	var resp api.JobListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/jobs", values, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Forget drops a finished job from the daemon.
func (c *Client) Forget(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil, nil)
}

// Health returns daemon runtime information.
func (c *Client) Health(ctx context.Context) (api.Health, error) {
	var resp api.Health
	err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, nil, &resp)
	return resp, err
}

// Result fetches the artifact of a completed job. Callers must close
// Download.Body when it is set.
func (c *Client) Result(ctx context.Context, id string) (*Download, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/download/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		defer resp.Body.Close()
		var listing api.ResultListing
		if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
			return nil, fmt.Errorf("decode result listing: %w", err)
		}
		return &Download{Listing: &listing}, nil
	}

	filename := id
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return &Download{Filename: filename, Size: resp.ContentLength, Body: resp.Body}, nil
}

// Events follows the job's event stream, calling fn for each event until the
// job's final event arrives, fn returns an error, or ctx is cancelled. A
// stream that drops before the final event is reopened with Last-Event-ID so
// the daemon replays what was missed.
func (c *Client) Events(ctx context.Context, id string, fn func(api.JobEvent) error) error {
	stream := &eventStream{path: "/api/jobs/" + url.PathEscape(id) + "/events"}
	failures := 0
	for {
		before := stream.received
		retry, err := c.readEvents(ctx, stream, fn)
		if stream.finished {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retry {
			return err
		}
		if stream.received > before {
			failures = 0
		}
		failures++
		if failures > maxStreamRetries {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("event stream for %s: %w", id, err)
		}
		timer := time.NewTimer(streamRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

const (
	maxStreamRetries = 3
	streamRetryDelay = 250 * time.Millisecond
)

// eventStream is the resumable state of one Events call.
type eventStream struct {
	path     string
	lastID   string
	received int
	finished bool
}

// readEvents consumes one connection of the stream. It reports whether the
// caller may reconnect after the returned error or an early end of stream.
func (c *Client) readEvents(ctx context.Context, stream *eventStream, fn func(api.JobEvent) error) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, stream.path, nil, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if stream.lastID != "" {
		req.Header.Set("Last-Event-ID", stream.lastID)
	}
	resp, err := c.send(req)
	if err != nil {
		return IsUnavailable(err), err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var (
		data bytes.Buffer
		id   string
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var ev api.JobEvent
			if err := json.Unmarshal(data.Bytes(), &ev); err != nil {
				return false, fmt.Errorf("decode event: %w", err)
			}
			data.Reset()
			if id != "" {
				stream.lastID = id
				id = ""
			}
			stream.received++
			if err := fn(ev); err != nil {
				return false, err
			}
			if ev.Type == "terminal" || ev.Type == "forgotten" {
				stream.finished = true
				return false, nil
			}
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	return true, scanner.Err()
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// do sends a request and converts error statuses into errors. The caller
// owns the response body on success.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	if c == nil {
		return nil, ErrUnavailable
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer resp.Body.Close()
	var payload api.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		payload.Error = fmt.Sprintf("%s %s returned status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return nil, api.ErrorFromResponse(resp.StatusCode, payload)
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}
