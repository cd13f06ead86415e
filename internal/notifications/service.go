package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"yayd/internal/config"
)

const userAgent = "yayd/0.1.0"

// Service defines the notification surface used by the daemon.
type Service interface {
	NotifyDownloadCompleted(ctx context.Context, title, output string) error
	NotifyDownloadFailed(ctx context.Context, title, reason string) error
	NotifyDownloadCancelled(ctx context.Context, title string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		failed:    cfg.Notifications.Failed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failed    bool
}

func (n *ntfyService) NotifyDownloadCompleted(ctx context.Context, title, output string) error {
	if !n.completed {
		return nil
	}
	title = displayTitle(title, output)
	message := fmt.Sprintf("✅ Downloaded: %s", title)
	if output = strings.TrimSpace(output); output != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, output)
	}
	return n.send(ctx, payload{
		title:   "yayd - Download Complete",
		message: message,
		tags:    []string{"yayd", "download", "completed"},
	})
}

func (n *ntfyService) NotifyDownloadFailed(ctx context.Context, title, reason string) error {
	if !n.failed {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Download failed")
	if title = strings.TrimSpace(title); title != "" {
		builder.WriteString(": ")
		builder.WriteString(title)
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		builder.WriteString("\n")
		builder.WriteString(reason)
	}
	return n.send(ctx, payload{
		title:    "yayd - Download Failed",
		message:  builder.String(),
		tags:     []string{"yayd", "download", "error"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyDownloadCancelled(ctx context.Context, title string) error {
	// Cancellation is user initiated; only surface it when failures are wanted.
	if !n.failed {
		return nil
	}
	return n.send(ctx, payload{
		title:    "yayd - Download Cancelled",
		message:  fmt.Sprintf("Cancelled: %s", displayTitle(title, "")),
		tags:     []string{"yayd", "download", "cancelled"},
		priority: "low",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "yayd - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"yayd", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func displayTitle(title, output string) string {
	if title = strings.TrimSpace(title); title != "" {
		return title
	}
	if output = strings.TrimSpace(output); output != "" {
		return filepath.Base(output)
	}
	return "untitled"
}

type noopService struct{}

func (noopService) NotifyDownloadCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyDownloadFailed(context.Context, string, string) error    { return nil }
func (noopService) NotifyDownloadCancelled(context.Context, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
