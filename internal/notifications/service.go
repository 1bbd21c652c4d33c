package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"arista/internal/config"
)

const userAgent = "arista"

// Service is the notification surface used by the CLI.
type Service interface {
	NotifyJobFailed(ctx context.Context, label string, err error) error
	NotifyQueueCompleted(ctx context.Context, succeeded, failed, skipped int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, label string, err error) error {
	reason := "unknown error"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	return n.send(ctx, payload{
		title:    "arista - Transcode Failed",
		message:  fmt.Sprintf("%s\n%s", strings.TrimSpace(label), reason),
		tags:     []string{"arista", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, succeeded, failed, skipped int, duration time.Duration) error {
	duration = max(duration.Round(time.Second), 0)

	title := "arista - Queue Complete"
	message := fmt.Sprintf("%d transcodes finished in %s", succeeded, duration)
	if failed > 0 || skipped > 0 {
		title = "arista - Queue Complete (with errors)"
		message = fmt.Sprintf("%d succeeded, %d failed, %d skipped in %s", succeeded, failed, skipped, duration)
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"arista", "queue", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "arista - Test",
		message:  "Notification system test",
		tags:     []string{"arista", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
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
	if data.priority != "" {
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

type noopService struct{}

func (noopService) NotifyJobFailed(context.Context, string, error) error { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, int, time.Duration) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
