package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loopforge/internal/config"
)

const userAgent = "loopforge/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyRenderCompleted(ctx context.Context, title string) error
	NotifyRenderFailed(ctx context.Context, title string, cause error) error
	NotifyUploadCompleted(ctx context.Context, title, videoID string) error
	NotifyUploadFailed(ctx context.Context, title string, cause error) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		renderEvents: cfg.Notifications.Render,
		uploadEvents: cfg.Notifications.Upload,
		errorEvents:  cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	renderEvents bool
	uploadEvents bool
	errorEvents  bool
}

func (n *ntfyService) NotifyRenderCompleted(ctx context.Context, title string) error {
	if !n.renderEvents {
		return nil
	}
	data := payload{
		title:   "Loopforge - Render Complete",
		message: fmt.Sprintf("Render complete: %s", strings.TrimSpace(title)),
		tags:    []string{"loopforge", "render", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRenderFailed(ctx context.Context, title string, cause error) error {
	if !n.renderEvents {
		return nil
	}
	data := payload{
		title:    "Loopforge - Render Failed",
		message:  failureMessage("Render failed", title, cause),
		tags:     []string{"loopforge", "render", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadCompleted(ctx context.Context, title, videoID string) error {
	if !n.uploadEvents {
		return nil
	}
	message := fmt.Sprintf("Published: %s", strings.TrimSpace(title))
	if videoID = strings.TrimSpace(videoID); videoID != "" {
		message = fmt.Sprintf("%s\nhttps://youtu.be/%s", message, videoID)
	}
	data := payload{
		title:    "Loopforge - Published",
		message:  message,
		tags:     []string{"loopforge", "upload", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadFailed(ctx context.Context, title string, cause error) error {
	if !n.uploadEvents {
		return nil
	}
	data := payload{
		title:    "Loopforge - Upload Failed",
		message:  failureMessage("Upload failed", title, cause),
		tags:     []string{"loopforge", "upload", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errorEvents {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "Loopforge - Error",
		message:  builder.String(),
		tags:     []string{"loopforge", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Loopforge - Test",
		message:  "Notification system test",
		tags:     []string{"loopforge", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func failureMessage(prefix, title string, cause error) string {
	message := fmt.Sprintf("%s: %s", prefix, strings.TrimSpace(title))
	if cause != nil {
		message = fmt.Sprintf("%s\n%s", message, strings.TrimSpace(cause.Error()))
	}
	return message
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

type noopService struct{}

func (noopService) NotifyRenderCompleted(context.Context, string) error         { return nil }
func (noopService) NotifyRenderFailed(context.Context, string, error) error     { return nil }
func (noopService) NotifyUploadCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyUploadFailed(context.Context, string, error) error     { return nil }
func (noopService) NotifyError(context.Context, error, string) error            { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
