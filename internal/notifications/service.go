package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"komf/internal/config"
)

const userAgent = "komf/0.1.0"

// Service defines the notification surface used by the metadata service and
// the CLI.
type Service interface {
	NotifySeriesMatched(ctx context.Context, title, providerName string) error
	NotifyLibraryScanCompleted(ctx context.Context, libraryName string, processed, failed int) error
	NotifyError(ctx context.Context, err error, context string) error
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

func (n *ntfyService) NotifySeriesMatched(ctx context.Context, title, providerName string) error {
	title = strings.TrimSpace(title)
	providerName = strings.TrimSpace(providerName)
	if providerName == "" {
		providerName = "unknown provider"
	}
	data := payload{
		title:   "komf - Series Matched",
		message: fmt.Sprintf("📚 Metadata updated: %s (%s)", title, providerName),
		tags:    []string{"komf", "series", "matched"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyLibraryScanCompleted(ctx context.Context, libraryName string, processed, failed int) error {
	libraryName = strings.TrimSpace(libraryName)
	var title, message string
	if failed == 0 {
		title = "komf - Library Scan Complete"
		message = fmt.Sprintf("Library %s scanned: %d series processed", libraryName, processed)
	} else {
		title = "komf - Library Scan Complete (with errors)"
		message = fmt.Sprintf("Library %s scanned: %d succeeded, %d failed", libraryName, processed-failed, failed)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"komf", "library", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "komf - Error",
		message:  builder.String(),
		tags:     []string{"komf", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "komf - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"komf", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifySeriesMatched(context.Context, string, string) error          { return nil }
func (noopService) NotifyLibraryScanCompleted(context.Context, string, int, int) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                   { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
