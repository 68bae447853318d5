package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"komf/internal/config"
	"komf/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "  "
	svc := notifications.NewService(&cfg)
	if err := svc.NotifySeriesMatched(context.Background(), "Berserk", "mangadex"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(context.Context, notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "series matched",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.NotifySeriesMatched(ctx, " Chainsaw Man ", "mangadex")
			},
			expectTitle:   "komf - Series Matched",
			expectMessage: "📚 Metadata updated: Chainsaw Man (mangadex)",
			expectTags:    "komf,series,matched",
		},
		{
			name: "library scan",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.NotifyLibraryScanCompleted(ctx, "Manga", 12, 0)
			},
			expectTitle:   "komf - Library Scan Complete",
			expectMessage: "Library Manga scanned: 12 series processed",
			expectTags:    "komf,library,completed",
		},
		{
			name: "library scan with failures",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.NotifyLibraryScanCompleted(ctx, "Manga", 12, 2)
			},
			expectTitle:   "komf - Library Scan Complete (with errors)",
			expectMessage: "Library Manga scanned: 10 succeeded, 2 failed",
			expectTags:    "komf,library,completed",
		},
		{
			name: "error",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.NotifyError(ctx, errors.New("komga unreachable"), "library scan")
			},
			expectTitle:    "komf - Error",
			expectMessage:  "❌ Error with library scan: komga unreachable",
			expectTags:     "komf,error,alert",
			expectPriority: "high",
		},
		{
			name: "test",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.TestNotification(ctx)
			},
			expectTitle:    "komf - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "komf,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.send(context.Background(), svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic is read-only", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for rejected notification")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic is read-only") {
		t.Fatalf("unexpected error: %v", err)
	}
}
