package notify_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"earshot/internal/config"
	"earshot/internal/notify"
	"earshot/internal/queue"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, sink *[]captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*sink = append(*sink, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
	}))
}

func TestNotifyFindingsFormatsAlert(t *testing.T) {
	var sink []captured
	server := newCaptureServer(t, &sink)
	defer server.Close()

	svc := notify.NewService(config.Notifications{NtfyTopic: server.URL})
	findings := []queue.Finding{
		{Subject: "Acme Corp", Urgency: queue.UrgencyHigh, Quote: "Acme is being sued"},
		{Subject: "Jordan Reyes", Urgency: queue.UrgencyHigh},
	}
	if err := svc.NotifyFindings(context.Background(), "Weekly news", "mention-scout", findings); err != nil {
		t.Fatalf("NotifyFindings: %v", err)
	}

	if len(sink) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sink))
	}
	got := sink[0]
	if got.priority != "high" {
		t.Fatalf("expected high priority, got %q", got.priority)
	}
	if !strings.Contains(got.title, "High Urgency") {
		t.Fatalf("unexpected title %q", got.title)
	}
	if !strings.Contains(got.tags, "mention-scout") {
		t.Fatalf("expected agent kind in tags, got %q", got.tags)
	}
	if !strings.Contains(got.body, "Acme Corp") || !strings.Contains(got.body, "Jordan Reyes") {
		t.Fatalf("expected both subjects in body, got %q", got.body)
	}
	if !strings.Contains(got.body, "Acme is being sued") {
		t.Fatalf("expected quote in body, got %q", got.body)
	}
}

func TestNotifyRunCompletedMentionsFailures(t *testing.T) {
	var sink []captured
	server := newCaptureServer(t, &sink)
	defer server.Close()

	svc := notify.NewService(config.Notifications{NtfyTopic: server.URL})
	if err := svc.NotifyRunCompleted(context.Background(), 4, 1, 90*time.Second); err != nil {
		t.Fatalf("NotifyRunCompleted: %v", err)
	}

	got := sink[0]
	if !strings.Contains(got.title, "with errors") {
		t.Fatalf("expected error marker in title, got %q", got.title)
	}
	if !strings.Contains(got.body, "4 succeeded, 1 failed") {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestNotifyErrorIncludesContextLabel(t *testing.T) {
	var sink []captured
	server := newCaptureServer(t, &sink)
	defer server.Close()

	svc := notify.NewService(config.Notifications{NtfyTopic: server.URL})
	if err := svc.NotifyError(context.Background(), errors.New("db locked"), "item claim"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}

	got := sink[0]
	if got.priority != "high" {
		t.Fatalf("expected high priority, got %q", got.priority)
	}
	if !strings.Contains(got.body, "item claim") || !strings.Contains(got.body, "db locked") {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := notify.NewService(config.Notifications{NtfyTopic: server.URL})
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}

func TestNoopWhenUnconfigured(t *testing.T) {
	svc := notify.NewService(config.Notifications{})
	if err := svc.NotifyFindings(context.Background(), "x", "mention-scout", nil); err != nil {
		t.Fatalf("noop NotifyFindings: %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("noop TestNotification: %v", err)
	}
}
