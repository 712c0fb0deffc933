package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"earshot/internal/config"
	"earshot/internal/llm"
)

func newTestClient(url string, attempts int) *llm.Client {
	cfg := config.LLM{APIKey: "test-key", BaseURL: url, Model: "test-model"}
	return llm.NewClient(cfg,
		llm.WithRetryMaxAttempts(attempts),
		llm.WithRetryBackoff(time.Millisecond, 5*time.Millisecond),
		llm.WithSleeper(func(time.Duration) {}),
	)
}

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func TestCompleteJSONSendsConversation(t *testing.T) {
	var gotAuth string
	var gotRequest struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		ResponseFormat map[string]string `json:"response_format"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(completionBody(`{"action":"final"}`)))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 1)
	content, err := client.CompleteJSON(context.Background(), "system prompt", []llm.Turn{
		{Content: "first user"},
		{Content: "assistant reply", Assistant: true},
		{Content: "second user"},
	})
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"action":"final"}` {
		t.Fatalf("unexpected content %q", content)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotRequest.ResponseFormat["type"] != "json_object" {
		t.Fatalf("expected json-only response format, got %v", gotRequest.ResponseFormat)
	}
	roles := make([]string, 0, len(gotRequest.Messages))
	for _, msg := range gotRequest.Messages {
		roles = append(roles, msg.Role)
	}
	if strings.Join(roles, ",") != "system,user,assistant,user" {
		t.Fatalf("unexpected role order %v", roles)
	}
}

func TestCompleteJSONRetriesRateLimit(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionBody(`{"ok":true}`)))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	content, err := client.CompleteJSON(context.Background(), "system", []llm.Turn{{Content: "hi"}})
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("unexpected content %q", content)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestCompleteJSONDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	if _, err := client.CompleteJSON(context.Background(), "system", []llm.Turn{{Content: "hi"}}); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("bad request must not be retried, got %d attempts", got)
	}
}

func TestCompleteJSONExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	if _, err := client.CompleteJSON(context.Background(), "system", []llm.Turn{{Content: "hi"}}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
}

func TestCompleteJSONRequiresInput(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0", 1)
	if _, err := client.CompleteJSON(context.Background(), "", []llm.Turn{{Content: "hi"}}); err == nil {
		t.Fatal("expected error for empty system prompt")
	}
	if _, err := client.CompleteJSON(context.Background(), "system", nil); err == nil {
		t.Fatal("expected error for empty turns")
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Action string `json:"action"`
	}
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", `{"action":"final"}`, "final", false},
		{"fenced", "```json\n{\"action\":\"continue\"}\n```", "continue", false},
		{"fenced no language", "```\n{\"action\":\"final\"}\n```", "final", false},
		{"surrounding prose", `Here you go: {"action":"final"} hope that helps`, "final", false},
		{"empty", "", "", true},
		{"not json", "no braces here", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got payload
			err := llm.DecodeJSON(tc.input, &got)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if got.Action != tc.want {
				t.Fatalf("expected action %q, got %q", tc.want, got.Action)
			}
		})
	}
}
