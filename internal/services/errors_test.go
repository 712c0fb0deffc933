package services_test

import (
	"errors"
	"strings"
	"testing"

	"earshot/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection refused")
	err := services.Wrap(services.ErrTransient, "dispatch", "post", "worker unreachable", base)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
	if !strings.Contains(err.Error(), "dispatch: post: worker unreachable") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "worker", "download", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient fallback, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"authentication", services.Wrap(services.ErrAuthentication, "worker", "verify", "", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "config", "load", "", nil), false},
		{"schema", services.Wrap(services.ErrSchema, "agent", "decode", "", nil), false},
		{"validation", services.Wrap(services.ErrValidation, "worker", "decode", "", nil), false},
		{"transient", services.Wrap(services.ErrTransient, "worker", "backend", "", nil), true},
		{"external tool", services.Wrap(services.ErrExternalTool, "worker", "ffmpeg", "", nil), true},
		{"untagged", errors.New("plain"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
