package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed input supplied by a caller.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks a startup or credential mismatch that a retry
	// cannot fix.
	ErrConfiguration = errors.New("configuration error")
	// ErrAuthentication marks a rejected dispatch signature. Never retried.
	ErrAuthentication = errors.New("authentication error")
	// ErrNotFound marks a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks a network/tool/backend hiccup worth retrying.
	ErrTransient = errors.New("transient failure")
	// ErrExternalTool marks a failure in an external binary (yt-dlp, ffmpeg).
	ErrExternalTool = errors.New("external tool error")
	// ErrUnavailable marks the catalog being unreachable for this run.
	ErrUnavailable = errors.New("catalog unavailable")
	// ErrSchema marks agent output that failed structured-output validation.
	ErrSchema = errors.New("schema validation error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an error class is worth another dispatch attempt.
// Authentication, validation, configuration, and schema failures indicate a
// mismatch that retrying cannot fix.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrAuthentication),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrSchema):
		return false
	default:
		return true
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
