package logging

import "log/slog"

// Shared field names so records stay greppable across components.
const (
	FieldComponent = "component"
	FieldItemID    = "item_id"
	FieldRequestID = "request_id"
	FieldAgentKind = "agent_kind"
	FieldStage     = "stage"
)

// Error wraps an error into the conventional "error" attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// String is a thin alias kept for call-site symmetry with Error.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int64 is a thin alias kept for call-site symmetry with Error.
func Int64(key string, value int64) slog.Attr {
	return slog.Int64(key, value)
}
