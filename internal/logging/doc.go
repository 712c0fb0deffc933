// Package logging builds slog loggers for the CLI, daemon, and worker.
//
// Output format is either "console" (human-oriented key=value lines) or
// "json". Loggers are passed explicitly; components derive their own with
// logger.With so every record carries a component field.
package logging
