// Package services defines shared utilities consumed by the pipeline driver
// and the external integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (transient vs configuration vs schema) uniform so the
//     driver and dispatch client can decide on retry and item status.
//   - Context helpers that stamp item IDs and request IDs for logging.
package services
