// Package queue persists pipeline items in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, the
// queued → processing → succeeded/failed status transitions, and the derived
// artifacts owned by each item (transcript, analysis records). Claim is the
// single mutual-exclusion primitive: a compare-and-set on status that lets
// overlapping batch runs coexist under at-least-once semantics, because
// transcript and analysis writes are idempotent upserts keyed by item.
//
// Treat this package as the single source of truth for item semantics; when
// you add statuses or columns, update schema.go.
package queue
