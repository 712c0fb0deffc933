package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const itemColumns = "id, external_id, title, published_at, duration_secs, status, processed_at, notes, created_at, updated_at"

// Upsert inserts a newly discovered item as queued. Re-discovering an
// external ID already present is a no-op; the bool reports whether a row was
// actually inserted.
func (s *Store) Upsert(ctx context.Context, item Item) (bool, error) {
	if item.ExternalID == "" {
		return false, errors.New("external id is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO items (external_id, title, published_at, duration_secs, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(external_id) DO NOTHING`,
		item.ExternalID,
		item.Title,
		formatTime(item.PublishedAt),
		item.DurationSecs,
		StatusQueued,
		now,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("upsert item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetByID fetches an item by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetByExternalID fetches an item by its catalog identifier. Returns nil when absent.
func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM items WHERE external_id = ?`, externalID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by external id: %w", err)
	}
	return item, nil
}

// Claim atomically transitions an item from queued to processing. It returns
// false, never an error, when the item is already claimed or terminal, which
// makes duplicate or concurrent batch runs safe.
func (s *Store) Claim(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusProcessing,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusQueued,
	)
	if err != nil {
		return false, fmt.Errorf("claim item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ResetStuckProcessing moves processing items back to queued. A crash
// between a claim and a terminal mark leaves items stranded in processing;
// callers invoke this before a batch, while holding the run lock.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE items SET status = ?, notes = ?, updated_at = ? WHERE status = ?`,
		StatusQueued,
		"reset from interrupted processing",
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// MarkSucceeded records a successful extraction for an item.
func (s *Store) MarkSucceeded(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE items SET status = ?, processed_at = ?, notes = NULL, updated_at = ? WHERE id = ?`,
		StatusSucceeded,
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("mark succeeded: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure with a human-readable reason.
func (s *Store) MarkFailed(ctx context.Context, id int64, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE items SET status = ?, processed_at = ?, notes = ?, updated_at = ? WHERE id = ?`,
		StatusFailed,
		now,
		nullableString(reason),
		now,
		id,
	); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ItemsByStatus returns items matching a status in discovery order.
func (s *Store) ItemsByStatus(ctx context.Context, status Status) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM items WHERE status = ? ORDER BY id`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Recent returns the n most recently published items.
func (s *Store) Recent(ctx context.Context, n int) ([]*Item, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM items ORDER BY published_at DESC, id DESC LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RetryFailed moves failed items back to queued for reprocessing. With no ids
// every failed item is reset.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE items SET status = ?, notes = NULL, processed_at = NULL, updated_at = ? WHERE status = ?`,
			StatusQueued,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusQueued, now, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE items SET status = ?, notes = NULL, processed_at = NULL, updated_at = ?
         WHERE status = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes items in terminal states along with their transcripts and
// analyses (cascade). Queued and processing items are never touched.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		statuses = []Status{StatusSucceeded, StatusFailed}
	}
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		if !status.IsTerminal() {
			return 0, fmt.Errorf("clear items: status %q is not terminal", status)
		}
		args = append(args, status)
	}
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM items WHERE status IN (`+makePlaceholders(len(statuses))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("clear items: %w", err)
	}
	return res.RowsAffected()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		externalID   string
		title        sql.NullString
		publishedRaw sql.NullString
		durationSecs sql.NullInt64
		statusStr    string
		processedRaw sql.NullString
		notes        sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&externalID,
		&title,
		&publishedRaw,
		&durationSecs,
		&statusStr,
		&processedRaw,
		&notes,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		ExternalID:   externalID,
		Title:        title.String,
		DurationSecs: durationSecs.Int64,
		Status:       Status(statusStr),
		Notes:        notes.String,
	}
	if published, err := parseTimeString(publishedRaw.String); err == nil {
		item.PublishedAt = published
	}
	if processedRaw.Valid {
		if processed, err := parseTimeString(processedRaw.String); err == nil {
			item.ProcessedAt = &processed
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}
