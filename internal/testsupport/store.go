package testsupport

import (
	"context"
	"testing"
	"time"

	"earshot/internal/config"
	"earshot/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedItem inserts a queued item for tests and returns it.
func SeedItem(t testing.TB, store *queue.Store, externalID, title string) *queue.Item {
	t.Helper()

	inserted, err := store.Upsert(context.Background(), queue.Item{
		ExternalID:   externalID,
		Title:        title,
		PublishedAt:  time.Now().UTC(),
		DurationSecs: 900,
	})
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	if !inserted {
		t.Fatalf("expected %s to be newly inserted", externalID)
	}
	item, err := store.GetByExternalID(context.Background(), externalID)
	if err != nil {
		t.Fatalf("store.GetByExternalID: %v", err)
	}
	if item == nil {
		t.Fatalf("seeded item %s not found", externalID)
	}
	return item
}
