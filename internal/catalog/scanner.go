package catalog

import (
	"context"
	"strings"
	"time"

	"earshot/internal/queue"
	"earshot/internal/services"
)

// Entry is one raw catalog listing before normalization.
type Entry struct {
	ExternalID  string
	Title       string
	PublishedAt time.Time
	// Duration is the catalog's ISO-8601 duration string, e.g. "PT1H2M3S".
	Duration string
}

// Lister lists recent items for a channel, newest first.
type Lister interface {
	List(ctx context.Context, channelID string, limit int64) ([]Entry, error)
}

// Scanner normalizes catalog entries into store items.
type Scanner struct {
	lister    Lister
	channelID string
}

// NewScanner constructs a Scanner over the given lister.
func NewScanner(lister Lister, channelID string) *Scanner {
	return &Scanner{lister: lister, channelID: channelID}
}

// Fetch lists up to limit recent catalog entries in listing order. The limit
// is clamped to [1, 50]. Any listing failure is reported as the catalog being
// unavailable for this run.
func (s *Scanner) Fetch(ctx context.Context, limit int) ([]queue.Item, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}

	entries, err := s.lister.List(ctx, s.channelID, int64(limit))
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "catalog", "list", "", err)
	}

	items := make([]queue.Item, 0, len(entries))
	for _, entry := range entries {
		id := strings.TrimSpace(entry.ExternalID)
		if id == "" {
			continue
		}
		items = append(items, queue.Item{
			ExternalID:   id,
			Title:        strings.TrimSpace(entry.Title),
			PublishedAt:  entry.PublishedAt,
			DurationSecs: int64(ParseISODuration(entry.Duration).Seconds()),
		})
	}
	return items, nil
}
