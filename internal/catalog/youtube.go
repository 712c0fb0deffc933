package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTubeLister lists a channel's recent uploads via the YouTube Data API.
type YouTubeLister struct {
	service *youtube.Service
}

// NewYouTubeLister constructs a lister authenticated with an API key.
func NewYouTubeLister(ctx context.Context, apiKey string) (*YouTubeLister, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("youtube api key is required")
	}
	service, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &YouTubeLister{service: service}, nil
}

// List returns the channel's most recent videos, newest first. Two calls are
// needed because Search results carry no duration; a follow-up Videos lookup
// fills in contentDetails.
func (l *YouTubeLister) List(ctx context.Context, channelID string, limit int64) ([]Entry, error) {
	search, err := l.service.Search.List([]string{"id", "snippet"}).
		ChannelId(channelID).
		Type("video").
		Order("date").
		MaxResults(limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search channel uploads: %w", err)
	}

	ids := make([]string, 0, len(search.Items))
	for _, result := range search.Items {
		if result.Id != nil && result.Id.VideoId != "" {
			ids = append(ids, result.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	details, err := l.service.Videos.List([]string{"contentDetails"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetch video details: %w", err)
	}
	durations := make(map[string]string, len(details.Items))
	for _, video := range details.Items {
		if video.ContentDetails != nil {
			durations[video.Id] = video.ContentDetails.Duration
		}
	}

	entries := make([]Entry, 0, len(search.Items))
	for _, result := range search.Items {
		if result.Id == nil || result.Id.VideoId == "" || result.Snippet == nil {
			continue
		}
		published, _ := time.Parse(time.RFC3339, result.Snippet.PublishedAt)
		entries = append(entries, Entry{
			ExternalID:  result.Id.VideoId,
			Title:       result.Snippet.Title,
			PublishedAt: published,
			Duration:    durations[result.Id.VideoId],
		})
	}
	return entries, nil
}
