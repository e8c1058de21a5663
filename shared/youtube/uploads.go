package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/youtube/v3"
)

const pageSize = 50

// Upload is one public video from a channel's uploads playlist.
type Upload struct {
	ID              string
	Title           string
	PublishedAt     time.Time
	DurationSeconds int
}

// Uploads pages through a channel's uploads playlist, newest first, handing each
// page to visit with durations filled in. Paging stops when visit returns false
// or the playlist is exhausted. Private and deleted entries are skipped.
func (c *Client) Uploads(ctx context.Context, playlistID string, visit func([]Upload) (bool, error)) error {
	pageToken := ""
	pages := 0
	for {
		resp, err := call(ctx, c, func() (*youtube.PlaylistItemListResponse, error) {
			req := c.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
				PlaylistId(playlistID).
				MaxResults(pageSize).
				Context(ctx)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			return req.Do()
		})
		if err != nil {
			return fmt.Errorf("failed to list uploads playlist %s: %w", playlistID, err)
		}
		pages++

		uploads := make([]Upload, 0, len(resp.Items))
		for _, item := range resp.Items {
			if upload, ok := uploadFromItem(item); ok {
				uploads = append(uploads, upload)
			}
		}
		if err := c.fillDurations(ctx, uploads); err != nil {
			return err
		}

		c.logger.Debug("fetched uploads page",
			slog.Int("page", pages),
			slog.Int("videos", len(uploads)))

		more, err := visit(uploads)
		if err != nil {
			return err
		}
		if !more || resp.NextPageToken == "" {
			return nil
		}
		pageToken = resp.NextPageToken
	}
}

func uploadFromItem(item *youtube.PlaylistItem) (Upload, bool) {
	if item == nil || item.Snippet == nil || item.ContentDetails == nil {
		return Upload{}, false
	}
	// Private and deleted videos keep their slot but lose the publish time.
	if item.ContentDetails.VideoPublishedAt == "" {
		return Upload{}, false
	}
	publishedAt, err := time.Parse(time.RFC3339, item.ContentDetails.VideoPublishedAt)
	if err != nil {
		return Upload{}, false
	}
	id := item.ContentDetails.VideoId
	if id == "" && item.Snippet.ResourceId != nil {
		id = item.Snippet.ResourceId.VideoId
	}
	if id == "" {
		return Upload{}, false
	}
	return Upload{ID: id, Title: item.Snippet.Title, PublishedAt: publishedAt}, true
}

// fillDurations looks up video lengths in batches of fifty IDs.
func (c *Client) fillDurations(ctx context.Context, uploads []Upload) error {
	index := make(map[string]int, len(uploads))
	ids := make([]string, 0, len(uploads))
	for i, u := range uploads {
		index[u.ID] = i
		ids = append(ids, u.ID)
	}

	for i := 0; i < len(ids); i += pageSize {
		end := min(i+pageSize, len(ids))
		batchIDs := ids[i:end]

		resp, err := call(ctx, c, func() (*youtube.VideoListResponse, error) {
			return c.service.Videos.List([]string{"contentDetails"}).
				Id(strings.Join(batchIDs, ",")).
				Context(ctx).
				Do()
		})
		if err != nil {
			return fmt.Errorf("failed to get video details: %w", err)
		}
		for _, item := range resp.Items {
			j, ok := index[item.Id]
			if !ok || item.ContentDetails == nil {
				continue
			}
			uploads[j].DurationSeconds = parseDurationSeconds(item.ContentDetails.Duration)
		}
	}
	return nil
}
