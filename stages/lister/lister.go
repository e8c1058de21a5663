// Package lister builds the video manifest for one channel.
package lister

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"channel-digest/internal/models"
	"channel-digest/shared/storage"
	"channel-digest/shared/youtube"
)

// Source is the part of the YouTube client the lister needs.
type Source interface {
	ResolveChannel(ctx context.Context, ref youtube.ChannelRef) (*youtube.Channel, error)
	Uploads(ctx context.Context, playlistID string, visit func([]youtube.Upload) (bool, error)) error
}

type Options struct {
	// After is the inclusive publish-date cutoff. The zero time lists everything.
	After              time.Time
	MinDurationSeconds int
	// StaleStreak stops listing after this many consecutive uploads older than After.
	StaleStreak int
}

type Result struct {
	Channel      string
	Scanned      int
	Listed       int
	Added        int
	SkippedOld   int
	SkippedShort int
	Stopped      bool
	Total        int
}

func (r *Result) GetSummary() string {
	if r == nil {
		return "no channel listed"
	}
	return fmt.Sprintf("%s: %d scanned, %d listed (%d new), %d too old, %d too short, manifest holds %d",
		r.Channel, r.Scanned, r.Listed, r.Added, r.SkippedOld, r.SkippedShort, r.Total)
}

type Lister struct {
	source Source
	opts   Options
	logger *slog.Logger
}

func New(source Source, opts Options, logger *slog.Logger) *Lister {
	if opts.StaleStreak <= 0 {
		opts.StaleStreak = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Lister{source: source, opts: opts, logger: logger.With(slog.String("stage", "fetch"))}
}

// Run lists the channel's uploads newest first and merges the ones that pass the
// date and duration filters into the manifest in dir as pending. Videos already
// in the manifest keep their status.
func (l *Lister) Run(ctx context.Context, ref youtube.ChannelRef, dir string) (*Result, error) {
	channel, err := l.source.ResolveChannel(ctx, ref)
	if err != nil {
		return nil, err
	}

	result := &Result{Channel: channel.Title}
	if result.Channel == "" {
		result.Channel = channel.ID
	}

	var videos []*models.Video
	streak := 0
	err = l.source.Uploads(ctx, channel.UploadsPlaylistID, func(page []youtube.Upload) (bool, error) {
		for _, upload := range page {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			result.Scanned++
			video, keep := l.consider(upload, &streak, result)
			if streak >= l.opts.StaleStreak {
				result.Stopped = true
				l.logger.Info("stopping early",
					slog.Int("consecutive_old", streak),
					slog.String("after", l.opts.After.Format(models.DateLayout)))
				return false, nil
			}
			if keep {
				videos = append(videos, video)
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads for %s: %w", result.Channel, err)
	}
	result.Listed = len(videos)

	store, err := storage.CreateManifest(dir)
	if err != nil {
		return nil, err
	}
	added, err := store.Merge(videos)
	if err != nil {
		return nil, err
	}
	result.Added = added
	result.Total = store.Len()

	l.logger.Info("manifest updated",
		slog.String("path", store.Path()),
		slog.Int("listed", result.Listed),
		slog.Int("added", added))
	return result, nil
}

// consider applies the filters to one upload. The stale streak counts consecutive
// uploads before the cutoff and resets on any newer upload.
func (l *Lister) consider(upload youtube.Upload, streak *int, result *Result) (*models.Video, bool) {
	published := upload.PublishedAt.UTC()
	day := published.Format(models.DateLayout)

	if !l.opts.After.IsZero() && day < l.opts.After.Format(models.DateLayout) {
		*streak++
		result.SkippedOld++
		l.logger.Debug("skipping video before cutoff",
			slog.String("video_id", upload.ID),
			slog.String("date", day))
		return nil, false
	}
	*streak = 0

	if upload.DurationSeconds < l.opts.MinDurationSeconds {
		result.SkippedShort++
		l.logger.Debug("skipping short video",
			slog.String("video_id", upload.ID),
			slog.Int("duration", upload.DurationSeconds))
		return nil, false
	}

	return &models.Video{
		ID:              upload.ID,
		Title:           upload.Title,
		PublishDate:     day,
		DurationSeconds: upload.DurationSeconds,
		URL:             models.WatchURL(upload.ID),
		Status:          models.StatusPending,
	}, true
}
