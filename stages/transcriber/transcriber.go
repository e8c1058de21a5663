// Package transcriber turns manifest entries into transcript files.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"channel-digest/internal/models"
	"channel-digest/shared/ai"
	"channel-digest/shared/storage"
)

// CaptionSource fetches formatted caption text for a video.
type CaptionSource interface {
	CaptionText(ctx context.Context, videoID, lang string, timestamps bool) (string, error)
}

// TextEnhancer rewrites raw transcript text for readability.
type TextEnhancer interface {
	Enhance(ctx context.Context, text string) (string, error)
}

type Options struct {
	Language   string
	Timestamps bool
	// Enhance runs caption text through the enhancer. Fallback text is always enhanced.
	Enhance bool
}

type Result struct {
	Pending    int
	Captions   int
	Fallback   int
	Failed     int
	Reconciled int
}

func (r *Result) GetSummary() string {
	if r == nil {
		return "no videos transcribed"
	}
	return fmt.Sprintf("%d pending: %d from captions, %d via fallback, %d failed (%d already on disk)",
		r.Pending, r.Captions, r.Fallback, r.Failed, r.Reconciled)
}

func (r *Result) FailureCount() int {
	if r == nil {
		return 0
	}
	return r.Failed
}

// Transcriber processes videos one at a time. Captions are tried first; the
// fallback transcribes from the video itself and may be nil when unavailable.
type Transcriber struct {
	captions CaptionSource
	fallback ai.VideoTranscriber
	enhancer TextEnhancer
	opts     Options
	logger   *slog.Logger
}

func New(captions CaptionSource, fallback ai.VideoTranscriber, enhancer TextEnhancer, opts Options, logger *slog.Logger) *Transcriber {
	if opts.Language == "" {
		opts.Language = "en"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{
		captions: captions,
		fallback: fallback,
		enhancer: enhancer,
		opts:     opts,
		logger:   logger.With(slog.String("stage", "transcribe")),
	}
}

// Run transcribes every manifest video whose transcript file is absent. The
// manifest is saved after each video so an interrupted run loses at most one.
func (t *Transcriber) Run(ctx context.Context, dir string) (*Result, error) {
	store, err := storage.OpenManifest(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, storage.TranscriptsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcripts directory: %w", err)
	}

	result := &Result{}
	videos := store.Videos()
	pending := storage.Pending(videos,
		func(v *models.Video) string { return v.ID },
		func(id string) bool {
			v, _ := store.Get(id)
			return storage.FileExists(storage.TranscriptPath(dir, v))
		})

	if err := t.reconcile(dir, store, videos, pending, result); err != nil {
		return result, err
	}

	result.Pending = len(pending)
	t.logger.Info("transcribing videos",
		slog.Int("pending", len(pending)),
		slog.Int("total", len(videos)))

	for i, v := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		t.logger.Info("processing video",
			slog.Int("n", i+1),
			slog.Int("of", len(pending)),
			slog.String("video_id", v.ID),
			slog.String("title", v.Title))

		header, err := t.transcribe(ctx, dir, v)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			t.logger.Error("transcription failed",
				slog.String("video_id", v.ID),
				slog.String("error", err.Error()))
			if uerr := store.Update(v.ID, func(rec *models.Video) {
				rec.Status = models.StatusFailed
				rec.LastError = err.Error()
			}); uerr != nil {
				return result, uerr
			}
			continue
		}

		if header.Source == models.SourceFallback {
			result.Fallback++
		} else {
			result.Captions++
		}
		rel := storage.TranscriptRelPath(v)
		if err := store.Update(v.ID, func(rec *models.Video) {
			rec.Status = header.Status()
			rec.Method = method(header)
			rec.TranscriptFile = rel
			rec.LastError = ""
		}); err != nil {
			return result, err
		}
	}
	return result, nil
}

// reconcile brings manifest status in line with transcripts already on disk,
// for example after a run was interrupted between writing a file and saving.
func (t *Transcriber) reconcile(dir string, store *storage.ManifestStore, all, pending []*models.Video, result *Result) error {
	todo := make(map[string]bool, len(pending))
	for _, v := range pending {
		todo[v.ID] = true
	}
	for _, v := range all {
		if todo[v.ID] || v.Status.Transcribed() {
			continue
		}
		header, _, err := storage.ReadTranscript(dir, v)
		if err != nil {
			t.logger.Warn("unreadable transcript left in place",
				slog.String("video_id", v.ID),
				slog.String("error", err.Error()))
			continue
		}
		rel := v.TranscriptFile
		if rel == "" {
			rel = storage.TranscriptRelPath(v)
		}
		if err := store.Update(v.ID, func(rec *models.Video) {
			rec.Status = header.Status()
			rec.Method = method(header)
			rec.TranscriptFile = rel
			rec.LastError = ""
		}); err != nil {
			return err
		}
		result.Reconciled++
	}
	return nil
}

func (t *Transcriber) transcribe(ctx context.Context, dir string, v *models.Video) (models.TranscriptHeader, error) {
	header := models.TranscriptHeader{
		VideoID:  v.ID,
		Title:    v.Title,
		URL:      v.URL,
		Date:     v.PublishDate,
		Duration: v.DurationSeconds,
	}
	if header.URL == "" {
		header.URL = models.WatchURL(v.ID)
	}

	body, err := t.captions.CaptionText(ctx, v.ID, t.opts.Language, t.opts.Timestamps)
	switch {
	case err == nil:
		header.Source = models.SourceCaptions
		t.logger.Info("captions found", slog.String("video_id", v.ID))
		if t.opts.Enhance {
			body, header.Enhanced = t.enhance(ctx, v, body)
		}
	case ctx.Err() != nil:
		return header, ctx.Err()
	default:
		captionErr := err
		if t.fallback == nil {
			return header, fmt.Errorf("captions unavailable and no fallback configured: %w", captionErr)
		}
		t.logger.Info("no usable captions, using fallback transcription",
			slog.String("video_id", v.ID),
			slog.String("reason", captionErr.Error()))

		body, err = t.fallback.TranscribeVideo(ctx, header.URL)
		if err != nil {
			return header, fmt.Errorf("fallback transcription failed: %w", errors.Join(err, captionErr))
		}
		header.Source = models.SourceFallback
		body, header.Enhanced = t.enhance(ctx, v, body)
	}

	if err := ctx.Err(); err != nil {
		return header, err
	}
	if strings.TrimSpace(body) == "" {
		return header, fmt.Errorf("transcript for %s is empty", v.ID)
	}

	data, err := models.RenderTranscript(header, body)
	if err != nil {
		return header, err
	}
	if err := storage.WriteFileAtomic(filepath.Join(dir, storage.TranscriptRelPath(v)), data, 0644); err != nil {
		return header, err
	}
	return header, nil
}

// enhance returns the enhanced text, or the original text when no enhancer is
// configured or the enhancer fails.
func (t *Transcriber) enhance(ctx context.Context, v *models.Video, text string) (string, bool) {
	if t.enhancer == nil {
		return text, false
	}
	out, err := t.enhancer.Enhance(ctx, text)
	if err != nil || strings.TrimSpace(out) == "" {
		if err == nil {
			err = ai.ErrEmptyResponse
		}
		t.logger.Warn("enhancement failed, keeping raw text",
			slog.String("video_id", v.ID),
			slog.String("error", err.Error()))
		return text, false
	}
	return out, true
}

func method(h models.TranscriptHeader) string {
	m := string(h.Source)
	if h.Enhanced {
		m += "+enhanced"
	}
	return m
}
