package lister

import (
	"context"
	"errors"
	"testing"
	"time"

	"channel-digest/internal/models"
	"channel-digest/shared/logging"
	"channel-digest/shared/storage"
	"channel-digest/shared/youtube"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	pages   [][]youtube.Upload
	visited int
	err     error
}

func (f *fakeSource) ResolveChannel(_ context.Context, ref youtube.ChannelRef) (*youtube.Channel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &youtube.Channel{ID: "UC123", Title: "Test Channel", UploadsPlaylistID: "UU123"}, nil
}

func (f *fakeSource) Uploads(_ context.Context, _ string, visit func([]youtube.Upload) (bool, error)) error {
	for _, page := range f.pages {
		f.visited++
		more, err := visit(page)
		if err != nil || !more {
			return err
		}
	}
	return nil
}

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t.Add(15 * time.Hour)
}

func upload(id, date string, seconds int) youtube.Upload {
	return youtube.Upload{ID: id, Title: "Video " + id, PublishedAt: day(date), DurationSeconds: seconds}
}

func newLister(src Source, after string) *Lister {
	opts := Options{MinDurationSeconds: 120, StaleStreak: 3}
	if after != "" {
		opts.After, _ = time.Parse(models.DateLayout, after)
	}
	return New(src, opts, logging.NewNop())
}

func TestRunKeepsOnlyVideosAfterCutoff(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{pages: [][]youtube.Upload{{
		upload("aaaaaaaaaa1", "2024-03-10", 600),
		upload("aaaaaaaaaa2", "2024-03-05", 600),
		upload("aaaaaaaaaa3", "2024-03-01", 600),
		upload("bbbbbbbbbb1", "2024-02-28", 600),
		upload("bbbbbbbbbb2", "2024-02-01", 600),
	}}}

	result, err := newLister(src, "2024-03-01").Run(context.Background(), youtube.ChannelRef{Kind: youtube.RefHandle, Value: "test"}, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Listed)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 2, result.SkippedOld)

	store, err := storage.OpenManifest(dir)
	require.NoError(t, err)
	videos := store.Videos()
	require.Len(t, videos, 3)
	for _, v := range videos {
		assert.Equal(t, models.StatusPending, v.Status)
		assert.Equal(t, models.WatchURL(v.ID), v.URL)
	}
	assert.Equal(t, "aaaaaaaaaa1", videos[0].ID)
	assert.Equal(t, "2024-03-01", videos[2].PublishDate)
}

func TestRunStopsAfterStaleStreak(t *testing.T) {
	src := &fakeSource{pages: [][]youtube.Upload{
		{
			upload("new00000001", "2024-03-10", 600),
			upload("old00000001", "2024-02-01", 600),
			upload("new00000002", "2024-03-09", 600), // resets the streak
			upload("old00000002", "2024-01-20", 600),
			upload("old00000003", "2024-01-10", 600),
		},
		{
			upload("old00000004", "2024-01-01", 600),
			upload("new00000003", "2024-03-08", 600),
		},
		{
			upload("never000001", "2024-03-07", 600),
		},
	}}

	result, err := newLister(src, "2024-03-01").Run(context.Background(), youtube.ChannelRef{Kind: youtube.RefHandle, Value: "test"}, t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Stopped)
	assert.Equal(t, 2, result.Listed)
	assert.Equal(t, 2, src.visited)
	assert.Equal(t, 6, result.Scanned)
}

func TestRunSkipsShortVideos(t *testing.T) {
	src := &fakeSource{pages: [][]youtube.Upload{{
		upload("short000001", "2024-03-10", 59),
		upload("edge0000001", "2024-03-10", 120),
		upload("long0000001", "2024-03-10", 3600),
	}}}

	result, err := newLister(src, "").Run(context.Background(), youtube.ChannelRef{Kind: youtube.RefHandle, Value: "test"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, result.SkippedShort)
	assert.Equal(t, 2, result.Listed)
}

func TestRunPreservesExistingStatus(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.CreateManifest(dir)
	require.NoError(t, err)
	_, err = store.Merge([]*models.Video{{
		ID: "aaaaaaaaaa1", Title: "Video aaaaaaaaaa1", PublishDate: "2024-03-10",
		DurationSeconds: 600, Status: models.StatusCaptionsOK,
	}})
	require.NoError(t, err)

	src := &fakeSource{pages: [][]youtube.Upload{{
		upload("aaaaaaaaaa1", "2024-03-10", 600),
		upload("aaaaaaaaaa2", "2024-03-11", 600),
	}}}
	result, err := newLister(src, "").Run(context.Background(), youtube.ChannelRef{Kind: youtube.RefHandle, Value: "test"}, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 2, result.Total)

	reopened, err := storage.OpenManifest(dir)
	require.NoError(t, err)
	v, ok := reopened.Get("aaaaaaaaaa1")
	require.True(t, ok)
	assert.Equal(t, models.StatusCaptionsOK, v.Status)
}

func TestRunResolveFailure(t *testing.T) {
	src := &fakeSource{err: youtube.ErrChannelNotFound}

	_, err := newLister(src, "").Run(context.Background(), youtube.ChannelRef{Kind: youtube.RefHandle, Value: "nobody"}, t.TempDir())
	assert.True(t, errors.Is(err, youtube.ErrChannelNotFound))
}

func TestResultSummaryNilSafe(t *testing.T) {
	var r *Result
	assert.NotEmpty(t, r.GetSummary())
}
