package monitoring

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetrics struct {
	summary  string
	failures int
}

func (f fakeMetrics) GetSummary() string { return f.summary }
func (f fakeMetrics) FailureCount() int  { return f.failures }

func newTestMonitor() *Monitor {
	return NewMonitor(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTrackSuccess(t *testing.T) {
	m := newTestMonitor()
	assert.Equal(t, "No runs yet", m.GetStatusSummary())

	err := m.Track(context.Background(), "fetch", func(context.Context) (Metrics, error) {
		return fakeMetrics{summary: "3 new videos"}, nil
	})
	require.NoError(t, err)
	assert.True(t, m.IsHealthy())
	assert.Equal(t, "fetch succeeded: 3 new videos", m.GetStatusSummary())
}

func TestTrackPartialFailure(t *testing.T) {
	m := newTestMonitor()
	err := m.Track(context.Background(), "transcribe", func(context.Context) (Metrics, error) {
		return fakeMetrics{summary: "4 transcribed", failures: 1}, nil
	})
	assert.ErrorIs(t, err, ErrPartialFailure)
	assert.False(t, m.IsHealthy())

	outcomes := m.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, 1, outcomes[0].Failures)
	assert.Nil(t, outcomes[0].Err)
}

func TestTrackCriticalFailure(t *testing.T) {
	m := newTestMonitor()
	boom := errors.New("no summaries")
	err := m.Track(context.Background(), "prune", func(context.Context) (Metrics, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, m.GetStatusSummary(), "prune failed")
}
