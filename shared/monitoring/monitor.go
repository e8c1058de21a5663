package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrPartialFailure marks a stage run in which some items failed. The invocation
// still fails so the operator knows to re-run it.
var ErrPartialFailure = errors.New("partial failure")

// Metrics defines the common interface for stage results
type Metrics interface {
	// GetSummary returns a human-readable summary of the run
	GetSummary() string
}

// FailureCounter is implemented by results that track per-item failures.
type FailureCounter interface {
	FailureCount() int
}

// Outcome is the recorded result of one stage run.
type Outcome struct {
	Stage    string
	Summary  string
	Failures int
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the run finished without any failure.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Failures == 0
}

type Monitor struct {
	logger   *slog.Logger
	mu       sync.Mutex
	outcomes []Outcome
}

func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{logger: logger}
}

// Track runs one stage, times it and records the outcome. Per-item failures are
// logged as a partial failure and surface as ErrPartialFailure.
func (m *Monitor) Track(ctx context.Context, stage string, run func(context.Context) (Metrics, error)) error {
	start := time.Now()
	m.logger.Info("stage started", slog.String("stage", stage))

	metrics, err := run(ctx)
	duration := time.Since(start)

	outcome := Outcome{Stage: stage, Duration: duration, Err: err}
	if metrics != nil {
		outcome.Summary = metrics.GetSummary()
		if fc, ok := metrics.(FailureCounter); ok {
			outcome.Failures = fc.FailureCount()
		}
	}

	switch {
	case err != nil:
		m.RecordCriticalFailure(stage, err, duration)
	case outcome.Failures > 0:
		err = fmt.Errorf("%s: %w (%d failed)", stage, ErrPartialFailure, outcome.Failures)
		m.RecordPartialFailure(stage, outcome.Summary, outcome.Failures, duration)
	default:
		m.RecordSuccess(stage, outcome.Summary, duration)
	}

	m.mu.Lock()
	m.outcomes = append(m.outcomes, outcome)
	m.mu.Unlock()
	return err
}

func (m *Monitor) RecordSuccess(stage, summary string, duration time.Duration) {
	m.logger.Info("stage completed",
		slog.String("stage", stage),
		slog.String("summary", summary),
		slog.Duration("took", duration.Round(time.Millisecond)))
}

func (m *Monitor) RecordPartialFailure(stage, summary string, failures int, duration time.Duration) {
	m.logger.Warn("stage completed with failures",
		slog.String("stage", stage),
		slog.String("summary", summary),
		slog.Int("failed", failures),
		slog.Duration("took", duration.Round(time.Millisecond)))
}

func (m *Monitor) RecordCriticalFailure(stage string, err error, duration time.Duration) {
	if errors.Is(err, context.Canceled) {
		m.logger.Warn("stage interrupted", slog.String("stage", stage), slog.Duration("took", duration.Round(time.Millisecond)))
		return
	}
	m.logger.Error("stage failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
		slog.Duration("took", duration.Round(time.Millisecond)))
}

// Outcomes returns the recorded runs in order.
func (m *Monitor) Outcomes() []Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Outcome, len(m.outcomes))
	copy(out, m.outcomes)
	return out
}

// IsHealthy reports whether every recorded run succeeded.
func (m *Monitor) IsHealthy() bool {
	for _, o := range m.Outcomes() {
		if !o.Succeeded() {
			return false
		}
	}
	return true
}

func (m *Monitor) GetStatusSummary() string {
	outcomes := m.Outcomes()
	if len(outcomes) == 0 {
		return "No runs yet"
	}
	last := outcomes[len(outcomes)-1]
	if last.Succeeded() {
		return fmt.Sprintf("%s succeeded: %s", last.Stage, last.Summary)
	}
	if last.Err != nil {
		return fmt.Sprintf("%s failed: %v", last.Stage, last.Err)
	}
	return fmt.Sprintf("%s finished with %d failures: %s", last.Stage, last.Failures, last.Summary)
}
