// Package summarizer appends a model-written summary of every transcript to the
// cumulative summary document.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"channel-digest/internal/models"
	"channel-digest/shared/ai"
	"channel-digest/shared/storage"
	"channel-digest/shared/summaries"

	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Prompt may contain {bullet_count}.
	Prompt          string
	Concurrency     int
	MaxOutputTokens int32
}

type Result struct {
	Output    string
	Pending   int
	Summaries int
	Failed    int
	Total     int
}

func (r *Result) GetSummary() string {
	if r == nil {
		return "no summaries written"
	}
	return fmt.Sprintf("%d of %d pending summarized, %d failed, %s now holds %d entries",
		r.Summaries, r.Pending, r.Failed, r.Output, r.Total)
}

func (r *Result) FailureCount() int {
	if r == nil {
		return 0
	}
	return r.Failed
}

type Summarizer struct {
	gen    ai.Generator
	opts   Options
	logger *slog.Logger
}

func New(gen ai.Generator, opts Options, logger *slog.Logger) *Summarizer {
	if opts.Prompt == "" {
		opts.Prompt = ai.DefaultSummaryPrompt
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{gen: gen, opts: opts, logger: logger.With(slog.String("stage", "summarize"))}
}

// outcome is the result slot of one video; done is set once the call returns.
type outcome struct {
	entry summaries.Entry
	err   error
	done  bool
}

// Run summarizes every transcribed video missing from summaries.md, newest first.
// Finished entries are committed in input order as soon as every earlier video
// has finished, so an interrupted run keeps its completed prefix.
func (s *Summarizer) Run(ctx context.Context, dir string) (*Result, error) {
	store, err := storage.OpenManifest(dir)
	if err != nil {
		return nil, err
	}

	output := storage.BasePath(dir)
	if latest, err := storage.ResolveLatest(dir); err == nil && latest.Version > 1 {
		s.logger.Warn("new summaries are written to summaries.md only; rebuild pruned versions from it to include them",
			slog.String("latest", latest.Name()),
			slog.String("output", output))
	}

	doc, err := summaries.Load(output)
	if err != nil {
		return nil, err
	}
	result := &Result{Output: output, Total: doc.Len()}

	var transcribed []*models.Video
	for _, v := range store.Videos() {
		if v.Status.Transcribed() {
			transcribed = append(transcribed, v)
		}
	}
	done := doc.IDs()
	pending := storage.Pending(transcribed,
		func(v *models.Video) string { return v.ID },
		func(id string) bool { return done[id] })
	result.Pending = len(pending)

	s.logger.Info("summarizing transcripts",
		slog.Int("pending", len(pending)),
		slog.Int("already_summarized", len(transcribed)-len(pending)),
		slog.Int("concurrency", s.opts.Concurrency))
	if len(pending) == 0 {
		return result, nil
	}

	var (
		mu       sync.Mutex
		slots    = make([]outcome, len(pending))
		next     int
		writeErr error
	)
	// commit appends the finished prefix. Callers hold mu.
	commit := func() {
		var entries []summaries.Entry
		for next < len(slots) && slots[next].done {
			if slots[next].err == nil {
				entries = append(entries, slots[next].entry)
			}
			next++
		}
		if len(entries) == 0 || writeErr != nil {
			return
		}
		doc.Append(entries...)
		if err := storage.WriteFileAtomic(output, doc.Render(), 0644); err != nil {
			writeErr = err
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)
	for i, v := range pending {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			entry, err := s.summarize(ctx, dir, v)

			mu.Lock()
			defer mu.Unlock()
			slots[i] = outcome{entry: entry, err: err, done: true}
			if err != nil {
				result.Failed++
				s.logger.Error("summary failed",
					slog.String("video_id", v.ID),
					slog.String("error", err.Error()))
			} else {
				result.Summaries++
				s.logger.Info("summarized",
					slog.String("video_id", v.ID),
					slog.String("title", v.Title))
			}
			commit()
			return nil
		})
	}
	_ = g.Wait()

	result.Total = doc.Len()
	if writeErr != nil {
		return result, fmt.Errorf("failed to write %s: %w", output, writeErr)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Summarizer) summarize(ctx context.Context, dir string, v *models.Video) (summaries.Entry, error) {
	if err := ctx.Err(); err != nil {
		return summaries.Entry{}, err
	}
	_, body, err := storage.ReadTranscript(dir, v)
	if err != nil {
		return summaries.Entry{}, err
	}
	if strings.TrimSpace(body) == "" {
		return summaries.Entry{}, fmt.Errorf("transcript for %s is empty", v.ID)
	}

	prompt := ai.RenderSummaryPrompt(s.opts.Prompt, v.DurationSeconds)
	text, err := s.gen.Generate(ctx, ai.Request{
		Prompt:          ai.SummaryRequest(prompt, v.Title, strings.TrimSpace(body)),
		MaxOutputTokens: s.opts.MaxOutputTokens,
	})
	if err != nil {
		return summaries.Entry{}, err
	}
	if strings.TrimSpace(text) == "" {
		return summaries.Entry{}, ai.ErrEmptyResponse
	}
	if v.URL == "" {
		v.URL = models.WatchURL(v.ID)
	}
	return summaries.FormatEntry(v, text), nil
}
