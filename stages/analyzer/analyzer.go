// Package analyzer runs one instruction prompt over the latest summary document
// in batches and concatenates the answers into a single report.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"channel-digest/shared/ai"
	"channel-digest/shared/report"
	"channel-digest/shared/storage"
	"channel-digest/shared/summaries"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ReportFile is the default report name inside the output directory.
const ReportFile = "analysis.md"

const (
	ModeBatches = "batches"
	ModeTitles  = "titles"

	batchSeparator = "\n\n---\n\n"
)

// ErrBatchesFailed means at least one batch still failed after retries. The
// previous report is left untouched.
var ErrBatchesFailed = errors.New("analysis batches failed")

type Options struct {
	Prompt          string
	BatchSize       int
	Concurrency     int
	TitlesOnly      bool
	MaxOutputTokens int32
}

type Result struct {
	Source  string
	Version int
	Entries int
	Batches int
	Failed  int
	Output  string
	RunID   string
}

func (r *Result) GetSummary() string {
	if r == nil {
		return "no analysis written"
	}
	if r.Output == "" {
		return fmt.Sprintf("%s v%d: %d entries, %d/%d batches failed, no report written",
			r.Source, r.Version, r.Entries, r.Failed, r.Batches)
	}
	return fmt.Sprintf("%s v%d: %d entries in %d batches -> %s", r.Source, r.Version, r.Entries, r.Batches, r.Output)
}

type Analyzer struct {
	gen    ai.Generator
	opts   Options
	logger *slog.Logger
}

func New(gen ai.Generator, opts Options, logger *slog.Logger) *Analyzer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{gen: gen, opts: opts, logger: logger.With(slog.String("stage", "analyze"))}
}

// Run analyzes the highest summary version in dir and writes the report to
// output, or to dir/analysis.md when output is empty.
func (a *Analyzer) Run(ctx context.Context, dir, output string) (*Result, error) {
	if strings.TrimSpace(a.opts.Prompt) == "" {
		return nil, errors.New("analysis prompt is empty")
	}
	resolved, err := storage.ResolveLatest(dir)
	if err != nil {
		return nil, err
	}
	doc, err := summaries.Load(resolved.Path)
	if err != nil {
		return nil, err
	}
	if output == "" {
		output = filepath.Join(dir, ReportFile)
	}

	result := &Result{
		Source:  resolved.Name(),
		Version: resolved.Version,
		Entries: doc.Len(),
		RunID:   uuid.NewString(),
	}
	a.logger.Info("analyzing summaries",
		slog.String("source", resolved.Name()),
		slog.Int("entries", doc.Len()),
		slog.String("run_id", result.RunID))
	if doc.Len() == 0 {
		a.logger.Warn("summary document has no entries, nothing to analyze",
			slog.String("path", resolved.Path))
		return result, nil
	}

	mode := ModeBatches
	var batches []string
	if a.opts.TitlesOnly {
		mode = ModeTitles
		batches = []string{TitleList(doc.Entries)}
	} else {
		batches = Batches(doc.Entries, a.opts.BatchSize)
	}
	result.Batches = len(batches)

	responses, failed := a.analyzeAll(ctx, batches)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if failed > 0 {
		result.Failed = failed
		return result, fmt.Errorf("%w: %d of %d, %s not updated", ErrBatchesFailed, failed, len(batches), output)
	}

	prov := report.Provenance{
		Source:  resolved.Name(),
		Version: resolved.Version,
		RunID:   result.RunID,
		Mode:    mode,
	}
	if err := storage.WriteFileAtomic(output, Render(prov, responses), 0644); err != nil {
		return result, err
	}
	result.Output = output
	return result, nil
}

// analyzeAll runs every batch with bounded concurrency. A failed batch never
// cancels its siblings.
func (a *Analyzer) analyzeAll(ctx context.Context, batches []string) ([]string, int) {
	responses := make([]string, len(batches))
	errs := make([]error, len(batches))

	g := new(errgroup.Group)
	g.SetLimit(a.opts.Concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			text, err := a.gen.Generate(ctx, ai.Request{
				Prompt:          a.opts.Prompt + "\n\n" + batch,
				MaxOutputTokens: a.opts.MaxOutputTokens,
			})
			if err == nil && strings.TrimSpace(text) == "" {
				err = ai.ErrEmptyResponse
			}
			if err != nil {
				errs[i] = err
				a.logger.Error("batch failed",
					slog.Int("batch", i+1),
					slog.Int("of", len(batches)),
					slog.String("error", err.Error()))
				return nil
			}
			responses[i] = strings.TrimSpace(text)
			a.logger.Info("batch done", slog.Int("batch", i+1), slog.Int("of", len(batches)))
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	return responses, failed
}

// Batches groups entries into runs of at most size, never splitting an entry.
func Batches(entries []summaries.Entry, size int) []string {
	if size <= 0 {
		size = len(entries)
	}
	var out []string
	for i := 0; i < len(entries); i += size {
		end := min(i+size, len(entries))
		out = append(out, strings.TrimSuffix(string(summaries.RenderEntries(entries[i:end])), "\n"))
	}
	return out
}

// TitleList renders one line per entry with only its title and URL.
func TitleList(entries []summaries.Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("**%s** - %s", e.Title, e.URL))
	}
	return strings.Join(lines, "\n")
}

// Render joins batch responses in order below the provenance header.
func Render(prov report.Provenance, responses []string) []byte {
	return []byte(prov.Header() + "\n\n" + strings.Join(responses, batchSeparator) + "\n")
}
