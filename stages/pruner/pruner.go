// Package pruner removes the videos an analysis report flags from the latest
// summary document, producing the next summary version.
package pruner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"channel-digest/shared/report"
	"channel-digest/shared/storage"
	"channel-digest/shared/summaries"
)

var (
	// ErrUnreadableReport means the report could not be interpreted at all.
	ErrUnreadableReport = errors.New("could not understand the analysis report")
	// ErrStaleReport means the report was generated from a different summary
	// version than the one being pruned.
	ErrStaleReport = errors.New("analysis report does not match the latest summaries")
)

type Options struct {
	// Strict refuses reports whose provenance does not name the resolved source.
	Strict bool
	// Overwrite replaces the resolved source in place instead of allocating a version.
	Overwrite bool
	// Output is an explicit destination; it takes precedence over Overwrite.
	Output string
}

type Result struct {
	Source    string
	Flagged   int
	Removed   int
	Kept      int
	Unmatched int
	Stale     bool
	Output    string
}

func (r *Result) GetSummary() string {
	if r == nil {
		return "nothing pruned"
	}
	if r.Output == "" {
		return fmt.Sprintf("%s: nothing to prune", r.Source)
	}
	return fmt.Sprintf("%s: removed %d of %d flagged, %d remaining -> %s",
		r.Source, r.Removed, r.Flagged, r.Kept, filepath.Base(r.Output))
}

type Pruner struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{opts: opts, logger: logger.With(slog.String("stage", "prune"))}
}

// Run prunes the highest summary version in dir using the report at reportPath.
// The same source and report always render the same bytes.
func (p *Pruner) Run(ctx context.Context, dir, reportPath string) (*Result, error) {
	resolved, err := storage.ResolveLatest(dir)
	if err != nil {
		return nil, err
	}
	result := &Result{Source: resolved.Name()}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis report: %w", err)
	}
	text := string(data)

	if err := p.checkProvenance(text, resolved, result); err != nil {
		return result, err
	}

	ids, err := report.ExtractVideoIDs(text)
	if err != nil {
		return result, fmt.Errorf("%w %s: %w", ErrUnreadableReport, reportPath, err)
	}
	result.Flagged = len(ids)
	if len(ids) == 0 {
		p.logger.Info("no flagged videos in report, nothing to prune",
			slog.String("report", reportPath))
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	doc, err := summaries.Load(resolved.Path)
	if err != nil {
		return result, err
	}
	flagged := make(map[string]bool, len(ids))
	for _, id := range ids {
		flagged[id] = true
	}
	present := doc.IDs()
	for _, id := range ids {
		if !present[id] {
			result.Unmatched++
		}
	}

	kept, removed := doc.Without(flagged)
	result.Removed = removed
	result.Kept = len(kept)
	if len(kept) == 0 {
		p.logger.Warn("every entry was flagged; the pruned document is empty")
	}
	if result.Unmatched > 0 {
		p.logger.Info("flagged videos not present in source",
			slog.Int("count", result.Unmatched),
			slog.String("source", resolved.Name()))
	}

	out := summaries.RenderEntries(kept)
	switch {
	case p.opts.Output != "":
		if err := os.MkdirAll(filepath.Dir(p.opts.Output), 0755); err != nil {
			return result, fmt.Errorf("failed to create output directory: %w", err)
		}
		err = storage.WriteFileAtomic(p.opts.Output, out, 0644)
		result.Output = p.opts.Output
	case p.opts.Overwrite:
		err = storage.WriteFileAtomic(resolved.Path, out, 0644)
		result.Output = resolved.Path
	default:
		result.Output, err = storage.WriteNewVersion(resolved, out)
	}
	if err != nil {
		result.Output = ""
		return result, err
	}

	p.logger.Info("pruned summaries",
		slog.String("source", resolved.Name()),
		slog.Int("removed", removed),
		slog.Int("remaining", len(kept)),
		slog.String("output", result.Output))
	return result, nil
}

func (p *Pruner) checkProvenance(text string, resolved storage.Resolved, result *Result) error {
	prov, ok := report.ParseProvenance(text)
	switch {
	case !ok:
		result.Stale = true
		if p.opts.Strict {
			return fmt.Errorf("%w: report has no provenance header", ErrStaleReport)
		}
		p.logger.Warn("analysis report has no provenance header; cannot confirm it matches the summaries",
			slog.String("source", resolved.Name()))
	case !prov.Matches(resolved.Name(), resolved.Version):
		result.Stale = true
		if p.opts.Strict {
			return fmt.Errorf("%w: report was generated from %s (v%d), latest is %s (v%d)",
				ErrStaleReport, prov.Source, prov.Version, resolved.Name(), resolved.Version)
		}
		p.logger.Warn("analysis report was generated from a different summary version; re-run analyze before pruning again",
			slog.String("report_source", prov.Source),
			slog.Int("report_version", prov.Version),
			slog.String("source", resolved.Name()),
			slog.Int("version", resolved.Version))
	}
	return nil
}
