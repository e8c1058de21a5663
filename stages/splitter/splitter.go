// Package splitter partitions the latest summary document into one document per
// category, using a categorization report.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"channel-digest/shared/report"
	"channel-digest/shared/storage"
	"channel-digest/shared/summaries"
)

// Uncategorized collects every entry the report did not assign.
const Uncategorized = "Uncategorized"

// CategoriesDir is the default output directory inside the channel directory.
const CategoriesDir = "categories"

// ErrUnreadableReport means the report holds no text at all.
var ErrUnreadableReport = errors.New("could not understand the categorization report")

// Group is one output document.
type Group struct {
	Category string
	Slug     string
	Entries  []summaries.Entry
}

// File is the group's file name.
func (g Group) File() string {
	return g.Slug + ".md"
}

type Options struct {
	OutputDir string
}

type Result struct {
	Source      string
	OutputDir   string
	Assignments int
	Entries     int
	Groups      []Group
	// Missing lists video IDs the report assigned that the summaries do not contain.
	Missing []string
}

func (r *Result) GetSummary() string {
	if r == nil {
		return "nothing split"
	}
	if len(r.Groups) == 0 {
		return fmt.Sprintf("%s: no categorization lines found, nothing split", r.Source)
	}
	return fmt.Sprintf("%s: %d entries into %d category files in %s (%d assigned IDs missing from summaries)",
		r.Source, r.Entries, len(r.Groups), r.OutputDir, len(r.Missing))
}

type Splitter struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{opts: opts, logger: logger.With(slog.String("stage", "split"))}
}

// Run splits the highest summary version in dir according to the report at
// reportPath. Category files from an earlier split are replaced; the category
// directory may not be the summaries directory or hold summary documents.
func (s *Splitter) Run(ctx context.Context, dir, reportPath string) (*Result, error) {
	resolved, err := storage.ResolveLatest(dir)
	if err != nil {
		return nil, err
	}
	outDir := s.opts.OutputDir
	if outDir == "" {
		outDir = filepath.Join(dir, CategoriesDir)
	}
	result := &Result{Source: resolved.Name(), OutputDir: outDir}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read categorization report: %w", err)
	}
	assignments, err := report.ParseCategorizations(string(data))
	if err != nil {
		return result, fmt.Errorf("%w %s: %w", ErrUnreadableReport, reportPath, err)
	}
	result.Assignments = len(assignments)
	if len(assignments) == 0 {
		s.logger.Warn("no categorization lines found in report, nothing to split",
			slog.String("report", reportPath))
		return result, nil
	}

	doc, err := summaries.Load(resolved.Path)
	if err != nil {
		return result, err
	}
	result.Entries = doc.Len()
	result.Groups = Split(doc.Entries, assignments)
	result.Missing = missingIDs(doc, assignments)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if err := checkOutputDir(outDir, dir); err != nil {
		return result, err
	}
	if err := writeGroups(outDir, resolved.Name(), result.Groups); err != nil {
		return result, err
	}

	if len(result.Missing) > 0 {
		s.logger.Warn("report assigns videos that are not in the summaries",
			slog.Int("count", len(result.Missing)),
			slog.Any("video_ids", result.Missing))
	}
	s.logger.Info("split summaries",
		slog.String("source", resolved.Name()),
		slog.Int("categories", len(result.Groups)),
		slog.String("output_dir", outDir))
	return result, nil
}

// Split assigns every entry to exactly one group. Categories whose names share a
// slug are merged under the first spelling seen; groups are sorted by name.
func Split(entries []summaries.Entry, assignments []report.Assignment) []Group {
	categoryOf := make(map[string]string, len(assignments))
	for _, a := range assignments {
		if _, ok := categoryOf[a.VideoID]; !ok {
			categoryOf[a.VideoID] = a.Category
		}
	}

	bySlug := make(map[string]*Group)
	for _, e := range entries {
		category, ok := categoryOf[e.VideoID]
		if e.VideoID == "" || !ok {
			category = Uncategorized
		}
		slug := Slugify(category)
		g, ok := bySlug[slug]
		if !ok {
			g = &Group{Category: category, Slug: slug}
			bySlug[slug] = g
		}
		g.Entries = append(g.Entries, e)
	}

	groups := make([]Group, 0, len(bySlug))
	for _, g := range bySlug {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Category != groups[j].Category {
			return groups[i].Category < groups[j].Category
		}
		return groups[i].Slug < groups[j].Slug
	})
	return groups
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Slugify turns a category name into a file stem: "Resume & Applications"
// becomes "resume_and_applications".
func Slugify(name string) string {
	s := strings.ReplaceAll(name, "&", "and")
	s = nonAlnum.ReplaceAllString(s, "_")
	s = strings.ToLower(strings.Trim(s, "_"))
	if s == "" {
		return "category"
	}
	if _, isSummary := storage.SummaryVersion(s + ".md"); isSummary {
		return "category_" + s
	}
	return s
}

func missingIDs(doc *summaries.Document, assignments []report.Assignment) []string {
	present := doc.IDs()
	var missing []string
	for _, a := range assignments {
		if !present[a.VideoID] {
			missing = append(missing, a.VideoID)
		}
	}
	sort.Strings(missing)
	return missing
}

// writeGroups writes one file per group into dir. Files recorded by the previous
// split are replaced; any other file in dir is left alone, and a group that
// would overwrite one fails the split before anything is removed.
func writeGroups(dir, source string, groups []Group) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create category directory: %w", err)
	}
	prev, err := readLedger(dir)
	if err != nil {
		return err
	}
	owned := prev.owned()

	for _, g := range groups {
		path := filepath.Join(dir, g.File())
		if storage.FileExists(path) && !owned[g.File()] {
			return fmt.Errorf("%w: %s", ErrFileNotOwned, path)
		}
	}

	for name := range owned {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale category file: %w", err)
		}
	}

	next := ledger{Source: source}
	for _, g := range groups {
		if err := storage.WriteFileAtomic(filepath.Join(dir, g.File()), summaries.RenderEntries(g.Entries), 0644); err != nil {
			return err
		}
		next.Files = append(next.Files, g.File())
	}
	return writeLedger(dir, next)
}
