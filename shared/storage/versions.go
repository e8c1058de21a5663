package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

const (
	// SummaryStem is the base name shared by every summary version.
	SummaryStem = "summaries"
	summaryExt  = ".md"
)

var (
	// ErrNoSummaries means the directory holds no summary document of any version.
	ErrNoSummaries = errors.New("no summaries document found")
	// ErrVersionExists guards against overwriting an allocated version.
	ErrVersionExists = errors.New("summary version already exists")

	summaryNamePattern = regexp.MustCompile(`^` + SummaryStem + `(?:_v(\d+))?\` + summaryExt + `$`)
)

// Resolved identifies the authoritative summary document of a directory.
// The unsuffixed document is version 1; summaries_vN.md is version N (N >= 2).
type Resolved struct {
	Dir     string
	Path    string
	Version int
}

// Name returns the file name of the resolved document.
func (r Resolved) Name() string {
	return filepath.Base(r.Path)
}

// NextPath returns the path the next pruned generation must be written to.
func (r Resolved) NextPath() string {
	return VersionPath(r.Dir, r.Version+1)
}

// VersionPath returns the file path for a given version number.
func VersionPath(dir string, version int) string {
	if version <= 1 {
		return filepath.Join(dir, SummaryStem+summaryExt)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_v%d%s", SummaryStem, version, summaryExt))
}

// BasePath returns the unsuffixed version 1 document path.
func BasePath(dir string) string {
	return VersionPath(dir, 1)
}

// SummaryVersion parses a file name and reports its version.
func SummaryVersion(name string) (int, bool) {
	m := summaryNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	if m[1] == "" {
		return 1, true
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 2 {
		return 0, false
	}
	return n, true
}

// ResolveLatest scans dir and returns the summary document with the highest version.
func ResolveLatest(dir string) (Resolved, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Resolved{}, fmt.Errorf("%w: directory %s does not exist", ErrNoSummaries, dir)
		}
		return Resolved{}, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	best := Resolved{Dir: dir}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		version, ok := SummaryVersion(entry.Name())
		if !ok || version <= best.Version {
			continue
		}
		best.Version = version
		best.Path = filepath.Join(dir, entry.Name())
	}
	if best.Version == 0 {
		return Resolved{}, fmt.Errorf("%w in %s", ErrNoSummaries, dir)
	}
	return best, nil
}

// WriteNewVersion writes data as the next version after r and returns its path.
// It never replaces an existing file.
func WriteNewVersion(r Resolved, data []byte) (string, error) {
	path := r.NextPath()
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrVersionExists, path)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check %s: %w", path, err)
	}
	if err := WriteFileAtomic(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
