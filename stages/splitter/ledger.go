package splitter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"channel-digest/shared/storage"

	"gopkg.in/yaml.v3"
)

// LedgerFile records which files in a category directory the last split wrote.
// Only those files are ever removed or replaced.
const LedgerFile = ".split.yaml"

var (
	// ErrUnsafeOutputDir means the category directory holds summary documents.
	ErrUnsafeOutputDir = errors.New("refusing to split into a directory that holds summary documents")
	// ErrFileNotOwned means a category file would replace a file the split did not write.
	ErrFileNotOwned = errors.New("category file would replace a file not written by split")
)

type ledger struct {
	Source string   `yaml:"source"`
	Files  []string `yaml:"files"`
}

func readLedger(dir string) (ledger, error) {
	var l ledger
	data, err := os.ReadFile(filepath.Join(dir, LedgerFile))
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return l, fmt.Errorf("failed to read split ledger: %w", err)
	}
	if err := yaml.Unmarshal(data, &l); err != nil {
		return l, fmt.Errorf("failed to parse split ledger %s: %w", filepath.Join(dir, LedgerFile), err)
	}
	return l, nil
}

func writeLedger(dir string, l ledger) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(filepath.Join(dir, LedgerFile), data, 0644)
}

// owned returns the ledger's file names that are plain Markdown files directly
// inside the category directory.
func (l ledger) owned() map[string]bool {
	out := make(map[string]bool, len(l.Files))
	for _, name := range l.Files {
		if name != filepath.Base(name) || !strings.HasSuffix(name, ".md") {
			continue
		}
		if _, isSummary := storage.SummaryVersion(name); isSummary {
			continue
		}
		out[name] = true
	}
	return out
}

// checkOutputDir refuses directories that are, or look like, a channel directory.
func checkOutputDir(outDir, sourceDir string) error {
	if samePath(outDir, sourceDir) {
		return fmt.Errorf("%w: %s is the summaries directory", ErrUnsafeOutputDir, outDir)
	}
	if _, err := storage.ResolveLatest(outDir); err == nil {
		return fmt.Errorf("%w: %s", ErrUnsafeOutputDir, outDir)
	} else if !errors.Is(err, storage.ErrNoSummaries) {
		return err
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if absA == absB {
		return true
	}
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}
