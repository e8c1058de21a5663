package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}
}

func TestResolveLatestPicksHighestVersion(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "summaries.md", "summaries_v2.md", "summaries_v5.md", "analysis.md", "summaries_v3.txt")

	got, err := ResolveLatest(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "summaries_v5.md"), got.Path)
	assert.Equal(t, 5, got.Version)
	assert.Equal(t, filepath.Join(dir, "summaries_v6.md"), got.NextPath())
}

func TestResolveLatestBaseOnly(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "summaries.md")

	got, err := ResolveLatest(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "summaries.md", got.Name())
	assert.Equal(t, filepath.Join(dir, "summaries_v2.md"), got.NextPath())
}

func TestResolveLatestNotFound(t *testing.T) {
	t.Run("EmptyDirectory", func(t *testing.T) {
		_, err := ResolveLatest(t.TempDir())
		assert.ErrorIs(t, err, ErrNoSummaries)
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		_, err := ResolveLatest(filepath.Join(t.TempDir(), "nope"))
		assert.ErrorIs(t, err, ErrNoSummaries)
	})

	t.Run("OnlyUnrelatedFiles", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "summaries_v1.md", "summaries_vx.md", "my_summaries.md")
		_, err := ResolveLatest(dir)
		assert.ErrorIs(t, err, ErrNoSummaries)
	})
}

func TestResolveLatestIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "summaries.md")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "summaries_v9.md"), 0755))

	got, err := ResolveLatest(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

func TestSummaryVersion(t *testing.T) {
	tests := []struct {
		name    string
		version int
		ok      bool
	}{
		{"summaries.md", 1, true},
		{"summaries_v2.md", 2, true},
		{"summaries_v12.md", 12, true},
		{"summaries_v1.md", 0, false},
		{"summaries_v0.md", 0, false},
		{"summaries_v2.md.bak", 0, false},
		{"analysis.md", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := SummaryVersion(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.version, v)
		})
	}
}

func TestWriteNewVersionNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "summaries.md")

	r, err := ResolveLatest(dir)
	require.NoError(t, err)

	path, err := WriteNewVersion(r, []byte("second"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "summaries_v2.md"), path)

	// A stale Resolved pointing at version 1 must not clobber version 2.
	_, err = WriteNewVersion(r, []byte("clobber"))
	assert.ErrorIs(t, err, ErrVersionExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.md")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.True(t, FileExists(path))
	assert.False(t, FileExists(filepath.Dir(path)))
}

func TestPending(t *testing.T) {
	done := map[string]bool{"b": true, "d": true}
	got := Pending([]string{"a", "b", "c", "d"}, func(s string) string { return s }, func(k string) bool { return done[k] })
	assert.Equal(t, []string{"a", "c"}, got)
}
