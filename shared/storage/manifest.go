package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"channel-digest/internal/models"
)

// ManifestFile is the name of the manifest inside an output directory.
const ManifestFile = "index.json"

// ErrNoManifest is returned when a stage needs a manifest that has not been created yet.
var ErrNoManifest = errors.New("no manifest found")

// ManifestStore manages the persistent index of channel videos keyed by video ID.
type ManifestStore struct {
	filePath string
	videos   models.Manifest
	mu       sync.RWMutex
}

// CreateManifest opens the manifest in dir, starting empty when none exists yet.
func CreateManifest(dir string) (*ManifestStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	store := &ManifestStore{
		filePath: filepath.Join(dir, ManifestFile),
		videos:   make(models.Manifest),
	}
	if err := store.load(); err != nil && !errors.Is(err, ErrNoManifest) {
		return nil, err
	}
	return store, nil
}

// OpenManifest opens an existing manifest and fails with ErrNoManifest when it is absent.
func OpenManifest(dir string) (*ManifestStore, error) {
	store := &ManifestStore{
		filePath: filepath.Join(dir, ManifestFile),
		videos:   make(models.Manifest),
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// Path returns the manifest file location.
func (ms *ManifestStore) Path() string {
	return ms.filePath
}

// Len returns the number of tracked videos.
func (ms *ManifestStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.videos)
}

// Videos returns copies of all records, newest first.
func (ms *ManifestStore) Videos() []*models.Video {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	sorted := ms.videos.Sorted()
	out := make([]*models.Video, len(sorted))
	for i, v := range sorted {
		out[i] = v.Clone()
	}
	return out
}

// Get returns a copy of one record.
func (ms *ManifestStore) Get(id string) (*models.Video, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	v, ok := ms.videos[id]
	return v.Clone(), ok
}

// Counts tallies records by status.
func (ms *ManifestStore) Counts() map[models.Status]int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.videos.CountByStatus()
}

// Merge adds new videos and persists the manifest. Known IDs are left untouched.
func (ms *ManifestStore) Merge(videos []*models.Video) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	added := ms.videos.Merge(videos)
	return added, ms.save()
}

// Update applies fn to a record and persists the manifest.
func (ms *ManifestStore) Update(id string, fn func(*models.Video)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	v, ok := ms.videos[id]
	if !ok {
		return fmt.Errorf("video %s not in manifest", id)
	}
	fn(v)
	return ms.save()
}

// load reads the manifest from disk
func (ms *ManifestStore) load() error {
	data, err := os.ReadFile(ms.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w at %s", ErrNoManifest, ms.filePath)
		}
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	videos := make(models.Manifest)
	if err := json.Unmarshal(data, &videos); err != nil {
		return fmt.Errorf("failed to decode manifest %s: %w", ms.filePath, err)
	}
	for id, v := range videos {
		if v == nil {
			delete(videos, id)
			continue
		}
		if v.ID == "" {
			v.ID = id
		}
	}
	ms.videos = videos
	return nil
}

// save writes the manifest atomically. Callers hold the write lock.
func (ms *ManifestStore) save() error {
	data, err := json.MarshalIndent(ms.videos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	data = append(data, '\n')
	return WriteFileAtomic(ms.filePath, data, 0644)
}
