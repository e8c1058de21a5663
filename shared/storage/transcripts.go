package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"channel-digest/internal/models"
)

// TranscriptsDir holds one Markdown transcript per video inside the output directory.
const TranscriptsDir = "transcripts"

// TranscriptRelPath is the manifest-relative location of a video's transcript.
func TranscriptRelPath(v *models.Video) string {
	date := v.PublishDate
	if date == "" {
		date = "undated"
	}
	return filepath.Join(TranscriptsDir, fmt.Sprintf("%s_%s.md", date, v.ID))
}

// TranscriptPath resolves a video's transcript under dir, honouring a path
// already recorded in the manifest.
func TranscriptPath(dir string, v *models.Video) string {
	if v.TranscriptFile != "" {
		if filepath.IsAbs(v.TranscriptFile) {
			return v.TranscriptFile
		}
		return filepath.Join(dir, v.TranscriptFile)
	}
	return filepath.Join(dir, TranscriptRelPath(v))
}

// ReadTranscript loads and parses a video's transcript file.
func ReadTranscript(dir string, v *models.Video) (models.TranscriptHeader, string, error) {
	path := TranscriptPath(dir, v)
	data, err := os.ReadFile(path)
	if err != nil {
		return models.TranscriptHeader{}, "", fmt.Errorf("failed to read transcript %s: %w", path, err)
	}
	return models.ParseTranscript(data)
}
