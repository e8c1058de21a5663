package models

import (
	"sort"
	"time"
)

// DateLayout is the on-disk format of publish dates.
const DateLayout = "2006-01-02"

// Status tracks where a video is in the transcription stage.
type Status string

const (
	StatusPending             Status = "pending"
	StatusCaptionsOK          Status = "captions-ok"
	StatusTranscribedFallback Status = "transcribed-fallback"
	StatusFailed              Status = "failed"
)

// Transcribed reports whether a transcript exists for the status.
func (s Status) Transcribed() bool {
	return s == StatusCaptionsOK || s == StatusTranscribedFallback
}

type Video struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	PublishDate     string `json:"publish_date"`
	DurationSeconds int    `json:"duration"`
	URL             string `json:"url"`
	Status          Status `json:"status"`
	Method          string `json:"method,omitempty"`
	TranscriptFile  string `json:"transcript_file,omitempty"`
	LastError       string `json:"last_error,omitempty"`
}

// Published parses PublishDate. The zero time is returned for malformed dates.
func (v *Video) Published() time.Time {
	t, err := time.Parse(DateLayout, v.PublishDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a copy safe to hand to another goroutine.
func (v *Video) Clone() *Video {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Manifest maps video ID to its record. It is the index.json document.
type Manifest map[string]*Video

// Sorted returns the videos newest first, ties broken by ID.
func (m Manifest) Sorted() []*Video {
	videos := make([]*Video, 0, len(m))
	for _, v := range m {
		videos = append(videos, v)
	}
	sort.SliceStable(videos, func(i, j int) bool {
		if videos[i].PublishDate != videos[j].PublishDate {
			return videos[i].PublishDate > videos[j].PublishDate
		}
		return videos[i].ID < videos[j].ID
	})
	return videos
}

// Merge adds videos whose IDs are not yet present and returns how many were added.
// Existing records are left untouched so transcription status survives a re-fetch.
func (m Manifest) Merge(videos []*Video) int {
	added := 0
	for _, v := range videos {
		if v == nil || v.ID == "" {
			continue
		}
		if _, exists := m[v.ID]; exists {
			continue
		}
		m[v.ID] = v
		added++
	}
	return added
}

// CountByStatus tallies the manifest by status.
func (m Manifest) CountByStatus() map[Status]int {
	counts := make(map[Status]int)
	for _, v := range m {
		counts[v.Status]++
	}
	return counts
}
