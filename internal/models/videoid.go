package models

import (
	"regexp"
	"strings"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

	// videoURLPattern matches the URL shapes a model tends to echo back.
	videoURLPattern = regexp.MustCompile(
		`(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/(?:watch\?(?:[^\s)\]>"']*?&)?v=|shorts/|embed/|live/)|youtu\.be/)([A-Za-z0-9_-]{11})`,
	)
)

// WatchURL builds the canonical watch URL for a video ID.
func WatchURL(id string) string {
	return watchURLPrefix + id
}

// IsVideoID reports whether s has the shape of a YouTube video ID.
func IsVideoID(s string) bool {
	return videoIDPattern.MatchString(s)
}

// ParseVideoID extracts a video ID from a URL or returns s when it already is an ID.
func ParseVideoID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if IsVideoID(s) {
		return s, true
	}
	if m := videoURLPattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// FindVideoIDs returns every video ID referenced by a URL in text, in order of first
// appearance and without duplicates.
func FindVideoIDs(text string) []string {
	matches := videoURLPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
