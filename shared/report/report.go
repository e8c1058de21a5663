// Package report parses the free-text analysis reports produced by the language
// model back into structured results.
//
// A report that cannot be read at all (ErrEmptyReport) is distinct from a
// readable report that references nothing.
package report

import (
	"errors"
	"regexp"
	"strings"

	"channel-digest/internal/models"
)

// ErrEmptyReport means the report holds no text to interpret.
var ErrEmptyReport = errors.New("analysis report is empty")

// ExtractVideoIDs returns the distinct video IDs referenced by URLs in the report,
// in order of first appearance. A report without URLs yields an empty slice.
func ExtractVideoIDs(text string) ([]string, error) {
	body := StripProvenance(text)
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyReport
	}
	return models.FindVideoIDs(body), nil
}

// Assignment binds one video to the category the model chose for it.
type Assignment struct {
	VideoID  string
	Title    string
	Category string
	URL      string
}

const separator = `\s*[-\x{2013}\x{2014}]{1,3}\s*`

var categorizationPattern = regexp.MustCompile(
	`\*\*(.+?)\*\*` + separator + `(.+?)` + separator + `.+?` + separator +
		`((?:https?://)?(?:www\.|m\.)?(?:youtube\.com|youtu\.be)/\S+)`,
)

// ParseCategorizations reads lines shaped like
//
//	**<title>** - <category> - <reason> - <url>
//
// and returns one assignment per video. When a video is assigned more than once
// the first assignment wins.
func ParseCategorizations(text string) ([]Assignment, error) {
	body := StripProvenance(text)
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyReport
	}

	seen := make(map[string]bool)
	var out []Assignment
	for _, m := range categorizationPattern.FindAllStringSubmatch(body, -1) {
		id, ok := models.ParseVideoID(strings.TrimRight(m[3], ".,;)]>"))
		if !ok || seen[id] {
			continue
		}
		category := strings.TrimSpace(m[2])
		if category == "" {
			continue
		}
		seen[id] = true
		out = append(out, Assignment{
			VideoID:  id,
			Title:    strings.TrimSpace(m[1]),
			Category: category,
			URL:      models.WatchURL(id),
		})
	}
	return out, nil
}

var categoryLine = regexp.MustCompile(`(?m)^- .+$`)

// ExtractCategoryLines returns the bullet lines of a category-discovery report.
func ExtractCategoryLines(text string) []string {
	matches := categoryLine.FindAllString(StripProvenance(text), -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimRight(m, " \t\r"))
	}
	return out
}
