package summaries

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"channel-digest/internal/models"
)

// Separator is the line that divides two entries of a summary document.
const Separator = "---"

var (
	separatorLine = regexp.MustCompile(`(?m)^---[ \t]*$`)
	urlLine       = regexp.MustCompile(`\*\*URL:\*\*\s*(\S+)`)
	dateLine      = regexp.MustCompile(`\*\*Date:\*\*\s*([^|\n]*?)\s*(?:\||$)`)
)

// Entry is one video section of a summary document.
type Entry struct {
	Title   string
	Date    string
	URL     string
	VideoID string
	Body    string

	// Raw is the trimmed section text exactly as it appeared in the source. It is
	// what gets written back, so filtering never rewrites an entry.
	Raw string
}

// Document is an ordered sequence of entries.
type Document struct {
	Entries []Entry
}

// FormatEntry renders a new entry for a video and its generated summary. Separator
// lines inside the summary are rewritten so they cannot split the entry.
func FormatEntry(v *models.Video, summary string) Entry {
	summary = separatorLine.ReplaceAllString(strings.TrimSpace(summary), "* * *")
	raw := fmt.Sprintf("# %s\n**Date:** %s | **URL:** %s\n\n%s",
		v.Title, v.PublishDate, v.URL, summary)
	return parseEntry(raw)
}

// Parse splits a summary document into entries. Empty sections are dropped.
func Parse(text string) *Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	doc := &Document{}
	for _, section := range separatorLine.Split(text, -1) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		doc.Entries = append(doc.Entries, parseEntry(section))
	}
	return doc
}

// Load reads and parses a summary document. A missing file is an empty document.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{}, nil
		}
		return nil, fmt.Errorf("failed to read summaries %s: %w", path, err)
	}
	return Parse(string(data)), nil
}

func parseEntry(raw string) Entry {
	e := Entry{Raw: raw}
	lines := strings.SplitN(raw, "\n", 2)
	if strings.HasPrefix(lines[0], "# ") {
		e.Title = strings.TrimSpace(strings.TrimPrefix(lines[0], "# "))
	}
	if m := urlLine.FindStringSubmatch(raw); m != nil {
		e.URL = m[1]
		if id, ok := models.ParseVideoID(m[1]); ok {
			e.VideoID = id
		}
	}
	if m := dateLine.FindStringSubmatch(raw); m != nil {
		e.Date = strings.TrimSpace(m[1])
	}
	if idx := strings.Index(raw, "\n\n"); idx != -1 {
		e.Body = strings.TrimSpace(raw[idx+2:])
	}
	return e
}

// Render serializes the document. Output depends only on the entries, so
// rendering the same entries twice yields identical bytes.
func (d *Document) Render() []byte {
	return RenderEntries(d.Entries)
}

// RenderEntries joins entries with separator lines and a trailing newline.
func RenderEntries(entries []Entry) []byte {
	if len(entries) == 0 {
		return nil
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = strings.TrimSpace(e.Raw)
	}
	return []byte(strings.Join(parts, "\n\n"+Separator+"\n\n") + "\n")
}

// Len returns the number of entries.
func (d *Document) Len() int {
	return len(d.Entries)
}

// IDs returns the set of video IDs present in the document.
func (d *Document) IDs() map[string]bool {
	ids := make(map[string]bool, len(d.Entries))
	for _, e := range d.Entries {
		if e.VideoID != "" {
			ids[e.VideoID] = true
		}
	}
	return ids
}

// Without returns the entries whose video ID is not in drop, in order, and how
// many were removed.
func (d *Document) Without(drop map[string]bool) ([]Entry, int) {
	kept := make([]Entry, 0, len(d.Entries))
	for _, e := range d.Entries {
		if e.VideoID != "" && drop[e.VideoID] {
			continue
		}
		kept = append(kept, e)
	}
	return kept, len(d.Entries) - len(kept)
}

// Append adds entries at the end of the document.
func (d *Document) Append(entries ...Entry) {
	d.Entries = append(d.Entries, entries...)
}
