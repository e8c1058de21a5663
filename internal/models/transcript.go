package models

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// TranscriptSource records where transcript text came from.
type TranscriptSource string

const (
	SourceCaptions TranscriptSource = "captions"
	SourceFallback TranscriptSource = "fallback"
)

// TranscriptHeader is the frontmatter block at the top of a transcript file.
type TranscriptHeader struct {
	VideoID  string           `yaml:"video_id"`
	Title    string           `yaml:"title"`
	URL      string           `yaml:"url"`
	Date     string           `yaml:"date"`
	Duration int              `yaml:"duration"`
	Source   TranscriptSource `yaml:"source"`
	Enhanced bool             `yaml:"enhanced"`
}

// Status maps the transcript source back to a manifest status.
func (h TranscriptHeader) Status() Status {
	if h.Source == SourceFallback {
		return StatusTranscribedFallback
	}
	return StatusCaptionsOK
}

const frontmatterDelim = "---"

// RenderTranscript serializes a header and body into the on-disk transcript format.
func RenderTranscript(h TranscriptHeader, body string) ([]byte, error) {
	meta, err := yaml.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript header: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim + "\n")
	buf.Write(meta)
	buf.WriteString(frontmatterDelim + "\n\n")
	buf.WriteString(strings.TrimSpace(body))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// ParseTranscript splits a transcript file into header and body. Files without a
// frontmatter block return a zero header and the full text as body.
func ParseTranscript(data []byte) (TranscriptHeader, string, error) {
	var h TranscriptHeader
	text := string(data)
	if !strings.HasPrefix(text, frontmatterDelim+"\n") {
		return h, text, nil
	}
	rest := text[len(frontmatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelim)
	if end == -1 {
		return h, text, nil
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), &h); err != nil {
		return h, "", fmt.Errorf("failed to decode transcript header: %w", err)
	}
	body := rest[end+len(frontmatterDelim)+1:]
	return h, strings.TrimLeft(body, "\n"), nil
}
