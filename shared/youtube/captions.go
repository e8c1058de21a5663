package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"channel-digest/internal/models"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoCaptions means the video has no caption track that can be fetched.
var ErrNoCaptions = errors.New("no captions available")

// Cue is one timed caption line.
type Cue struct {
	Start time.Duration
	Text  string
}

// playerMarker marks the start of the player response JSON in watch page HTML.
const playerMarker = "ytInitialPlayerResponse = "

type playerResponse struct {
	Captions *struct {
		Tracklist struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// Captions fetches the caption cues of a video in the requested language,
// preferring manual tracks over auto-generated ones.
func (s *Scraper) Captions(ctx context.Context, videoID, lang string) ([]Cue, error) {
	doc, err := s.page(ctx, s.baseURL+"/watch?v="+videoID)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}

	player, err := playerFromPage(doc)
	if err != nil {
		return nil, err
	}
	if player.Captions == nil {
		if player.PlayabilityStatus != nil && player.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoCaptions, player.PlayabilityStatus.Reason)
		}
		return nil, ErrNoCaptions
	}

	track, ok := pickTrack(player.Captions.Tracklist.CaptionTracks, lang)
	if !ok {
		return nil, fmt.Errorf("%w: no usable track for language %q", ErrNoCaptions, lang)
	}

	body, err := s.fetch(ctx, track.BaseURL, maxXMLBytes)
	if err != nil {
		return nil, fmt.Errorf("timedtext: %w", err)
	}
	cues, err := parseTimedText(body)
	if err != nil {
		return nil, err
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("%w: empty caption track", ErrNoCaptions)
	}
	return cues, nil
}

func playerFromPage(doc *goquery.Document) (*playerResponse, error) {
	var raw []byte
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		idx := strings.Index(text, playerMarker)
		if idx < 0 {
			return true
		}
		raw = extractJSONObject(text[idx+len(playerMarker):])
		return raw == nil
	})
	if raw == nil {
		return nil, fmt.Errorf("%w: player response not found in watch page", ErrNoCaptions)
	}

	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	return &player, nil
}

// extractJSONObject returns the balanced JSON object at the start of s.
func extractJSONObject(s string) []byte {
	s = strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(s, "{") {
		return nil
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(s[:i+1])
			}
		}
	}
	return nil
}

// needsPoToken reports whether a track URL can only be fetched by a browser.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickTrack prefers a manual track in lang, then an auto-generated one in lang,
// then a manual track in a regional variant of lang.
func pickTrack(tracks []captionTrack, lang string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}

	matches := []func(captionTrack) bool{
		func(t captionTrack) bool { return t.LanguageCode == lang && t.Kind != "asr" },
		func(t captionTrack) bool { return t.LanguageCode == lang },
		func(t captionTrack) bool { return strings.HasPrefix(t.LanguageCode, lang+"-") && t.Kind != "asr" },
		func(t captionTrack) bool { return strings.HasPrefix(t.LanguageCode, lang+"-") },
	}
	for _, match := range matches {
		for _, t := range usable {
			if match(t) {
				return t, true
			}
		}
	}
	return captionTrack{}, false
}

// timedText covers both the legacy transcript format (<text start dur>) and
// srv3 (<body><p t d>).
type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
	Paragraphs []struct {
		T     string `xml:"t,attr"`
		Inner string `xml:",innerxml"`
	} `xml:"body>p"`
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func parseTimedText(data []byte) ([]Cue, error) {
	var tt timedText
	if err := xml.Unmarshal(data, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	var cues []Cue
	for _, t := range tt.Texts {
		secs, _ := strconv.ParseFloat(t.Start, 64)
		cues = append(cues, Cue{
			Start: time.Duration(secs * float64(time.Second)),
			Text:  html.UnescapeString(t.Body),
		})
	}
	for _, p := range tt.Paragraphs {
		ms, _ := strconv.Atoi(p.T)
		text := tagPattern.ReplaceAllString(p.Inner, "")
		cues = append(cues, Cue{
			Start: time.Duration(ms) * time.Millisecond,
			Text:  html.UnescapeString(html.UnescapeString(text)),
		})
	}
	return cues, nil
}

var multiSpace = regexp.MustCompile(` {2,}`)

// CleanCaption normalizes whitespace in one caption line.
func CleanCaption(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// FormatCaptions renders cues as transcript text. Consecutive duplicate lines are
// dropped, keeping the earliest timestamp. With timestamps each line is prefixed
// with a **[MM:SS]** marker and separated by a blank line.
func FormatCaptions(cues []Cue, timestamps bool) string {
	lines := make([]string, 0, len(cues))
	previous := ""
	first := true
	for _, cue := range cues {
		text := CleanCaption(cue.Text)
		if !first && text == previous {
			continue
		}
		first = false
		previous = text
		if text == "" {
			continue
		}
		if timestamps {
			lines = append(lines, fmt.Sprintf("**[%s]** %s", FormatTimestamp(cue.Start), text))
		} else {
			lines = append(lines, text)
		}
	}
	if timestamps {
		return strings.Join(lines, "\n\n")
	}
	return strings.Join(lines, "\n")
}

// FormatTimestamp renders MM:SS, or HH:MM:SS past the first hour.
func FormatTimestamp(d time.Duration) string {
	total := int(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// CaptionText fetches and formats captions for a video in one call.
func (s *Scraper) CaptionText(ctx context.Context, videoID, lang string, timestamps bool) (string, error) {
	if !models.IsVideoID(videoID) {
		return "", fmt.Errorf("invalid video ID %q", videoID)
	}
	cues, err := s.Captions(ctx, videoID, lang)
	if err != nil {
		return "", err
	}
	text := FormatCaptions(cues, timestamps)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: captions contain no text", ErrNoCaptions)
	}
	return text, nil
}
