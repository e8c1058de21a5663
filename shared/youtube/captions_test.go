package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"channel-digest/shared/logging"
	"channel-digest/shared/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

const legacyTrack = `<?xml version="1.0" encoding="utf-8" ?><transcript>` +
	`<text start="0.5" dur="1.2">Hello &amp;#39;world&amp;#39;</text>` +
	`<text start="1.7" dur="1.0">Hello &amp;#39;world&amp;#39;</text>` +
	`<text start="65.2" dur="2.0">second
line</text>` +
	`</transcript>`

func watchPage(tracksJSON string) string {
	return `<html><head><script>var other = {"a":1};</script>` +
		`<script>var ytInitialPlayerResponse = {"playabilityStatus":{"status":"OK"},` +
		`"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":` + tracksJSON + `}},` +
		`"videoDetails":{"title":"a } tricky \" title"}};var meta = {};</script></head><body></body></html>`
}

func newCaptionServer(t *testing.T, tracksJSON func(base string) string) (*httptest.Server, *int) {
	t.Helper()
	timedtextCalls := 0
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			if r.Header.Get("User-Agent") == "" {
				http.Error(w, "no agent", http.StatusForbidden)
				return
			}
			fmt.Fprint(w, watchPage(tracksJSON(srv.URL)))
		case "/api/timedtext":
			timedtextCalls++
			if r.URL.Query().Get("lang") != "en" || r.URL.Query().Get("kind") == "asr" {
				http.Error(w, "wrong track", http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, legacyTrack)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &timedtextCalls
}

func newTestScraper(srv *httptest.Server) *Scraper {
	return NewScraper(ScraperOptions{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Policy:     testPolicy,
		Logger:     logging.NewNop(),
	})
}

func TestCaptionsPrefersManualTrack(t *testing.T) {
	srv, calls := newCaptionServer(t, func(base string) string {
		return `[{"baseUrl":"` + base + `/api/timedtext?v=dQw4w9WgXcQ&lang=en&kind=asr","languageCode":"en","kind":"asr"},` +
			`{"baseUrl":"` + base + `/api/timedtext?v=dQw4w9WgXcQ&lang=en","languageCode":"en"}]`
	})

	cues, err := newTestScraper(srv).Captions(context.Background(), "dQw4w9WgXcQ", "en")
	require.NoError(t, err)
	require.Len(t, cues, 3)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, 500*time.Millisecond, cues[0].Start)
	assert.Equal(t, "Hello 'world'", cues[0].Text)

	text, err := newTestScraper(srv).CaptionText(context.Background(), "dQw4w9WgXcQ", "en", true)
	require.NoError(t, err)
	assert.Equal(t, "**[00:00]** Hello 'world'\n\n**[01:05]** second line", text)
}

func TestCaptionsNoTracks(t *testing.T) {
	srv, _ := newCaptionServer(t, func(string) string { return `[]` })

	_, err := newTestScraper(srv).Captions(context.Background(), "dQw4w9WgXcQ", "en")
	assert.True(t, errors.Is(err, ErrNoCaptions))
}

func TestCaptionsOnlyOtherLanguage(t *testing.T) {
	srv, calls := newCaptionServer(t, func(base string) string {
		return `[{"baseUrl":"` + base + `/api/timedtext?lang=de","languageCode":"de"}]`
	})

	_, err := newTestScraper(srv).Captions(context.Background(), "dQw4w9WgXcQ", "en")
	assert.ErrorIs(t, err, ErrNoCaptions)
	assert.Zero(t, *calls)
}

func TestCaptionsWatchPageMissingPlayer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>consent wall</body></html>")
	}))
	defer srv.Close()

	_, err := newTestScraper(srv).Captions(context.Background(), "dQw4w9WgXcQ", "en")
	assert.ErrorIs(t, err, ErrNoCaptions)
}

func TestCaptionsRetriesThrottledPage(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestScraper(srv).Captions(context.Background(), "dQw4w9WgXcQ", "en")
	var statusErr *retry.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, 2, attempts)
}

func TestPickTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "https://x/po?&exp=xpe", LanguageCode: "en"},
		{BaseURL: "https://x/asr", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "https://x/gb", LanguageCode: "en-GB"},
	}
	track, ok := pickTrack(tracks, "en")
	require.True(t, ok)
	assert.Equal(t, "https://x/asr", track.BaseURL)

	track, ok = pickTrack(tracks[2:], "en")
	require.True(t, ok)
	assert.Equal(t, "en-GB", track.LanguageCode)

	_, ok = pickTrack(tracks[:1], "en")
	assert.False(t, ok)
}

func TestParseTimedTextSrv3(t *testing.T) {
	data := `<timedtext format="3"><body>` +
		`<p t="1000" d="2000"><s>Hello</s><s t="500"> there</s></p>` +
		`<p t="3723000" d="900">fish &amp;amp; chips</p>` +
		`</body></timedtext>`

	cues, err := parseTimedText([]byte(data))
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.Equal(t, Cue{Start: time.Second, Text: "Hello there"}, cues[0])
	assert.Equal(t, "fish & chips", cues[1].Text)
	assert.Equal(t, "01:02:03", FormatTimestamp(cues[1].Start))
}

func TestParseTimedTextMalformed(t *testing.T) {
	_, err := parseTimedText([]byte("<transcript><text"))
	assert.Error(t, err)
}

func TestFormatCaptions(t *testing.T) {
	cues := []Cue{
		{Start: 0, Text: "Hello  there"},
		{Start: time.Second, Text: "Hello there"},
		{Start: 2 * time.Second, Text: "  "},
		{Start: 65 * time.Second, Text: "next\nline"},
		{Start: 3725 * time.Second, Text: "late"},
	}

	assert.Equal(t,
		"**[00:00]** Hello there\n\n**[01:05]** next line\n\n**[01:02:05]** late",
		FormatCaptions(cues, true))
	assert.Equal(t, "Hello there\nnext line\nlate", FormatCaptions(cues, false))
	assert.Empty(t, FormatCaptions(nil, true))
}

func TestExtractJSONObject(t *testing.T) {
	raw := extractJSONObject(` {"a":"}{\"","b":{"c":1}};rest`)
	assert.Equal(t, `{"a":"}{\"","b":{"c":1}}`, string(raw))
	assert.Nil(t, extractJSONObject(`{"open":`))
	assert.Nil(t, extractJSONObject(`null`))
}

func TestCleanCaption(t *testing.T) {
	assert.Equal(t, "a b c", CleanCaption(" a  \n b  c "))
	assert.Equal(t, "x y", CleanCaption("x\u00a0y"))
}
