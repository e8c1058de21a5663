package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/youtube/v3"
)

// ErrChannelNotFound means a channel reference resolved to nothing.
var ErrChannelNotFound = errors.New("channel not found")

// RefKind says how a channel reference identifies the channel.
type RefKind string

const (
	RefID       RefKind = "id"
	RefHandle   RefKind = "handle"
	RefUsername RefKind = "user"
	RefCustom   RefKind = "custom"
)

// ChannelRef is a normalized channel reference.
type ChannelRef struct {
	Kind  RefKind
	Value string
}

func (r ChannelRef) String() string {
	switch r.Kind {
	case RefHandle:
		return "@" + r.Value
	case RefID:
		return "channel/" + r.Value
	case RefUsername:
		return "user/" + r.Value
	default:
		return "c/" + r.Value
	}
}

var channelIDPattern = regexp.MustCompile(`^UC[0-9A-Za-z_-]{22}$`)

// ParseChannelRef accepts channel URLs in their @handle, /channel/, /c/ and /user/
// forms, as well as a bare handle or channel ID. Trailing tabs such as /videos
// are ignored.
func ParseChannelRef(input string) (ChannelRef, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return ChannelRef{}, errors.New("empty channel reference")
	}

	if strings.Contains(s, "youtube.com") || strings.HasPrefix(s, "/") {
		if !strings.Contains(s, "://") && !strings.HasPrefix(s, "/") {
			s = "https://" + s
		}
		u, err := url.Parse(s)
		if err != nil {
			return ChannelRef{}, fmt.Errorf("invalid channel URL %q: %w", input, err)
		}
		return refFromPath(input, u.Path)
	}

	if strings.HasPrefix(s, "@") {
		return handleRef(input, s[1:])
	}
	if channelIDPattern.MatchString(s) {
		return ChannelRef{Kind: RefID, Value: s}, nil
	}
	return handleRef(input, s)
}

func refFromPath(input, path string) (ChannelRef, error) {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return ChannelRef{}, fmt.Errorf("channel URL %q has no channel path", input)
	}

	head := parts[0]
	if strings.HasPrefix(head, "@") {
		return handleRef(input, head[1:])
	}
	if len(parts) < 2 {
		return ChannelRef{}, fmt.Errorf("unrecognized channel URL %q", input)
	}
	value, _ := url.PathUnescape(parts[1])
	switch head {
	case "channel":
		if !channelIDPattern.MatchString(value) {
			return ChannelRef{}, fmt.Errorf("invalid channel ID in %q", input)
		}
		return ChannelRef{Kind: RefID, Value: value}, nil
	case "user":
		return ChannelRef{Kind: RefUsername, Value: value}, nil
	case "c":
		return ChannelRef{Kind: RefCustom, Value: value}, nil
	}
	return ChannelRef{}, fmt.Errorf("unrecognized channel URL %q", input)
}

func handleRef(input, handle string) (ChannelRef, error) {
	if handle == "" || strings.ContainsAny(handle, " /?#") {
		return ChannelRef{}, fmt.Errorf("invalid channel handle in %q", input)
	}
	return ChannelRef{Kind: RefHandle, Value: handle}, nil
}

// Channel is a resolved channel with the playlist that holds all its uploads.
type Channel struct {
	ID                string
	Title             string
	UploadsPlaylistID string
}

// ResolveChannel looks the reference up through the Data API. Legacy /c/ names have
// no API lookup, so their channel page is scraped for the channel ID first.
func (c *Client) ResolveChannel(ctx context.Context, ref ChannelRef) (*Channel, error) {
	if ref.Kind == RefCustom {
		if c.scraper == nil {
			return nil, fmt.Errorf("cannot resolve %s without page access", ref)
		}
		id, err := c.scraper.ChannelIDFromPage(ctx, "/c/"+url.PathEscape(ref.Value))
		if err != nil {
			return nil, err
		}
		ref = ChannelRef{Kind: RefID, Value: id}
	}

	resp, err := call(ctx, c, func() (*youtube.ChannelListResponse, error) {
		req := c.service.Channels.List([]string{"snippet", "contentDetails"}).Context(ctx)
		switch ref.Kind {
		case RefID:
			req = req.Id(ref.Value)
		case RefHandle:
			req = req.ForHandle(ref.Value)
		case RefUsername:
			req = req.ForUsername(ref.Value)
		}
		return req.Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up channel %s: %w", ref, err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, ref)
	}

	item := resp.Items[0]
	ch := &Channel{ID: item.Id}
	if item.Snippet != nil {
		ch.Title = item.Snippet.Title
	}
	if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
		ch.UploadsPlaylistID = item.ContentDetails.RelatedPlaylists.Uploads
	}
	if ch.UploadsPlaylistID == "" {
		return nil, fmt.Errorf("channel %s has no uploads playlist", ch.ID)
	}
	c.logger.Info("resolved channel",
		slog.String("channel_id", ch.ID),
		slog.String("title", ch.Title))
	return ch, nil
}

// ChannelIDFromPage scrapes a channel page for its UC… identifier.
func (s *Scraper) ChannelIDFromPage(ctx context.Context, path string) (string, error) {
	doc, err := s.page(ctx, s.baseURL+path)
	if err != nil {
		return "", fmt.Errorf("channel page: %w", err)
	}
	if id := channelIDFromDocument(doc); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: no channel ID on %s", ErrChannelNotFound, path)
}

func channelIDFromDocument(doc *goquery.Document) string {
	for _, sel := range []string{`meta[itemprop="identifier"]`, `meta[itemprop="channelId"]`} {
		if id, ok := doc.Find(sel).First().Attr("content"); ok && channelIDPattern.MatchString(id) {
			return id
		}
	}
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if u, err := url.Parse(href); err == nil {
			if ref, err := refFromPath(href, u.Path); err == nil && ref.Kind == RefID {
				return ref.Value
			}
		}
	}
	return ""
}
