package youtube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"channel-digest/shared/config"
	"channel-digest/shared/retry"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://www.youtube.com"

	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxPageBytes = 6 << 20
	maxXMLBytes  = 4 << 20
)

// Scraper fetches public YouTube pages that the Data API does not cover.
type Scraper struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *slog.Logger
}

type ScraperOptions struct {
	BaseURL           string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Policy            retry.Policy
	Logger            *slog.Logger
}

// ScraperOptionsFromConfig derives scraper settings from the loaded configuration.
func ScraperOptionsFromConfig(cfg *config.Config, logger *slog.Logger) ScraperOptions {
	return ScraperOptions{
		RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		Policy:            retry.DefaultPolicy.WithAttempts(cfg.Pipeline.MaxAttempts),
		Logger:            logger,
	}
}

func NewScraper(opts ScraperOptions) *Scraper {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scraper{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
		limiter: newLimiter(opts.RequestsPerSecond),
		policy:  opts.Policy,
		logger:  opts.Logger.With(slog.String("component", "scraper")),
	}
}

// fetch GETs a URL with pacing and retries. Non-200 responses become *retry.StatusError.
func (s *Scraper) fetch(ctx context.Context, url string, limit int64) ([]byte, error) {
	return retry.Do(ctx, s.policy, s.logger, nil, func() ([]byte, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		// Skip the EU consent interstitial.
		req.Header.Set("Cookie", "CONSENT=YES+1")

		resp, err := s.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			return nil, &retry.StatusError{StatusCode: resp.StatusCode, URL: url}
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", url, err)
		}
		return body, nil
	})
}

// page fetches and parses an HTML page.
func (s *Scraper) page(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := s.fetch(ctx, url, maxPageBytes)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}
