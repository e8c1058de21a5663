package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"channel-digest/shared/config"
	"channel-digest/shared/retry"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Client wraps the YouTube Data API for channel listing.
type Client struct {
	service *youtube.Service
	scraper *Scraper
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *slog.Logger
}

// NewClient authenticates with an API key when one is configured and otherwise
// with OAuth, running the device flow once and persisting the refreshing token.
func NewClient(ctx context.Context, cfg *config.Config, scraper *Scraper, logger *slog.Logger) (*Client, error) {
	if err := cfg.RequireYouTube(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "youtube"))

	var opts []option.ClientOption
	if cfg.YouTube.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.YouTube.APIKey))
	} else {
		// Create OAuth2 config for the device authorization flow.
		oauthConfig := &oauth2.Config{
			ClientID:     cfg.YouTube.ClientID,
			ClientSecret: cfg.YouTube.ClientSecret,
			Scopes:       []string{youtube.YoutubeReadonlyScope},
			Endpoint:     google.Endpoint,
		}

		token, err := getToken(ctx, oauthConfig, cfg.YouTube.TokenFile, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to get OAuth token: %w", err)
		}

		tokenSource := &tokenSaver{
			config:    oauthConfig,
			token:     token,
			tokenFile: cfg.YouTube.TokenFile,
			logger:    logger,
		}
		opts = append(opts, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	}

	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return newClientWithService(service, scraper, cfg.YouTube.RequestsPerSecond,
		retry.DefaultPolicy.WithAttempts(cfg.Pipeline.MaxAttempts), logger), nil
}

func newClientWithService(service *youtube.Service, scraper *Scraper, rps float64, policy retry.Policy, logger *slog.Logger) *Client {
	return &Client{
		service: service,
		scraper: scraper,
		limiter: newLimiter(rps),
		policy:  policy,
		logger:  logger,
	}
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// call paces and retries one API request.
func call[T any](ctx context.Context, c *Client, do func() (T, error)) (T, error) {
	return retry.Do(ctx, c.policy, c.logger, isTransientAPI, func() (T, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
		return do()
	})
}

// isTransientAPI treats per-user rate limits as transient and daily quota
// exhaustion as permanent.
func isTransientAPI(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		for _, item := range gErr.Errors {
			switch item.Reason {
			case "rateLimitExceeded", "userRateLimitExceeded":
				return true
			case "quotaExceeded", "dailyLimitExceeded":
				return false
			}
		}
		return retry.TransientStatus(gErr.Code)
	}
	return retry.IsTransient(err)
}

// tokenSaver wraps an oauth2.TokenSource to automatically save refreshed tokens.
// It intercepts token refresh operations and persists the new token to disk,
// ensuring that refreshed tokens survive application restarts.
type tokenSaver struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenFile string
	logger    *slog.Logger
	mu        sync.Mutex // Protects concurrent token refresh operations
}

// Token implements oauth2.TokenSource interface.
func (ts *tokenSaver) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	// Get the token (this will refresh if needed)
	newToken, err := ts.config.TokenSource(context.Background(), ts.token).Token()
	if err != nil {
		return nil, err
	}

	if newToken.AccessToken != ts.token.AccessToken {
		ts.token = newToken
		if err := saveToken(ts.tokenFile, newToken); err != nil {
			ts.logWarn("failed to save refreshed token", err)
		}
	}

	return newToken, nil
}

func (ts *tokenSaver) logWarn(msg string, err error) {
	if ts.logger != nil {
		ts.logger.Warn(msg, slog.String("token_file", ts.tokenFile), slog.String("error", err.Error()))
	}
}

// getToken retrieves an OAuth2 token from disk or initiates the device flow.
// A stored token with a refresh token is kept even when expired, since the
// tokenSaver refreshes it on first use.
func getToken(ctx context.Context, config *oauth2.Config, tokenFile string, logger *slog.Logger) (*oauth2.Token, error) {
	tok, err := tokenFromFile(tokenFile)
	if err == nil {
		if tok.RefreshToken != "" {
			logger.Debug("loaded token from file", slog.Time("expires", tok.Expiry))
			return tok, nil
		}
		if tok.Valid() {
			return tok, nil
		}
	}

	logger.Info("requesting new OAuth token")
	tok, err = getTokenWithDeviceFlow(ctx, config)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			logger.Error("device authorization response failed",
				slog.String("status", retrieveErr.Response.Status),
				slog.String("body", strings.TrimSpace(string(retrieveErr.Body))))
		}
		return nil, fmt.Errorf("device authorization failed: %w (ensure the OAuth client type is 'TVs and Limited Input devices' and the YouTube Data API v3 is enabled)", err)
	}

	if err := saveToken(tokenFile, tok); err != nil {
		logger.Warn("failed to save token", slog.String("error", err.Error()))
	}
	return tok, nil
}

func getTokenWithDeviceFlow(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	resp, err := config.DeviceAuth(ctx, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("unable to start device authorization: %w", err)
	}

	out := os.Stderr
	fmt.Fprintf(out, "\n%s\n", strings.Repeat("=", 80))
	fmt.Fprintf(out, "YOUTUBE DEVICE AUTHORIZATION REQUIRED\n")
	fmt.Fprintf(out, "%s\n", strings.Repeat("=", 80))
	fmt.Fprintf(out, "1. Visit %s in your browser (any device works).\n", resp.VerificationURI)
	fmt.Fprintf(out, "2. Enter this code when prompted: %s\n\n", resp.UserCode)
	if completeURL := strings.TrimSpace(resp.VerificationURIComplete); completeURL != "" {
		fmt.Fprintf(out, "   Or open directly: %s\n\n", completeURL)
	}
	fmt.Fprintf(out, "Waiting for authorization to complete... (Ctrl+C to cancel)\n")
	fmt.Fprintf(out, "%s\n", strings.Repeat("-", 80))

	tok, err := config.DeviceAccessToken(ctx, resp, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("device authorization did not complete: %w", err)
	}

	fmt.Fprintf(out, "\nAuthorization successful.\n%s\n\n", strings.Repeat("=", 80))
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("unable to create token directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode oauth token: %w", err)
	}
	return nil
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseDurationSeconds converts an ISO 8601 duration such as PT1H2M3S.
func parseDurationSeconds(duration string) int {
	if duration == "" {
		return 0
	}
	matches := isoDurationPattern.FindStringSubmatch(duration)
	if matches == nil {
		return 0
	}

	var totalSeconds int
	for i, unit := range []int{86400, 3600, 60, 1} {
		if matches[i+1] == "" {
			continue
		}
		if n, err := strconv.Atoi(matches[i+1]); err == nil {
			totalSeconds += n * unit
		}
	}
	return totalSeconds
}
