package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"channel-digest/shared/logging"
	"channel-digest/shared/retry"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

func TestTokenSaver(t *testing.T) {
	tempDir := t.TempDir()
	tokenFile := filepath.Join(tempDir, "test_token.json")

	originalToken := &oauth2.Token{
		AccessToken:  "original-access-token",
		RefreshToken: "test-refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	}
	if err := saveToken(tokenFile, originalToken); err != nil {
		t.Fatalf("Failed to save original token: %v", err)
	}

	ts := &tokenSaver{
		config:    &oauth2.Config{ClientID: "id", ClientSecret: "secret"},
		token:     originalToken,
		tokenFile: tokenFile,
		logger:    logging.NewNop(),
	}

	// A still-valid token is returned without a refresh round trip.
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if tok.AccessToken != originalToken.AccessToken {
		t.Errorf("Access token mismatch: got %s, want %s", tok.AccessToken, originalToken.AccessToken)
	}
}

func TestGetToken(t *testing.T) {
	tempDir := t.TempDir()
	tokenFile := filepath.Join(tempDir, "test_token.json")
	logger := logging.NewNop()

	// No DeviceAuthURL, so the device flow can never start.
	oauthConfig := &oauth2.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	t.Run("LoadExistingValidToken", func(t *testing.T) {
		validToken := &oauth2.Token{
			AccessToken:  "valid-access-token",
			RefreshToken: "valid-refresh-token",
			Expiry:       time.Now().Add(time.Hour),
		}
		if err := saveToken(tokenFile, validToken); err != nil {
			t.Fatalf("Failed to save token: %v", err)
		}

		token, err := getToken(context.Background(), oauthConfig, tokenFile, logger)
		if err != nil {
			t.Fatalf("Failed to get token: %v", err)
		}
		if token.AccessToken != validToken.AccessToken {
			t.Errorf("Access token mismatch: got %s, want %s", token.AccessToken, validToken.AccessToken)
		}
	})

	t.Run("LoadExpiredTokenWithRefresh", func(t *testing.T) {
		expiredToken := &oauth2.Token{
			AccessToken:  "expired-access-token",
			RefreshToken: "valid-refresh-token",
			Expiry:       time.Now().Add(-time.Hour),
		}
		if err := saveToken(tokenFile, expiredToken); err != nil {
			t.Fatalf("Failed to save token: %v", err)
		}

		token, err := getToken(context.Background(), oauthConfig, tokenFile, logger)
		if err != nil {
			t.Fatalf("Failed to get token: %v", err)
		}
		if token.RefreshToken != expiredToken.RefreshToken {
			t.Errorf("Refresh token mismatch: got %s, want %s", token.RefreshToken, expiredToken.RefreshToken)
		}
	})

	t.Run("NoTokenFile", func(t *testing.T) {
		os.Remove(tokenFile)

		_, err := getToken(context.Background(), oauthConfig, tokenFile, logger)
		if err == nil {
			t.Error("Expected error when no token file exists and the device flow cannot start")
		}
	})
}

func TestTokenFromFile(t *testing.T) {
	tempDir := t.TempDir()
	tokenFile := filepath.Join(tempDir, "test_token.json")

	t.Run("ValidTokenFile", func(t *testing.T) {
		testToken := &oauth2.Token{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(time.Hour),
		}
		data, _ := json.Marshal(testToken)
		if err := os.WriteFile(tokenFile, data, 0600); err != nil {
			t.Fatalf("Failed to write token file: %v", err)
		}

		token, err := tokenFromFile(tokenFile)
		if err != nil {
			t.Fatalf("Failed to read token from file: %v", err)
		}
		if token.AccessToken != testToken.AccessToken {
			t.Errorf("Access token mismatch: got %s, want %s", token.AccessToken, testToken.AccessToken)
		}
		if token.RefreshToken != testToken.RefreshToken {
			t.Errorf("Refresh token mismatch: got %s, want %s", token.RefreshToken, testToken.RefreshToken)
		}
	})

	t.Run("NonExistentFile", func(t *testing.T) {
		if _, err := tokenFromFile(filepath.Join(tempDir, "nonexistent.json")); err == nil {
			t.Error("Expected error for non-existent file")
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		if err := os.WriteFile(tokenFile, []byte("invalid json"), 0600); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		if _, err := tokenFromFile(tokenFile); err == nil {
			t.Error("Expected error for invalid JSON")
		}
	})
}

func TestSaveTokenCreatesDirectory(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "nested", "dir", "token.json")
	testToken := &oauth2.Token{AccessToken: "a", RefreshToken: "r"}

	if err := saveToken(tokenFile, testToken); err != nil {
		t.Fatalf("Failed to save token: %v", err)
	}
	info, err := os.Stat(tokenFile)
	if err != nil {
		t.Fatalf("Token file was not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("Token file permissions: got %o, want 600", perm)
	}
}

func TestParseDurationSeconds(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"PT4M13S", 253},
		{"PT1H2M3S", 3723},
		{"PT45S", 45},
		{"PT10M", 600},
		{"PT2H", 7200},
		{"P1DT1S", 86401},
		{"P0D", 0},
		{"PT", 0},
		{"", 0},
		{"invalid", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseDurationSeconds(tt.input); got != tt.expected {
				t.Errorf("parseDurationSeconds(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsTransientAPI(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}, true},
		{"quota exhausted", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}}, false},
		{"server error", fmt.Errorf("list: %w", &googleapi.Error{Code: 503}), true},
		{"not found", &googleapi.Error{Code: 404}, false},
		{"scrape throttled", &retry.StatusError{StatusCode: 429}, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransientAPI(tt.err); got != tt.want {
				t.Errorf("isTransientAPI() = %v, want %v", got, tt.want)
			}
		})
	}
}
