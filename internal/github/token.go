package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenType is the Authorization scheme GitHub accepts for PATs and
// installation tokens.
const TokenType = "token"

// StaticTokenSource returns a token source for a fixed token.
func StaticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: TokenType})
}

// InstallationToken represents a GitHub App installation access token.
type InstallationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenExchanger exchanges GitHub App JWTs for installation access tokens.
type TokenExchanger struct {
	httpClient *http.Client
	baseURL    string
}

// TokenExchangerOption configures a TokenExchanger.
type TokenExchangerOption func(*TokenExchanger)

// WithExchangeHTTPClient sets a custom HTTP client for the TokenExchanger.
func WithExchangeHTTPClient(client *http.Client) TokenExchangerOption {
	return func(t *TokenExchanger) {
		t.httpClient = client
	}
}

// WithExchangeBaseURL sets the GitHub API base URL used for exchanges.
func WithExchangeBaseURL(url string) TokenExchangerOption {
	return func(t *TokenExchanger) {
		t.baseURL = strings.TrimRight(url, "/")
	}
}

// NewTokenExchanger creates a new TokenExchanger with the given options.
func NewTokenExchanger(opts ...TokenExchangerOption) *TokenExchanger {
	t := &TokenExchanger{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// ExchangeToken exchanges a GitHub App JWT for an installation access token.
// The returned token is valid for 1 hour.
func (t *TokenExchanger) ExchangeToken(ctx context.Context, jwt string, installationID int64) (*InstallationToken, error) {
	if jwt == "" {
		return nil, fmt.Errorf("JWT cannot be empty")
	}
	if installationID <= 0 {
		return nil, fmt.Errorf("installation ID must be positive")
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", t.baseURL, installationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+jwt)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return nil, parseExchangeError(resp.StatusCode, body)
	}

	var token InstallationToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.Token == "" {
		return nil, fmt.Errorf("token response did not contain a token")
	}

	return &token, nil
}

// parseExchangeError turns a failed exchange response into an *APIError.
func parseExchangeError(statusCode int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	message := strings.ToLower(http.StatusText(statusCode))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		message = payload.Message
	}

	switch statusCode {
	case http.StatusUnauthorized:
		message += " (check JWT validity and expiration)"
	case http.StatusForbidden:
		message += " (check App permissions)"
	case http.StatusNotFound:
		message += " (check installation ID)"
	}

	return &APIError{Op: "exchange installation token", Owner: "app", Repo: "installation", Status: statusCode, Message: message}
}
