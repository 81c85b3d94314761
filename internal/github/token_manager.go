package github

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// TokenRefreshBuffer is the time before token expiration when a refresh should be triggered.
const TokenRefreshBuffer = 5 * time.Minute

// TokenManager supplies GitHub App installation tokens, refreshing them
// before they expire. It implements oauth2.TokenSource.
type TokenManager struct {
	mu sync.RWMutex

	installationID int64

	token     string
	expiresAt time.Time

	jwtGenerator   *JWTGenerator
	tokenExchanger *TokenExchanger

	nowFunc func() time.Time
}

// TokenManagerOption configures a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithNowFunc sets a custom time function for testing.
func WithNowFunc(fn func() time.Time) TokenManagerOption {
	return func(tm *TokenManager) {
		tm.nowFunc = fn
	}
}

// WithTokenExchanger sets a custom token exchanger.
func WithTokenExchanger(exchanger *TokenExchanger) TokenManagerOption {
	return func(tm *TokenManager) {
		tm.tokenExchanger = exchanger
	}
}

// NewTokenManager creates a new TokenManager with the given GitHub App credentials.
func NewTokenManager(appID, installationID int64, privateKey []byte, opts ...TokenManagerOption) (*TokenManager, error) {
	if installationID <= 0 {
		return nil, fmt.Errorf("installation ID must be positive")
	}
	if len(privateKey) == 0 {
		return nil, fmt.Errorf("private key cannot be empty")
	}

	// Parse the key now so a bad key fails at startup
	jwtGen, err := NewJWTGenerator(appID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT generator: %w", err)
	}

	tm := &TokenManager{
		installationID: installationID,
		jwtGenerator:   jwtGen,
		tokenExchanger: NewTokenExchanger(),
		nowFunc:        time.Now,
	}

	for _, opt := range opts {
		opt(tm)
	}

	return tm, nil
}

// Token returns a valid installation token, refreshing if necessary.
func (tm *TokenManager) Token() (*oauth2.Token, error) {
	tm.mu.RLock()
	if tm.isValidLocked() {
		tok := tm.oauthTokenLocked()
		tm.mu.RUnlock()
		return tok, nil
	}
	tm.mu.RUnlock()

	if _, err := tm.Refresh(context.Background()); err != nil {
		return nil, err
	}

	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.oauthTokenLocked(), nil
}

// Refresh forces a token refresh regardless of current token validity.
func (tm *TokenManager) Refresh(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	jwt, err := tm.jwtGenerator.GenerateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate JWT: %w", err)
	}

	installToken, err := tm.tokenExchanger.ExchangeToken(ctx, jwt, tm.installationID)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}

	tm.token = installToken.Token
	tm.expiresAt = installToken.ExpiresAt

	return tm.token, nil
}

// NeedsRefresh returns true if the token is missing, expired, or will expire soon.
func (tm *TokenManager) NeedsRefresh() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return !tm.isValidLocked()
}

// ExpiresAt returns the expiration time of the current token.
// Returns zero time if no token has been fetched.
func (tm *TokenManager) ExpiresAt() time.Time {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.expiresAt
}

// isValidLocked reports whether the token exists and outlives the refresh
// buffer (must hold at least RLock).
func (tm *TokenManager) isValidLocked() bool {
	if tm.token == "" {
		return false
	}
	return tm.expiresAt.After(tm.nowFunc().Add(TokenRefreshBuffer))
}

// oauthTokenLocked reports expiry early by the refresh buffer so callers
// caching the token refresh on the same schedule.
func (tm *TokenManager) oauthTokenLocked() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: tm.token,
		TokenType:   TokenType,
		Expiry:      tm.expiresAt.Add(-TokenRefreshBuffer),
	}
}
