package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStaticTokenSource(t *testing.T) {
	tok, err := StaticTokenSource("ghp_example").Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "ghp_example" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	tok.SetAuthHeader(req)
	if got := req.Header.Get("Authorization"); got != "token ghp_example" {
		t.Errorf("Authorization = %q, want %q", got, "token ghp_example")
	}
}

func TestNewTokenExchanger(t *testing.T) {
	exchanger := NewTokenExchanger()
	if exchanger.baseURL != "https://api.github.com" {
		t.Errorf("expected default baseURL, got %s", exchanger.baseURL)
	}
	if exchanger.httpClient == nil {
		t.Error("expected http client, got nil")
	}
}

func TestNewTokenExchanger_WithOptions(t *testing.T) {
	customClient := &http.Client{Timeout: 60 * time.Second}

	exchanger := NewTokenExchanger(
		WithExchangeHTTPClient(customClient),
		WithExchangeBaseURL("https://ghe.example.com/api/v3/"),
	)

	if exchanger.httpClient != customClient {
		t.Error("expected custom http client")
	}
	if exchanger.baseURL != "https://ghe.example.com/api/v3" {
		t.Errorf("baseURL = %s", exchanger.baseURL)
	}
}

func TestExchangeToken_Success(t *testing.T) {
	expiresAt := time.Now().Add(1 * time.Hour).UTC().Truncate(time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/app/installations/12345/access_tokens" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-jwt" {
			t.Errorf("unexpected auth header: %s", auth)
		}
		if version := r.Header.Get("X-GitHub-Api-Version"); version != "2022-11-28" {
			t.Errorf("unexpected API version header: %s", version)
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"token":      "ghs_test_token_123",
			"expires_at": expiresAt.Format(time.RFC3339),
		})
	}))
	defer server.Close()

	exchanger := NewTokenExchanger(WithExchangeBaseURL(server.URL))
	token, err := exchanger.ExchangeToken(context.Background(), "test-jwt", 12345)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.Token != "ghs_test_token_123" {
		t.Errorf("expected token ghs_test_token_123, got %s", token.Token)
	}
	if !token.ExpiresAt.Equal(expiresAt) {
		t.Errorf("expected expires_at %v, got %v", expiresAt, token.ExpiresAt)
	}
}

func TestExchangeToken_Validation(t *testing.T) {
	exchanger := NewTokenExchanger()

	tests := []struct {
		name           string
		jwt            string
		installationID int64
		errContain     string
	}{
		{name: "empty JWT", jwt: "", installationID: 12345, errContain: "JWT cannot be empty"},
		{name: "zero installation ID", jwt: "test-jwt", installationID: 0, errContain: "installation ID must be positive"},
		{name: "negative installation ID", jwt: "test-jwt", installationID: -1, errContain: "installation ID must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := exchanger.ExchangeToken(context.Background(), tt.jwt, tt.installationID)
			if err == nil || !strings.Contains(err.Error(), tt.errContain) {
				t.Errorf("error = %v, want containing %q", err, tt.errContain)
			}
		})
	}
}

func TestExchangeToken_APIErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   map[string]interface{}
		errContain string
	}{
		{
			name:       "unauthorized",
			statusCode: http.StatusUnauthorized,
			response:   map[string]interface{}{"message": "A JSON web token could not be decoded"},
			errContain: "check JWT validity",
		},
		{
			name:       "forbidden",
			statusCode: http.StatusForbidden,
			response:   map[string]interface{}{"message": "Resource not accessible by integration"},
			errContain: "check App permissions",
		},
		{
			name:       "not found",
			statusCode: http.StatusNotFound,
			response:   map[string]interface{}{"message": "Integration not found"},
			errContain: "check installation ID",
		},
		{
			name:       "server error",
			statusCode: http.StatusInternalServerError,
			response:   map[string]interface{}{"message": "Internal server error"},
			errContain: "status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			exchanger := NewTokenExchanger(WithExchangeBaseURL(server.URL))
			token, err := exchanger.ExchangeToken(context.Background(), "test-jwt", 12345)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContain) {
				t.Errorf("expected error containing %q, got %q", tt.errContain, err.Error())
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Status != tt.statusCode {
				t.Errorf("expected *APIError with status %d, got %#v", tt.statusCode, err)
			}
			if token != nil {
				t.Error("expected nil token on error")
			}
		})
	}
}

func TestExchangeToken_InvalidResponse(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		errContain string
	}{
		{name: "not json", body: "not valid json", errContain: "failed to parse token response"},
		{name: "missing token", body: `{"expires_at":"2024-03-05T12:00:00Z"}`, errContain: "did not contain a token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			exchanger := NewTokenExchanger(WithExchangeBaseURL(server.URL))
			_, err := exchanger.ExchangeToken(context.Background(), "test-jwt", 12345)
			if err == nil || !strings.Contains(err.Error(), tt.errContain) {
				t.Errorf("error = %v, want containing %q", err, tt.errContain)
			}
		})
	}
}

func TestExchangeToken_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	exchanger := NewTokenExchanger(WithExchangeBaseURL(url))
	token, err := exchanger.ExchangeToken(context.Background(), "test-jwt", 12345)

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to make request") {
		t.Errorf("unexpected error: %v", err)
	}
	if token != nil {
		t.Error("expected nil token on error")
	}
}
