// Package gcp integrates reqsync with Google Cloud: GitHub tokens held in
// Secret Manager and export audit records written to Cloud Logging.
package gcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// SecretManagerClient wraps the GCP Secret Manager client
type SecretManagerClient struct {
	client    *secretmanager.Client
	projectID string
}

// SecretFetcher defines the interface for fetching secrets
type SecretFetcher interface {
	FetchSecret(ctx context.Context, secretPath string) (string, error)
	Close() error
}

// NewSecretManagerClient creates a new Secret Manager client. An empty
// projectID is resolved from the environment or the metadata server.
func NewSecretManagerClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*SecretManagerClient, error) {
	if projectID == "" {
		var err error
		projectID, err = getProjectID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get project ID: %w", err)
		}
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	return &SecretManagerClient{
		client:    client,
		projectID: projectID,
	}, nil
}

// getProjectID retrieves the GCP project ID from environment variable or metadata server
func getProjectID(ctx context.Context) (string, error) {
	for _, name := range []string{"GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT"} {
		if projectID := os.Getenv(name); projectID != "" {
			return projectID, nil
		}
	}

	// Works on Cloud Run, GCE and GKE
	return getProjectIDFromMetadata(ctx)
}

// metadataURL is a variable so tests can point it at a local server.
var metadataURL = "http://metadata.google.internal/computeMetadata/v1/project/project-id"

// getProjectIDFromMetadata fetches the project ID from GCP metadata server
func getProjectIDFromMetadata(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create metadata request: %w", err)
	}
	req.Header.Set("Metadata-Flavor", "Google")

	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch project ID from metadata server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metadata response: %w", err)
	}

	projectID := strings.TrimSpace(string(body))
	if projectID == "" {
		return "", fmt.Errorf("empty project ID from metadata server")
	}

	return projectID, nil
}

// FetchSecret retrieves a secret from GCP Secret Manager
// secretPath can be in one of the following formats:
// - projects/PROJECT_ID/secrets/SECRET_NAME/versions/VERSION
// - projects/PROJECT_ID/secrets/SECRET_NAME (defaults to latest)
// - SECRET_NAME (uses the client's project)
func (c *SecretManagerClient) FetchSecret(ctx context.Context, secretPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: normalizeSecretPath(c.projectID, secretPath),
	}

	result, err := c.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}

	return string(result.Payload.Data), nil
}

// normalizeSecretPath expands a secret name into a full version resource name
func normalizeSecretPath(projectID, secretPath string) string {
	if strings.HasPrefix(secretPath, "projects/") && strings.Contains(secretPath, "/versions/") {
		return secretPath
	}

	if strings.HasPrefix(secretPath, "projects/") && strings.Contains(secretPath, "/secrets/") {
		return secretPath + "/versions/latest"
	}

	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, path.Base(secretPath))
}

// Close closes the Secret Manager client
func (c *SecretManagerClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// SecretTokenSource returns a token source that reads a GitHub token from
// secretPath on first use and reuses it afterwards. Surrounding whitespace in
// the secret payload is ignored.
func SecretTokenSource(ctx context.Context, fetcher SecretFetcher, secretPath string, opts ...SecretTokenOption) oauth2.TokenSource {
	s := &secretTokenSource{ctx: ctx, fetcher: fetcher, path: secretPath}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SecretTokenOption configures SecretTokenSource.
type SecretTokenOption func(*secretTokenSource)

// WithTokenObserver calls fn with the token once it has been read, so it can
// be registered with a log sanitizer.
func WithTokenObserver(fn func(token string)) SecretTokenOption {
	return func(s *secretTokenSource) {
		s.observe = fn
	}
}

type secretTokenSource struct {
	ctx     context.Context
	fetcher SecretFetcher
	path    string
	observe func(string)

	mu    sync.Mutex
	token *oauth2.Token
}

func (s *secretTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil {
		return s.token, nil
	}

	value, err := s.fetcher.FetchSecret(s.ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch GitHub token secret: %w", err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("GitHub token secret %s is empty", s.path)
	}

	if s.observe != nil {
		s.observe(value)
	}
	s.token = &oauth2.Token{AccessToken: value, TokenType: "token"}
	return s.token, nil
}
