package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/andywolf/reqsync/internal/cloud/gcp"
	"github.com/andywolf/reqsync/internal/config"
	"github.com/andywolf/reqsync/internal/github"
	"github.com/andywolf/reqsync/internal/logging"
	"github.com/andywolf/reqsync/internal/security"
)

// loadConfig loads and validates the configuration from viper.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newSanitizer returns the log sanitizer for cfg with the configured GitHub
// token registered as a literal secret.
func newSanitizer(cfg *config.Config) *security.LogSanitizer {
	sanitizer := security.NewLogSanitizer()
	sanitizer.AddSecret(cfg.GitHub.Token)
	return sanitizer
}

// newLogger builds the process logger from cfg. Output passes through sanitizer.
func newLogger(cfg *config.Config, out io.Writer, sanitizer *security.LogSanitizer) (zerolog.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File: logging.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   true,
		},
	}, out, sanitizer)
}

// closers releases resources in reverse order of acquisition.
type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newTokenSource picks GitHub credentials in precedence order: a static
// token, a token stored in Secret Manager, then a GitHub App installation.
// It returns a nil source when nothing is configured. A token read from
// Secret Manager is registered with sanitizer.
func newTokenSource(ctx context.Context, cfg *config.Config, logger zerolog.Logger, sanitizer *security.LogSanitizer) (oauth2.TokenSource, closers, error) {
	gh := cfg.GitHub

	if gh.Token != "" {
		logger.Debug().Str("auth", "token").Msg("using static GitHub token")
		return github.StaticTokenSource(gh.Token), nil, nil
	}

	needSecrets := gh.TokenSecret != "" || gh.App.PrivateKeySecret != ""
	var (
		secrets *gcp.SecretManagerClient
		cleanup closers
	)
	if needSecrets {
		var err error
		secrets, err = gcp.NewSecretManagerClient(ctx, cfg.Cloud.Project)
		if err != nil {
			return nil, nil, err
		}
		cleanup = append(cleanup, secrets)
	}

	if gh.TokenSecret != "" {
		logger.Debug().Str("auth", "secret").Str("secret", gh.TokenSecret).Msg("using GitHub token from Secret Manager")
		return gcp.SecretTokenSource(ctx, secrets, gh.TokenSecret, gcp.WithTokenObserver(sanitizer.AddSecret)), cleanup, nil
	}

	if gh.App.Enabled() {
		key, err := appPrivateKey(ctx, gh.App, secrets)
		if err != nil {
			_ = cleanup.Close()
			return nil, nil, err
		}
		tm, err := github.NewTokenManager(gh.App.AppID, gh.App.InstallationID, key,
			github.WithTokenExchanger(github.NewTokenExchanger(github.WithExchangeBaseURL(gh.APIURL))))
		if err != nil {
			_ = cleanup.Close()
			return nil, nil, fmt.Errorf("failed to create GitHub App token manager: %w", err)
		}
		logger.Debug().Str("auth", "app").Int64("app_id", gh.App.AppID).Msg("using GitHub App installation token")
		return tm, cleanup, nil
	}

	return nil, cleanup, nil
}

func appPrivateKey(ctx context.Context, app config.AppConfig, secrets *gcp.SecretManagerClient) ([]byte, error) {
	if app.PrivateKeyFile != "" {
		key, err := os.ReadFile(app.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read GitHub App private key: %w", err)
		}
		return key, nil
	}
	key, err := secrets.FetchSecret(ctx, app.PrivateKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch GitHub App private key: %w", err)
	}
	return []byte(key), nil
}

// newGitHubClient builds the GitHub adapter from cfg.
func newGitHubClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger, sanitizer *security.LogSanitizer) (*github.Client, io.Closer, error) {
	ts, cleanup, err := newTokenSource(ctx, cfg, logger, sanitizer)
	if err != nil {
		return nil, nil, err
	}

	client, err := github.New(
		github.WithBaseURL(cfg.GitHub.APIURL),
		github.WithTokenSource(ts),
		github.WithRetryPolicy(github.RetryPolicy{
			MaxRetries: cfg.GitHub.Retry.Retries(),
			Backoff:    cfg.GitHub.Retry.Backoff,
			Timeout:    cfg.GitHub.Retry.Timeout,
		}),
		github.WithLogger(logging.Component(logger, "github")),
	)
	if err != nil {
		_ = cleanup.Close()
		return nil, nil, err
	}
	if !client.HasToken() {
		logger.Warn().Msg("no GitHub credentials configured; only public reads will work")
	}
	return client, cleanup, nil
}
