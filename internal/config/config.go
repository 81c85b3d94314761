package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andywolf/reqsync/internal/github"
	"github.com/andywolf/reqsync/internal/logging"
	"github.com/andywolf/reqsync/internal/security"
)

// EnvPrefix prefixes every reqsync environment variable.
const EnvPrefix = "REQSYNC"

// Defaults
const (
	DefaultPort        = 3006
	DefaultAPIURL      = "https://api.github.com"
	DefaultDestination = "docs/requirements"
	DefaultBasePath    = "."
	DefaultMaxRetries  = 2
	DefaultBackoff     = 250 * time.Millisecond
	DefaultTimeout     = 30 * time.Second
)

// Config represents the full reqsync configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	GitHub GitHubConfig `mapstructure:"github"`
	Export ExportConfig `mapstructure:"export"`
	Log    LogConfig    `mapstructure:"log"`
	Cloud  CloudConfig  `mapstructure:"cloud"`
	Client ClientConfig `mapstructure:"client"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RateLimit       int           `mapstructure:"rate_limit"` // requests per minute per client, 0 disables
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GitHubConfig contains upstream API and authentication settings
type GitHubConfig struct {
	Token        string      `mapstructure:"token"`
	TokenSecret  string      `mapstructure:"token_secret"` // Secret Manager path holding a token
	Organization string      `mapstructure:"organization"`
	APIURL       string      `mapstructure:"api_url"`
	App          AppConfig   `mapstructure:"app"`
	Retry        RetryConfig `mapstructure:"retry"`
}

// AppConfig contains GitHub App authentication settings
type AppConfig struct {
	AppID            int64  `mapstructure:"app_id"`
	InstallationID   int64  `mapstructure:"installation_id"`
	PrivateKeySecret string `mapstructure:"private_key_secret"`
	PrivateKeyFile   string `mapstructure:"private_key_file"`
}

// RetryConfig controls retries and the per-call timeout for GitHub requests
type RetryConfig struct {
	MaxRetries *int          `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ExportConfig contains markdown export settings
type ExportConfig struct {
	BasePath        string `mapstructure:"base_path"`
	Destination     string `mapstructure:"destination"`
	IncludeComments *bool  `mapstructure:"include_comments"`
	AuditFile       string `mapstructure:"audit_file"` // JSONL export record log, empty disables
}

// LogConfig contains logging settings
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// CloudConfig contains optional GCP integration settings
type CloudConfig struct {
	Project  string `mapstructure:"project"`   // GCP project ID
	AuditLog string `mapstructure:"audit_log"` // Cloud Logging log name for export records, empty disables
}

// ClientConfig contains settings for CLI commands that call a running server
type ClientConfig struct {
	Server string `mapstructure:"server"` // server URL, empty calls GitHub directly
}

// envBindings maps config keys to the environment variables read for them,
// in precedence order.
var envBindings = map[string][]string{
	"server.port":         {EnvPrefix + "_SERVER_PORT", "PORT"},
	"github.token":        {EnvPrefix + "_GITHUB_TOKEN", "GITHUB_TOKEN"},
	"github.organization": {EnvPrefix + "_GITHUB_ORGANIZATION", "GITHUB_ORG", "GITHUB_ORGANIZATION"},
	"github.api_url":      {EnvPrefix + "_GITHUB_API_URL", "GITHUB_API_URL"},
	"export.base_path":    {EnvPrefix + "_EXPORT_BASE_PATH", "BASE_PATH", "REPOS_DIR"},
	"log.level":           {EnvPrefix + "_LOG_LEVEL", "LOG_LEVEL"},
	"client.server":       {EnvPrefix + "_SERVER"},
}

// prefixedKeys are bound to REQSYNC_<KEY> so they unmarshal from the
// environment without a config file.
var prefixedKeys = []string{
	"server.rate_limit",
	"server.cors_origins",
	"server.shutdown_timeout",
	"github.token_secret",
	"github.app.app_id",
	"github.app.installation_id",
	"github.app.private_key_secret",
	"github.app.private_key_file",
	"github.retry.max_retries",
	"github.retry.backoff",
	"github.retry.timeout",
	"export.destination",
	"export.include_comments",
	"export.audit_file",
	"log.format",
	"log.file",
	"log.max_size_mb",
	"log.max_backups",
	"log.max_age_days",
	"cloud.project",
	"cloud.audit_log",
}

// BindEnv configures v to read reqsync settings from the environment,
// including the unprefixed variable names used by existing deployments.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	for _, key := range prefixedKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// LoadDotEnv loads .env and then .env.local from dir into the process
// environment. Variables that are already set are never overwritten, and
// missing files are skipped.
func LoadDotEnv(dir string) error {
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(dir, name)
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load loads configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from file and environment settings held by v
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}

	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}

	if cfg.GitHub.APIURL == "" {
		cfg.GitHub.APIURL = DefaultAPIURL
	}

	if cfg.GitHub.Retry.MaxRetries == nil {
		n := DefaultMaxRetries
		cfg.GitHub.Retry.MaxRetries = &n
	}

	if cfg.GitHub.Retry.Backoff == 0 {
		cfg.GitHub.Retry.Backoff = DefaultBackoff
	}

	if cfg.GitHub.Retry.Timeout == 0 {
		cfg.GitHub.Retry.Timeout = DefaultTimeout
	}

	if cfg.Export.BasePath == "" {
		cfg.Export.BasePath = DefaultBasePath
	}

	if cfg.Export.Destination == "" {
		cfg.Export.Destination = DefaultDestination
	}

	if cfg.Export.IncludeComments == nil {
		include := true
		cfg.Export.IncludeComments = &include
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Log.Format == "" {
		cfg.Log.Format = logging.FormatJSON
	}

	if cfg.Log.File != "" {
		if cfg.Log.MaxSizeMB == 0 {
			cfg.Log.MaxSizeMB = 10
		}
		if cfg.Log.MaxBackups == 0 {
			cfg.Log.MaxBackups = 5
		}
		if cfg.Log.MaxAgeDays == 0 {
			cfg.Log.MaxAgeDays = 30
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server rate_limit must not be negative")
	}

	u, err := url.Parse(c.GitHub.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid github api_url: %q", c.GitHub.APIURL)
	}

	if n := c.GitHub.Retry.MaxRetries; n != nil && (*n < 0 || *n > github.MaxRetries) {
		return fmt.Errorf("github retry max_retries must be 0-%d, got %d", github.MaxRetries, *n)
	}

	if c.GitHub.Retry.Backoff < 0 {
		return fmt.Errorf("github retry backoff must not be negative")
	}

	if c.GitHub.Retry.Timeout <= 0 {
		return fmt.Errorf("github retry timeout must be positive")
	}

	if err := c.GitHub.App.validate(); err != nil {
		return err
	}

	if err := security.ValidateDestination(c.Export.Destination); err != nil {
		return fmt.Errorf("invalid export destination: %w", err)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Log.Format {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Log.Format)
	}

	if c.Client.Server != "" {
		u, err := url.Parse(c.Client.Server)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid client server URL: %q", c.Client.Server)
		}
	}

	if c.Cloud.AuditLog != "" && c.Cloud.Project == "" {
		return fmt.Errorf("cloud project is required when cloud audit_log is set")
	}

	return nil
}

// Enabled reports whether any GitHub App setting is present.
func (a AppConfig) Enabled() bool {
	return a.AppID != 0 || a.InstallationID != 0 || a.PrivateKeySecret != "" || a.PrivateKeyFile != ""
}

func (a AppConfig) validate() error {
	if !a.Enabled() {
		return nil
	}
	if a.AppID == 0 {
		return fmt.Errorf("github app_id is required for GitHub App authentication")
	}
	if a.InstallationID == 0 {
		return fmt.Errorf("github installation_id is required for GitHub App authentication")
	}
	if a.PrivateKeySecret == "" && a.PrivateKeyFile == "" {
		return fmt.Errorf("github private_key_secret or private_key_file is required for GitHub App authentication")
	}
	if a.PrivateKeySecret != "" && a.PrivateKeyFile != "" {
		return fmt.Errorf("github private_key_secret and private_key_file are mutually exclusive")
	}
	return nil
}

// Retries returns the configured retry count, or the default when unset.
func (r RetryConfig) Retries() int {
	if r.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *r.MaxRetries
}

// Comments reports whether exports include comments by default.
func (e ExportConfig) Comments() bool {
	return e.IncludeComments == nil || *e.IncludeComments
}
