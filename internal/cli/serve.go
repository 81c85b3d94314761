package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andywolf/reqsync/internal/cloud/gcp"
	"github.com/andywolf/reqsync/internal/config"
	"github.com/andywolf/reqsync/internal/events"
	"github.com/andywolf/reqsync/internal/logging"
	"github.com/andywolf/reqsync/internal/requirement"
	"github.com/andywolf/reqsync/internal/security"
	"github.com/andywolf/reqsync/internal/server"
	"github.com/andywolf/reqsync/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	Long: `Run the reqsync REST API server.

The server proxies the GitHub Issues API, renders markdown previews and
exports issues to files below the configured base path. Changes to the
organization and log level in the config file apply without a restart.

Example:
  reqsync serve --port 3006`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", config.DefaultPort, "Port to listen on")
	serveCmd.Flags().String("base-path", "", "Root directory exports are written under")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("export.base_path", serveCmd.Flags().Lookup("base-path"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sanitizer := newSanitizer(cfg)
	logger, logCloser, err := newLogger(cfg, os.Stderr, sanitizer)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logCloser.Close()

	gh, ghCloser, err := newGitHubClient(ctx, cfg, logger, sanitizer)
	if err != nil {
		return err
	}
	defer ghCloser.Close()

	st := store.New(store.WithLogger(logging.Component(logger, "store")))
	events.Organization.Set(st, cfg.GitHub.Organization)
	events.LogLevel.Set(st, cfg.Log.Level)
	if cfg.GitHub.Organization == "" {
		logger.Warn().Msg("github.organization is not set; the config route will fail")
	}

	recorder, err := newRecorder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	recorder.Attach(st)
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close export sinks")
		}
	}()

	exporter := requirement.NewExporter(gh,
		requirement.WithBasePath(cfg.Export.BasePath),
		requirement.WithDefaultDestination(cfg.Export.Destination),
		requirement.WithDefaultComments(cfg.Export.Comments()),
		requirement.WithExportLogger(logging.Component(logger, "export")),
	)

	opts := []server.Option{
		server.WithLogger(logging.Component(logger, "http")),
		server.WithStore(st),
		server.WithCORSOrigins(cfg.Server.CORSOrigins),
	}
	if cfg.Server.RateLimit > 0 {
		opts = append(opts, server.WithRateLimiter(security.NewRateLimiter(cfg.Server.RateLimit, time.Minute)))
	}
	srv := server.New(server.GitHubAdapter(gh), exporter, opts...)

	watchConfig(st, logger)

	logger.Info().
		Int("port", cfg.Server.Port).
		Str("base_path", cfg.Export.BasePath).
		Str("organization", cfg.GitHub.Organization).
		Bool("authenticated", gh.HasToken()).
		Msg("reqsync server configured")

	addr := net.JoinHostPort("", strconv.Itoa(cfg.Server.Port))
	return srv.ListenAndServe(ctx, addr, cfg.Server.ShutdownTimeout)
}

// newRecorder creates the export recorder with the configured sinks.
func newRecorder(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*events.Recorder, error) {
	var sinks []events.Sink

	if cfg.Export.AuditFile != "" {
		fs, err := events.NewFileSink(cfg.Export.AuditFile)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", fs.Path()).Msg("recording exports to file")
		sinks = append(sinks, fs)
	}

	if cfg.Cloud.AuditLog != "" {
		cs, err := gcp.NewAuditSink(ctx, cfg.Cloud.Project, cfg.Cloud.AuditLog)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, err
		}
		logger.Info().Str("project", cfg.Cloud.Project).Str("log", cfg.Cloud.AuditLog).Msg("recording exports to Cloud Logging")
		sinks = append(sinks, cs)
	}

	return events.NewRecorder(logging.Component(logger, "events"), sinks...), nil
}

// watchConfig republishes the organization and log level when the config
// file changes. Other settings need a restart.
func watchConfig(st *store.Store, logger zerolog.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		applyConfigChange(st, logger, e)
	})
	viper.WatchConfig()
	logger.Info().Str("file", viper.ConfigFileUsed()).Msg("watching config file")
}

func applyConfigChange(st *store.Store, logger zerolog.Logger, e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Str("file", e.Name).Msg("failed to reload config")
		return
	}

	if org, _ := events.Organization.Get(st); org != cfg.GitHub.Organization {
		events.Organization.Set(st, cfg.GitHub.Organization)
		logger.Info().Str("organization", cfg.GitHub.Organization).Msg("organization changed")
	}

	if level, _ := events.LogLevel.Get(st); level != cfg.Log.Level {
		if err := logging.SetLevel(cfg.Log.Level); err != nil {
			logger.Error().Err(err).Msg("ignoring invalid log level")
			return
		}
		events.LogLevel.Set(st, cfg.Log.Level)
		logger.Info().Str("level", cfg.Log.Level).Msg("log level changed")
	}
}
