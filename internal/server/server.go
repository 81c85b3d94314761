// Package server exposes the GitHub adapter, markdown preview and export
// pipeline as a JSON REST API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/andywolf/reqsync/internal/logging"
	"github.com/andywolf/reqsync/internal/requirement"
	"github.com/andywolf/reqsync/internal/security"
	"github.com/andywolf/reqsync/internal/store"
)

// Banner is the body served at the root path.
const Banner = "reqsync GitHub API server"

// Server routes REST calls to the GitHub adapter and the exporter.
type Server struct {
	adapter  Adapter
	exporter *requirement.Exporter
	store    *store.Store

	logger      zerolog.Logger
	limiter     *security.RateLimiter
	corsOrigins []string
	ids         *idGenerator

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithStore sets the store that exports and writes are published to.
func WithStore(st *store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithRateLimiter limits requests per client IP.
func WithRateLimiter(rl *security.RateLimiter) Option {
	return func(s *Server) {
		s.limiter = rl
	}
}

// WithCORSOrigins sets the allowed cross-origin callers. The default
// allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// New creates a Server.
func New(adapter Adapter, exporter *requirement.Exporter, opts ...Option) *Server {
	s := &Server{
		adapter:     adapter,
		exporter:    exporter,
		logger:      zerolog.Nop(),
		corsOrigins: []string{"*"},
		ids:         newIDGenerator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = store.New(store.WithLogger(s.logger))
	}

	mws := []middleware{
		recoverPanics(s.logger),
		requestID(s.logger, s.ids),
		accessLog(),
		cors(s.corsOrigins),
	}
	if s.limiter != nil {
		mws = append(mws, s.limiter.Middleware(security.IPKeyFunc, http.HandlerFunc(rateLimited)))
	}
	s.handler = chain(s.routes(), mws...)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Store returns the store the server publishes to.
func (s *Server) Store() *store.Store {
	return s.store
}

// ListenAndServe listens on addr and serves until ctx is done, then shuts
// down gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logging.StdLogger(s.logger),
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Dur("timeout", shutdownTimeout).Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "Too many requests", Message: "rate limit exceeded, retry later"})
}
