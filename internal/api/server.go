package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/serpscan/internal/config"
	"github.com/nao1215/serpscan/internal/database"
	"github.com/nao1215/serpscan/internal/pipeline"
)

// shutdownTimeout bounds how long in-flight requests may run after Run's
// context is cancelled. A synchronous crawl can take tens of seconds.
const shutdownTimeout = 30 * time.Second

// Server wraps the Fiber app that serves the trigger and read API.
//
// Design decision: Crawls triggered over HTTP run synchronously inside the
// request and go through the same pipeline.Crawler as the CLI and the
// scheduler, so every trigger surface produces identical runs.
type Server struct {
	// App is the underlying Fiber application. Exposed for app.Test in tests.
	App *fiber.App

	cfg      *config.Config
	store    database.Store
	crawler  pipeline.Crawler
	gatherer prometheus.Gatherer
	storage  fiber.Storage
	access   io.Writer
	version  string
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the registry served on /metrics.
// Defaults to prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLimiterStorage shares crawl trigger limiter state through storage,
// typically Redis when several replicas serve the API.
func WithLimiterStorage(storage fiber.Storage) Option {
	return func(s *Server) {
		s.storage = storage
	}
}

// WithAccessLog sets where request access lines are written.
// Defaults to os.Stdout.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) {
		s.access = w
	}
}

// WithVersion sets the version reported by /healthz.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithLogger sets the logger for handler errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a server with middleware and routes registered.
func New(cfg *config.Config, store database.Store, crawler pipeline.Crawler, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		crawler:  crawler,
		gatherer: prometheus.DefaultGatherer,
		access:   os.Stdout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.App = fiber.New(fiber.Config{
		AppName:      config.AppName,
		ErrorHandler: s.handleError,
	})

	// Global middleware
	s.App.Use(recover.New())
	s.App.Use(logger.New(logger.Config{
		Stream: s.access,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/healthz" || c.Path() == "/metrics"
		},
	}))

	s.registerRoutes()
	return s
}

// handleError renders errors that escaped a handler, including unknown
// routes, in the JSON envelope.
func (s *Server) handleError(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}

	return jsonError(c, code, message)
}

// Run serves on the configured listen address until ctx is cancelled,
// then shuts down gracefully. It fits an errgroup next to the scheduler.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.App.Listen(s.cfg.ListenAddr, fiber.ListenConfig{
			DisableStartupMessage: true,
		})
	}()

	s.logger.Info("api server listening", "addr", s.cfg.ListenAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("api server shutting down")
	if err := s.App.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	return <-errCh
}
