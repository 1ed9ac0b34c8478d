package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/push-dispatcher/internal/buildinfo"
	"github.com/tphakala/push-dispatcher/internal/logger"
	"github.com/tphakala/push-dispatcher/internal/push"
	"github.com/tphakala/push-dispatcher/internal/tokenstore"
)

// Pusher accepts notifications for background delivery.
// *push.Dispatcher satisfies it.
type Pusher interface {
	PushTo(recipient push.Recipient, payload *push.Notification) string
	QueueDepth() int
}

// RecipientStore exposes recorded invalid recipients.
// *tokenstore.Store satisfies it.
type RecipientStore interface {
	List(ctx context.Context, limit int) ([]tokenstore.InvalidRecipient, error)
	Forget(ctx context.Context, r push.Recipient) (bool, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Server is the producer HTTP API.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	config     Config

	pusher  Pusher
	store   RecipientStore
	metrics http.Handler
	build   *buildinfo.Context
	log     logger.Logger

	startTime time.Time
}

// Option is a functional option for configuring the server.
type Option func(*Server)

// WithStore enables the invalid recipient endpoints.
func WithStore(store RecipientStore) Option {
	return func(s *Server) { s.store = store }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithBuildInfo sets the version reported by the health endpoint.
func WithBuildInfo(b *buildinfo.Context) Option {
	return func(s *Server) { s.build = b }
}

// WithLogger sets the parent logger; the server logs under "api".
func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log.Module("api")
		}
	}
}

// New creates the API server. It does not start listening.
func New(cfg Config, pusher Pusher, opts ...Option) *Server {
	cfg.applyDefaults()

	s := &Server{
		config:    cfg,
		pusher:    pusher,
		log:       logger.NewDiscardLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.build == nil {
		s.build = buildinfo.New("", "")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(newRequestLogger(s.log, "/metrics", "/api/v1/health"))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))

	s.echo = e
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      e,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	v1 := s.echo.Group("/api/v1")
	v1.POST("/push", s.handlePush)
	v1.GET("/health", s.handleHealth)
	v1.GET("/invalid-recipients", s.handleListInvalid)
	v1.DELETE("/invalid-recipients", s.handlePurgeInvalid)
	v1.DELETE("/invalid-recipients/:kind/:value", s.handleForgetInvalid)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.log.Info("starting API server", logger.String("listen", s.config.Listen))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones, bounded by
// ctx and the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.log.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
