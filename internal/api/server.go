// Package api serves the read-only status API over the skyglow database.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/skyglow/skyglow-go/internal/conf"
	"github.com/skyglow/skyglow-go/internal/datastore"
	"github.com/skyglow/skyglow-go/internal/logger"
	"github.com/skyglow/skyglow-go/internal/observability"
)

const (
	// DefaultListen is used when the configuration leaves listen empty
	DefaultListen = "127.0.0.1:8090"

	shutdownTimeout = 5 * time.Second
)

// Server is the HTTP server for the status API.
type Server struct {
	echo     *echo.Echo
	settings *conf.Settings
	store    *datastore.Store
	metrics  *observability.Metrics
	log      logger.Logger

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetrics exposes m on /metrics and records request metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger for request and error logging.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// New creates the server and registers all routes. It does not listen.
func New(settings *conf.Settings, store *datastore.Store, opts ...ServerOption) *Server {
	s := &Server{
		settings:  settings,
		store:     store,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewDiscardLogger()
	}
	s.log = s.log.Module("api")

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(echomw.Recover())
	s.echo.Use(s.requestMiddleware())

	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	v1 := s.echo.Group("/api/v1")
	v1.GET("/health", s.HealthCheck)
	v1.GET("/status", s.Status)
	v1.GET("/measurements", s.Measurements)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// ServeHTTP lets the server be used as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listen := s.settings.WebServer.Listen
	if listen == "" {
		listen = DefaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status api listening", logger.String("address", listen))
		errCh <- s.echo.Start(listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("status api stopped")
	return nil
}

// requestMiddleware logs every request and records it in the metrics
func (s *Server) requestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			elapsed := time.Since(start)

			if route := c.Path(); s.metrics != nil && route != "/metrics" {
				if route == "" {
					route = "unmatched"
				}
				s.metrics.HTTP.RecordAPIRequest(req.Method, route, status, elapsed)
			}
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.String("query", req.URL.RawQuery),
				logger.Int("status", status),
				logger.String("ip", c.RealIP()),
				logger.Int64("latency_ms", elapsed.Milliseconds()),
			}
			if err != nil {
				fields = append(fields, logger.Error(err))
			}
			s.log.Debug("api request", fields...)
			return nil
		}
	}
}
