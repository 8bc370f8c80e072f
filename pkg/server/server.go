package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/postline/pkg/live"
	"github.com/vango-dev/postline/pkg/middleware"
)

// Server is the HTTP server hosting the render orchestrator and the live
// relay.
type Server struct {
	config  *Config
	handler *Handler
	hub     *live.Hub

	liveConfig *live.Config
	metrics    *middleware.Collector
	gatherer   prometheus.Gatherer
	tracing    []middleware.OTelOption
	traced     bool
	routes     []func(chi.Router)

	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLiveConfig sets the WebSocket connection configuration.
func WithLiveConfig(c *live.Config) Option {
	return func(s *Server) {
		s.liveConfig = c
	}
}

// WithMetrics instruments requests with c and serves g on the metrics path.
func WithMetrics(c *middleware.Collector, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = c
		s.gatherer = g
	}
}

// WithTracing starts a span for every request.
func WithTracing(opts ...middleware.OTelOption) Option {
	return func(s *Server) {
		s.traced = true
		s.tracing = opts
	}
}

// WithRoutes registers additional routes, such as a JSON API, ahead of
// the page catch-all.
func WithRoutes(fn func(chi.Router)) Option {
	return func(s *Server) {
		s.routes = append(s.routes, fn)
	}
}

// New creates a Server. A nil hub disables the live endpoint.
func New(config *Config, handler *Handler, hub *live.Hub, opts ...Option) *Server {
	s := &Server{
		config:  config.withDefaults(),
		handler: handler,
		hub:     hub,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if s.traced {
		r.Use(middleware.Tracing(s.tracing...))
	}
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		if s.gatherer != nil {
			r.Method(http.MethodGet, s.config.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		}
	}

	if s.hub != nil {
		r.Method(http.MethodGet, s.config.LivePath, live.NewHandler(s.hub, s.liveConfig, s.logger))
	}

	if s.config.StaticDir != "" {
		prefix := s.config.StaticPrefix
		fs := http.StripPrefix(prefix, http.FileServer(http.Dir(s.config.StaticDir)))
		r.Method(http.MethodGet, strings.TrimSuffix(prefix, "/")+"/*", fs)
		r.Method(http.MethodHead, strings.TrimSuffix(prefix, "/")+"/*", fs)
	}

	for _, fn := range s.routes {
		fn(r)
	}

	if s.handler != nil {
		r.Handle("/*", s.handler.Wrap(http.NotFoundHandler()))
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the underlying chi router.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the live hub, or nil.
func (s *Server) Hub() *live.Hub {
	return s.hub
}

// Run listens on the configured address and blocks until SIGINT or
// SIGTERM, then shuts down gracefully.
func (s *Server) Run() error {
	if s.handler == nil {
		return ErrNoHandler
	}
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains the live hub, closing every WebSocket connection, and
// then shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	var errs []error
	if s.hub != nil {
		if err := s.hub.Shutdown(); err != nil {
			s.logger.Warn("live shutdown", "error", err)
		}
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			errs = append(errs, err)
		}
	}

	s.logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
