// Package server exposes deposit resolution over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrz1836/depositor/internal/catalog"
	"github.com/mrz1836/depositor/internal/gateway"
	"github.com/mrz1836/depositor/internal/metrics"
	"github.com/mrz1836/depositor/internal/resolver"
)

const (
	// DefaultRequestTimeout bounds how long a deposit request waits for a gateway.
	DefaultRequestTimeout = 30 * time.Second

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// ResolverFactory creates a resolver for account bound to ctx. opts are
// applied after the factory's own options.
type ResolverFactory func(ctx context.Context, account string, opts ...resolver.Option) (*resolver.Resolver, error)

// Options configures a Server.
type Options struct {
	Registry       *gateway.Registry
	Catalog        *catalog.Catalog
	NewResolver    ResolverFactory
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	RequestTimeout time.Duration
	Version        string
}

// Server is the depositor HTTP API.
type Server struct {
	opts   Options
	engine *gin.Engine
}

// New builds the server and its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), accessLog(opts.Logger, opts.Metrics))

	s := &Server{opts: opts, engine: engine}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	s.engine.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))

	v1 := s.engine.Group("/v1")
	v1.GET("/gateways", s.gateways)
	v1.GET("/assets", s.assets)
	v1.POST("/deposit", s.deposit)
	v1.GET("/qr", s.qr)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("starting http server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.opts.Logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
