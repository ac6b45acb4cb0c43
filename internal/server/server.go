// Package server hosts the HTTP surface of the daemon: the gin engine, its
// middleware, the stream module routes and the metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/flock"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/rtsphls/internal/config"
	"github.com/mantonx/rtsphls/internal/middleware"
	"github.com/mantonx/rtsphls/internal/modules/streammodule"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/core/process"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/metrics"
)

// ShutdownTimeout bounds the HTTP drain. In-flight requests see their
// context cancelled first, so a start still waiting for readiness unwinds
// through its own teardown within this window.
const ShutdownTimeout = 10 * time.Second

// ModuleShutdownTimeout bounds stopping the encoder once HTTP has drained:
// the quit window, the kill window and some slack.
const ModuleShutdownTimeout = process.GracefulTimeout + process.ForceTimeout + 3*time.Second

// ErrAlreadyRunning is returned when another daemon holds the instance lock
var ErrAlreadyRunning = errors.New("another rtsphls instance is running")

// Server is the daemon's HTTP server
type Server struct {
	cfg     *config.Config
	logger  hclog.Logger
	engine  *gin.Engine
	module  *streammodule.Module
	metrics *metrics.Collector
	lock    *flock.Flock
}

// New builds the server and its routes. Nothing is started yet.
func New(cfg *config.Config, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	var m *metrics.Collector
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		module:  streammodule.NewModule(cfg.Stream, logger, m),
	}
	if cfg.Stream.LockFile != "" {
		s.lock = flock.New(cfg.Stream.LockFile)
	}
	s.engine = s.setupRouter()
	return s
}

// Router returns the gin engine
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Module returns the stream module
func (s *Server) Module() *streammodule.Module {
	return s.module
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(s.logger, s.cfg.Stream.PublicPath))
	r.Use(middleware.ErrorLogger(s.logger))

	if s.cfg.Server.EnableCORS {
		r.Use(middleware.CORS())
	}

	s.module.RegisterRoutes(r)

	if s.metrics != nil {
		r.GET(s.cfg.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}

	return r
}

// Run acquires the instance lock, prepares the stream module and serves
// until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.acquireLock(); err != nil {
		return err
	}
	defer s.releaseLock()

	if err := s.module.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize stream module: %w", err)
	}

	listener, err := net.Listen("tcp", s.cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Address(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled. On shutdown, request
// contexts are cancelled before the HTTP drain, then the stream module gets
// its own budget to stop the encoder.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting rtsphls server", "address", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down gracefully")
	case serveErr = <-errCh:
		s.logger.Error("server stopped unexpectedly", "error", serveErr)
	}

	cancelRequests()

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancelHTTP()
	if err := srv.Shutdown(httpCtx); err != nil {
		s.logger.Warn("HTTP server shutdown error", "error", err)
	}

	moduleCtx, cancelModule := context.WithTimeout(context.Background(), ModuleShutdownTimeout)
	defer cancelModule()
	if err := s.module.Shutdown(moduleCtx); err != nil {
		s.logger.Warn("stream module shutdown error", "error", err)
	}

	s.logger.Info("server shutdown complete")
	return serveErr
}

func (s *Server) acquireLock() error {
	if s.lock == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.Stream.LockFile), 0755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, s.cfg.Stream.LockFile)
	}
	return nil
}

func (s *Server) releaseLock() {
	if s.lock == nil {
		return
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release instance lock", "error", err)
	}
}
