// Package streammodule manages the single live RTSP to HLS session.
//
// Architecture:
//
//	api → session.Controller → process.Supervisor → encoder (ffmpeg)
//	                         ↘ janitor (output dir)   ↘ tailer (diagnostic log)
//
// The module builds these components from configuration, registers the HTTP
// routes and stops the encoder on shutdown.
package streammodule

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/rtsphls/internal/config"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/api"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/core/janitor"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/core/process"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/core/session"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/metrics"
)

const (
	// ModuleID is the unique identifier for the stream module
	ModuleID = "system.stream"

	// ModuleName is the display name for the stream module
	ModuleName = "Live Stream Manager"

	// ModuleVersion is the version of the stream module
	ModuleVersion = "1.0.0"
)

// Module wires the live session components together
type Module struct {
	config     config.StreamConfig
	logger     hclog.Logger
	metrics    *metrics.Collector
	supervisor *process.Supervisor
	controller *session.Controller
}

// NewModule creates the stream module. m may be nil to disable metrics.
func NewModule(cfg config.StreamConfig, logger hclog.Logger, m *metrics.Collector) *Module {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("stream")

	supervisor := process.NewSupervisor(process.Config{
		BinaryPath: cfg.FFmpegPath,
		OutputDir:  cfg.OutputDir,
		LogDir:     cfg.LogDir,
	}, logger)

	controller := session.NewController(
		session.Config{OutputDir: cfg.OutputDir, PublicPath: cfg.PublicPath},
		session.NewSupervisorEncoder(supervisor),
		janitor.New(logger),
		logger,
		m,
	)

	return &Module{
		config:     cfg,
		logger:     logger,
		metrics:    m,
		supervisor: supervisor,
		controller: controller,
	}
}

// ID returns the unique module identifier
func (m *Module) ID() string {
	return ModuleID
}

// Name returns the module display name
func (m *Module) Name() string {
	return ModuleName
}

// GetVersion returns the module version
func (m *Module) GetVersion() string {
	return ModuleVersion
}

// Controller returns the session controller
func (m *Module) Controller() *session.Controller {
	return m.controller
}

// Init runs the orphan sweep when enabled
func (m *Module) Init(ctx context.Context) error {
	m.logger.Info("initializing stream module",
		"output_dir", m.config.OutputDir,
		"log_dir", m.config.LogDir,
		"ffmpeg", m.config.FFmpegPath)

	if !m.config.OrphanSweep {
		return nil
	}

	killed, err := m.supervisor.SweepOrphans(ctx)
	if err != nil {
		// Leftovers are an inconvenience, not a reason to refuse to start
		m.logger.Warn("orphan sweep failed", "error", err)
		return nil
	}
	m.metrics.AddOrphansKilled(killed)
	if killed > 0 {
		m.logger.Info("orphan sweep finished", "killed", killed)
	}
	return nil
}

// RegisterRoutes registers the stream module HTTP routes
func (m *Module) RegisterRoutes(router gin.IRouter) {
	handler := api.NewAPIHandler(m.controller, m.logger)
	hls := api.NewHLSHandler(m.config.OutputDir, m.logger)
	api.RegisterRoutes(router, handler, hls, m.config.PublicPath)
}

// Shutdown stops the live session
func (m *Module) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.controller.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("stream module shut down")
		return nil
	case <-ctx.Done():
		m.logger.Warn("stream module shutdown timed out")
		return ctx.Err()
	}
}
