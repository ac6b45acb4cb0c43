// Package session implements the live session state machine.
//
// A Controller owns exactly one session:
//
//	Stopped --start--> Starting --manifest ready--> Running
//	Starting --timeout, crash or cancel--> Error
//	Running --crash (seen by GetStatus)--> Error
//	any --stop--> Stopped
//
// Error is not terminal; a new start tears down whatever is left first.
package session

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/core/process"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/core/tailer"
	sErrors "github.com/mantonx/rtsphls/internal/modules/streammodule/errors"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/metrics"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/types"
)

const (
	// ReadinessTimeout bounds how long StartSession waits for the manifest
	ReadinessTimeout = 10 * time.Second
	// PollInterval is how often readiness is checked
	PollInterval = 500 * time.Millisecond
)

// Config contains controller configuration
type Config struct {
	OutputDir  string // where the encoder writes the manifest
	PublicPath string // URL prefix the output is served under, e.g. "/hls"
}

// Controller drives the live session
type Controller struct {
	config  Config
	encoder Encoder
	janitor Cleaner
	logger  hclog.Logger
	metrics *metrics.Collector

	// opMu serializes StartSession and StopSession
	opMu sync.Mutex

	// mu guards the session fields below; never held across a blocking call
	mu        sync.Mutex
	state     types.State
	sessionID string
	source    string
	mode      string
	startedAt time.Time
	lastError string
	logTail   *tailer.Ring
	proc      Process

	readinessTimeout time.Duration
	pollInterval     time.Duration
}

// NewController creates a controller in the Stopped state. m may be nil.
func NewController(config Config, encoder Encoder, janitor Cleaner, logger hclog.Logger, m *metrics.Collector) *Controller {
	if config.PublicPath == "" {
		config.PublicPath = "/hls"
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	c := &Controller{
		config:           config,
		encoder:          encoder,
		janitor:          janitor,
		logger:           logger.Named("session"),
		metrics:          m,
		state:            types.StateStopped,
		logTail:          tailer.NewRing(tailer.DefaultCapacity),
		readinessTimeout: ReadinessTimeout,
		pollInterval:     PollInterval,
	}
	m.SetState(types.StateStopped)
	return c
}

// OutputLocator returns the public URL of the manifest
func (c *Controller) OutputLocator() string {
	return path.Join(c.config.PublicPath, process.ManifestName)
}

// StartSession starts a new session for source, replacing any existing one.
// It blocks until the manifest is ready, the encoder dies, the readiness
// timeout elapses, or ctx is cancelled. An invalid source is rejected
// without touching the current session.
func (c *Controller) StartSession(ctx context.Context, source, mode string) (*types.StartResult, error) {
	if err := ValidateSource(source); err != nil {
		c.metrics.RecordStart(metrics.ResultInvalid, 0)
		return nil, err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.teardown("restart")

	sessionID := uuid.NewString()
	logger := c.logger.With("session_id", sessionID)
	ring := tailer.NewRing(tailer.DefaultCapacity)

	c.mu.Lock()
	c.sessionID = sessionID
	c.source = source
	c.mode = mode
	c.lastError = ""
	c.logTail = ring
	c.mu.Unlock()

	warnings, err := c.janitor.Clean(c.config.OutputDir)
	c.metrics.AddJanitorWarnings(warnings)
	if err != nil {
		logger.Error("output directory unavailable", "dir", c.config.OutputDir, "error", err)
		startErr := sErrors.StorageError("start_session", fmt.Errorf("%w: %v", sErrors.ErrOutputUnavailable, err)).WithSession(sessionID)
		c.fail(nil, sErrors.Message(startErr), metrics.ResultStorage)
		return nil, startErr
	}

	startedAt := time.Now()
	c.mu.Lock()
	c.state = types.StateStarting
	c.startedAt = startedAt
	c.mu.Unlock()
	c.metrics.SetState(types.StateStarting)

	logger.Info("starting session", "source", source, "mode", mode)

	proc, err := c.encoder.Spawn(ctx, source, sessionID)
	if err != nil {
		c.fail(nil, sErrors.Message(err), metrics.ResultSpawnFailed)
		return nil, err
	}

	c.mu.Lock()
	c.proc = proc
	c.mu.Unlock()

	go tailer.New(logger, c.metrics).Follow(proc.LogPath(), proc.Done(), ring)

	if err := c.awaitReady(ctx, proc); err != nil {
		result := metrics.ResultCrashed
		switch {
		case errors.Is(err, sErrors.ErrReadinessTimeout):
			result = metrics.ResultTimeout
		case errors.Is(err, sErrors.ErrCancelled):
			result = metrics.ResultCancelled
		}
		logger.Warn("session failed to start", "error", err)
		c.fail(proc, sErrors.Message(err), result)
		var sErr *sErrors.StreamError
		if errors.As(err, &sErr) {
			sErr.WithSession(sessionID)
		}
		return nil, err
	}

	c.mu.Lock()
	c.state = types.StateRunning
	c.mu.Unlock()

	elapsed := time.Since(startedAt)
	c.metrics.RecordStart(metrics.ResultRunning, elapsed)
	c.metrics.SetState(types.StateRunning)
	logger.Info("session running", "pid", proc.Pid(), "ready_after", elapsed)

	return &types.StartResult{
		OutputLocator: c.OutputLocator(),
		Mode:          mode,
		State:         types.StateRunning,
		SessionID:     sessionID,
	}, nil
}

// awaitReady polls until the manifest has content. The encoder's liveness is
// checked before the manifest on every tick.
func (c *Controller) awaitReady(ctx context.Context, proc Process) error {
	manifest := process.ManifestPath(c.config.OutputDir)

	deadline := time.NewTimer(c.readinessTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		if !proc.Alive() {
			return sErrors.ProcessError("await_ready", sErrors.ErrUnexpectedTermination)
		}
		if manifestReady(manifest) {
			return nil
		}

		select {
		case <-ctx.Done():
			return sErrors.New(sErrors.ErrorTypeInternal, "await_ready", fmt.Errorf("%w: %w", sErrors.ErrCancelled, ctx.Err()))
		case <-deadline.C:
			return sErrors.ReadinessError("await_ready", sErrors.ErrReadinessTimeout)
		case <-ticker.C:
		}
	}
}

// fail moves the session to Error and tears down proc, if any
func (c *Controller) fail(proc Process, message, result string) {
	c.mu.Lock()
	c.state = types.StateError
	c.lastError = message
	c.proc = nil
	c.mu.Unlock()

	c.metrics.RecordStart(result, 0)
	c.metrics.SetState(types.StateError)

	if proc != nil {
		c.encoder.Terminate(proc)
	}
}

// StopSession tears down the current session. Stopping an already stopped
// session is a no-op.
func (c *Controller) StopSession() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.teardown("stop")
}

// teardown terminates the encoder and resets the session to Stopped.
// Stopped is only published once the encoder is gone. Callers hold opMu.
func (c *Controller) teardown(reason string) {
	c.mu.Lock()
	if c.state == types.StateStopped && c.proc == nil {
		c.mu.Unlock()
		return
	}
	proc := c.proc
	sessionID := c.sessionID
	c.proc = nil
	c.mu.Unlock()

	if proc != nil {
		c.logger.Info("stopping encoder", "session_id", sessionID, "pid", proc.Pid(), "reason", reason)
		c.encoder.Terminate(proc)
	}

	c.mu.Lock()
	c.state = types.StateStopped
	c.source = ""
	c.mode = ""
	c.mu.Unlock()

	if proc != nil || reason == "stop" {
		c.metrics.RecordStop()
	}
	c.metrics.SetState(types.StateStopped)
}

// Shutdown stops the session on daemon exit
func (c *Controller) Shutdown() {
	c.StopSession()
	c.logger.Info("session controller shut down")
}

// GetStatus returns a snapshot of the session. It never waits for a start in
// progress. A Running session whose encoder has died is moved to Error here.
func (c *Controller) GetStatus() types.Status {
	c.mu.Lock()
	var dead Process
	if c.state == types.StateRunning && c.proc != nil && !c.proc.Alive() {
		dead = c.proc
		c.proc = nil
		c.state = types.StateError
		c.lastError = sErrors.ErrUnexpectedTermination.Error()
	}

	status := types.Status{
		Running:        c.state == types.StateRunning,
		Starting:       c.state == types.StateStarting,
		State:          c.state,
		Mode:           c.mode,
		SourceAddress:  c.source,
		LastError:      c.lastError,
		RecentLogLines: c.logTail.Lines(),
		SessionID:      c.sessionID,
	}
	if !c.startedAt.IsZero() {
		startedAt := c.startedAt
		status.StartedAt = &startedAt
	}
	proc := c.proc
	sessionID := c.sessionID
	c.mu.Unlock()

	if dead != nil {
		c.logger.Warn("encoder terminated unexpectedly", "session_id", sessionID, "pid", dead.Pid())
		c.metrics.SetState(types.StateError)
		c.encoder.Terminate(dead)
	}

	manifest := process.ManifestPath(c.config.OutputDir)
	status.OutputReady = manifestReady(manifest)
	if status.OutputReady {
		status.OutputLocator = c.OutputLocator()
		if info, err := inspectManifest(manifest); err == nil {
			status.Playlist = info
		}
	}

	if status.Running && proc != nil {
		status.PID = proc.Pid()
		status.Uptime = time.Since(*status.StartedAt).Seconds()
		status.Encoder = c.encoder.Usage(context.Background(), proc)
	}

	return status
}

// State returns the current state without the rest of the snapshot
func (c *Controller) State() types.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
