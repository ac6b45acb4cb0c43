// Package process spawns, owns, and terminates the encoder process.
//
// The supervisor holds at most one live encoder. Liveness is tracked by a
// reaper goroutine per handle, so IsAlive never blocks and never races with
// PID reuse.
package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	sErrors "github.com/mantonx/rtsphls/internal/modules/streammodule/errors"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/types"
	gproc "github.com/shirou/gopsutil/v4/process"
)

const (
	// GracefulTimeout is how long the encoder gets to finish after the quit command
	GracefulTimeout = 5 * time.Second
	// ForceTimeout is how long to wait for the encoder to die after SIGKILL
	ForceTimeout = 2 * time.Second
)

// Config contains supervisor configuration
type Config struct {
	BinaryPath string // encoder executable, "ffmpeg" by default
	OutputDir  string // manifest and segments
	LogDir     string // diagnostic log artifact
}

// Supervisor owns the encoder process
type Supervisor struct {
	config Config
	logger hclog.Logger

	mu      sync.Mutex
	current *Handle

	gracefulTimeout time.Duration
	forceTimeout    time.Duration
}

// NewSupervisor creates a new supervisor
func NewSupervisor(config Config, logger hclog.Logger) *Supervisor {
	if config.BinaryPath == "" {
		config.BinaryPath = "ffmpeg"
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	// The encoder is always handed an absolute manifest path so the orphan
	// sweep can match it exactly.
	if abs, err := filepath.Abs(config.OutputDir); err == nil {
		config.OutputDir = abs
	}
	return &Supervisor{
		config:          config,
		logger:          logger.Named("supervisor"),
		gracefulTimeout: GracefulTimeout,
		forceTimeout:    ForceTimeout,
	}
}

// OutputDir returns the directory the encoder writes into
func (s *Supervisor) OutputDir() string {
	return s.config.OutputDir
}

// Spawn launches the encoder for source. Stderr goes to the log artifact,
// truncated for every session; stdout is discarded; stdin stays open as the
// control channel.
func (s *Supervisor) Spawn(ctx context.Context, source, sessionID string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, sErrors.ProcessError("spawn", err).WithSession(sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		if s.current.Alive() {
			return nil, sErrors.ProcessError("spawn", sErrors.ErrProcessActive).WithSession(sessionID)
		}
		s.current.release()
		s.current = nil
	}

	if err := os.MkdirAll(s.config.LogDir, 0755); err != nil {
		return nil, s.spawnError(sessionID, fmt.Errorf("failed to create log directory: %w", err))
	}
	logPath := filepath.Join(s.config.LogDir, LogFileName)
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, s.spawnError(sessionID, fmt.Errorf("failed to create encoder log: %w", err))
	}

	args := BuildArgs(source, s.config.OutputDir)
	cmd := exec.Command(s.config.BinaryPath, args...)
	cmd.Stdout = nil
	cmd.Stderr = logFile
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		logFile.Close()
		return nil, s.spawnError(sessionID, err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		logFile.Close()
		return nil, s.spawnError(sessionID, err)
	}

	h := &Handle{
		pid:       cmd.Process.Pid,
		sessionID: sessionID,
		logPath:   logPath,
		startedAt: time.Now(),
		cmd:       cmd,
		stdin:     stdin,
		logFile:   logFile,
		done:      make(chan struct{}),
	}
	go h.reap()
	s.current = h

	s.logger.Info("encoder started",
		"session_id", sessionID,
		"pid", h.pid,
		"binary", s.config.BinaryPath,
		"log", logPath)
	s.logger.Debug("encoder command", "session_id", sessionID, "args", args)

	return h, nil
}

func (s *Supervisor) spawnError(sessionID string, err error) error {
	s.logger.Error("failed to launch encoder", "session_id", sessionID, "binary", s.config.BinaryPath, "error", err)
	return sErrors.ProcessError("spawn", fmt.Errorf("%w: %v", sErrors.ErrSpawnFailed, err)).WithSession(sessionID)
}

// IsAlive reports whether h is still running
func (s *Supervisor) IsAlive(h *Handle) bool {
	return h.Alive()
}

// Current returns the handle the supervisor owns, if any
func (s *Supervisor) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Terminate stops h: first by sending the encoder's quit command on stdin
// and waiting, then by SIGKILL to its process group. If the encoder still
// does not exit it is abandoned with a warning. The log file and stdin are
// closed and the supervisor forgets h in every outcome.
func (s *Supervisor) Terminate(h *Handle) {
	if h == nil {
		return
	}
	defer s.forget(h)

	if !h.Alive() {
		return
	}

	logger := s.logger.With("session_id", h.sessionID, "pid", h.pid)

	if _, err := io.WriteString(h.stdin, "q"); err != nil {
		logger.Debug("failed to send quit command", "error", err)
	}
	_ = h.stdin.Close()

	select {
	case <-h.done:
		logger.Info("encoder exited gracefully")
		return
	case <-time.After(s.gracefulTimeout):
		logger.Warn("encoder ignored quit command, killing", "timeout", s.gracefulTimeout)
	}

	if err := forceKill(h.cmd); err != nil {
		logger.Warn("failed to kill encoder", "error", err)
	}

	select {
	case <-h.done:
		logger.Info("encoder killed")
	case <-time.After(s.forceTimeout):
		logger.Warn("encoder did not exit after kill, abandoning", "timeout", s.forceTimeout)
	}
}

func (s *Supervisor) forget(h *Handle) {
	h.release()
	s.mu.Lock()
	if s.current == h {
		s.current = nil
	}
	s.mu.Unlock()
}

// Usage samples the encoder's CPU and memory. Best effort: any failure
// yields nil.
func (s *Supervisor) Usage(ctx context.Context, h *Handle) *types.Usage {
	if !h.Alive() {
		return nil
	}
	p, err := gproc.NewProcessWithContext(ctx, int32(h.pid))
	if err != nil {
		return nil
	}

	usage := &types.Usage{}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		usage.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		usage.RSSBytes = mem.RSS
	}
	return usage
}
