package process

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Handle is the supervisor's reference to one running encoder
type Handle struct {
	pid       int
	sessionID string
	logPath   string
	startedAt time.Time

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	logFile *os.File

	done    chan struct{}
	exitErr error

	releaseOnce sync.Once
}

// Pid returns the encoder's process ID
func (h *Handle) Pid() int { return h.pid }

// SessionID returns the session the encoder was spawned for
func (h *Handle) SessionID() string { return h.sessionID }

// LogPath returns the encoder's diagnostic log artifact
func (h *Handle) LogPath() string { return h.logPath }

// StartedAt returns when the encoder was launched
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Done is closed once the encoder has exited and been reaped
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Alive reports whether the encoder is still running. It never blocks.
func (h *Handle) Alive() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitErr returns the encoder's exit error. Only meaningful after Done.
func (h *Handle) ExitErr() error {
	select {
	case <-h.done:
		return h.exitErr
	default:
		return nil
	}
}

// reap waits for the encoder and publishes its exit
func (h *Handle) reap() {
	h.exitErr = h.cmd.Wait()
	close(h.done)
}

// release closes the parent's ends of the control channel and the log file
func (h *Handle) release() {
	h.releaseOnce.Do(func() {
		if h.stdin != nil {
			_ = h.stdin.Close()
		}
		if h.logFile != nil {
			_ = h.logFile.Close()
		}
	})
}
