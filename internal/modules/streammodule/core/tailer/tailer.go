// Package tailer follows the encoder's diagnostic log into a bounded ring.
package tailer

import (
	"bytes"
	"errors"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/metrics"
)

const (
	// PollInterval bounds how long the tailer sleeps without a write event
	PollInterval = 100 * time.Millisecond

	readChunk = 4096
	// maxPending caps a line that never terminates (no newline or carriage return)
	maxPending = 64 * 1024
)

// Tailer copies encoder log lines into a Ring
type Tailer struct {
	logger  hclog.Logger
	metrics *metrics.Collector
	poll    time.Duration
}

// New creates a Tailer. metrics may be nil.
func New(logger hclog.Logger, m *metrics.Collector) *Tailer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Tailer{
		logger:  logger.Named("tailer"),
		metrics: m,
		poll:    PollInterval,
	}
}

// Follow reads path line by line and appends trimmed non-empty lines to ring
// until done is closed. Lines may end in "\n" or "\r" (encoder progress
// output uses the latter); a trailing partial line is held until it
// completes. Once done is closed, whatever is already on disk is drained and
// Follow returns.
//
// Follow only ever writes to ring; it never touches session state.
func (t *Tailer) Follow(path string, done <-chan struct{}, ring *Ring) {
	file, ok := t.open(path, done)
	if !ok {
		return
	}
	defer file.Close()

	var (
		events    <-chan fsnotify.Event
		watchErrs <-chan error
	)
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		if err := watcher.Add(path); err == nil {
			events = watcher.Events
			watchErrs = watcher.Errors
		} else {
			t.logger.Debug("falling back to polling", "path", path, "error", err)
		}
	}

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	var pending []byte
	buf := make([]byte, readChunk)

	for {
		exited := isClosed(done)

		for {
			n, err := file.Read(buf)
			if n > 0 {
				pending = t.emit(append(pending, buf[:n]...), ring)
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					t.logger.Warn("failed to read encoder log", "path", path, "error", err)
				}
				break
			}
		}

		if exited {
			t.push(pending, ring)
			t.logger.Debug("encoder exited, tailer stopping", "path", path)
			return
		}

		select {
		case <-done:
		case <-events:
		case err := <-watchErrs:
			t.logger.Debug("log watcher error", "error", err)
		case <-ticker.C:
		}
	}
}

// open waits for the log artifact to appear. It normally exists before the
// encoder starts.
func (t *Tailer) open(path string, done <-chan struct{}) (*os.File, bool) {
	for {
		file, err := os.Open(path)
		if err == nil {
			return file, true
		}
		if !os.IsNotExist(err) {
			t.logger.Warn("failed to open encoder log", "path", path, "error", err)
			return nil, false
		}
		select {
		case <-done:
			return nil, false
		case <-time.After(t.poll):
		}
	}
}

// emit pushes every complete line in data and returns the incomplete tail
func (t *Tailer) emit(data []byte, ring *Ring) []byte {
	for {
		idx := bytes.IndexAny(data, "\r\n")
		if idx < 0 {
			break
		}
		t.push(data[:idx], ring)
		data = data[idx+1:]
	}
	if len(data) >= maxPending {
		t.push(data, ring)
		return nil
	}
	// Copy so the caller's read buffer can be reused
	return append([]byte(nil), data...)
}

func (t *Tailer) push(raw []byte, ring *Ring) {
	line := string(bytes.TrimSpace(raw))
	if line == "" {
		return
	}
	ring.Append(line)
	t.metrics.IncLogLines()
	t.logger.Debug("encoder", "line", line)
}

func isClosed(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}
