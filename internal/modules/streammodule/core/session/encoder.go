package session

import (
	"context"

	"github.com/mantonx/rtsphls/internal/modules/streammodule/core/process"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/types"
)

// Process is a running encoder as seen by the controller
type Process interface {
	Pid() int
	LogPath() string
	Done() <-chan struct{}
	Alive() bool
}

// Encoder launches and terminates encoder processes
type Encoder interface {
	Spawn(ctx context.Context, source, sessionID string) (Process, error)
	Terminate(p Process)
	Usage(ctx context.Context, p Process) *types.Usage
}

// Cleaner prepares the output directory for a new session
type Cleaner interface {
	Clean(dir string) (int, error)
}

// supervisorEncoder adapts a process.Supervisor to Encoder
type supervisorEncoder struct {
	supervisor *process.Supervisor
}

// NewSupervisorEncoder wraps s for use by a Controller
func NewSupervisorEncoder(s *process.Supervisor) Encoder {
	return supervisorEncoder{supervisor: s}
}

func (e supervisorEncoder) Spawn(ctx context.Context, source, sessionID string) (Process, error) {
	h, err := e.supervisor.Spawn(ctx, source, sessionID)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (e supervisorEncoder) Terminate(p Process) {
	if h, ok := p.(*process.Handle); ok {
		e.supervisor.Terminate(h)
	}
}

func (e supervisorEncoder) Usage(ctx context.Context, p Process) *types.Usage {
	if h, ok := p.(*process.Handle); ok {
		return e.supervisor.Usage(ctx, h)
	}
	return nil
}
