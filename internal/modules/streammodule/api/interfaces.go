package api

import (
	"context"

	"github.com/mantonx/rtsphls/internal/modules/streammodule/types"
)

// StreamService is the session contract the handlers delegate to.
// Implemented by session.Controller.
type StreamService interface {
	StartSession(ctx context.Context, source, mode string) (*types.StartResult, error)
	StopSession()
	GetStatus() types.Status
	State() types.State
}
