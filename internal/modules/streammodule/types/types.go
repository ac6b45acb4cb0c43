// Package types provides the shared types of the stream module.
package types

import "time"

// State is the lifecycle state of the live session
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateError    State = "error"
)

// AllStates lists every state, in state-machine order
var AllStates = []State{StateStopped, StateStarting, StateRunning, StateError}

func (s State) String() string {
	return string(s)
}

// StartResult is returned by a successful start
type StartResult struct {
	OutputLocator string `json:"hlsUrl"`
	Mode          string `json:"mode"`
	State         State  `json:"status"`
	SessionID     string `json:"sessionId"`
}

// Status is a point-in-time snapshot of the session
type Status struct {
	Running        bool       `json:"running"`
	Starting       bool       `json:"starting"`
	State          State      `json:"state"`
	Mode           string     `json:"mode"`
	SourceAddress  string     `json:"rtspUrl"`
	OutputReady    bool       `json:"hlsReady"`
	LastError      string     `json:"lastError"`
	StartedAt      *time.Time `json:"lastStartTime"`
	RecentLogLines []string   `json:"recentLogs"`

	SessionID     string        `json:"sessionId,omitempty"`
	OutputLocator string        `json:"hlsUrl,omitempty"`
	PID           int           `json:"pid,omitempty"`
	Uptime        float64       `json:"uptimeSeconds,omitempty"`
	Playlist      *PlaylistInfo `json:"playlist,omitempty"`
	Encoder       *Usage        `json:"encoder,omitempty"`
}

// PlaylistInfo summarizes the live media playlist
type PlaylistInfo struct {
	Segments       int      `json:"segments"`
	MediaSequence  uint64   `json:"mediaSequence"`
	TargetDuration float64  `json:"targetDuration"`
	SegmentURIs    []string `json:"segmentUris"`
}

// Usage is a best-effort resource reading of the encoder process
type Usage struct {
	CPUPercent float64 `json:"cpuPercent"`
	RSSBytes   uint64  `json:"rssBytes"`
}
