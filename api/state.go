// File: api/state.go
// Author: momentics <momentics@gmail.com>
//
// Event loop lifecycle states.

package api

// LoopState enumerates the lifecycle of a server's event loop.
type LoopState int32

const (
	StateIdle LoopState = iota
	StateBound
	StateRunning
	StateStopping
	StateStopped
)

func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBound:
		return "bound"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ConnInfo is a point-in-time description of an accepted connection.
type ConnInfo struct {
	ID         uint64 `json:"id"`
	RemoteAddr string `json:"remote_addr"`
	FD         int    `json:"fd"`
	AcceptedAt int64  `json:"accepted_at_unix_nano"`
}
