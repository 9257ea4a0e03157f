//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-tcp/api"
)

// New returns an error for unsupported platforms.
func New(maxEvents int) (api.Multiplexer, error) {
	_ = normalizeMaxEvents(maxEvents)
	return nil, fmt.Errorf("reactor: %w on this platform", api.ErrNotSupported)
}
