// Package transport
// Author: momentics <momentics@gmail.com>
//
// Platform-independent types shared by the socket primitives.

package transport

import (
	"errors"
	"net/netip"
)

// ErrWouldBlock is returned when a non-blocking call has nothing to do yet.
var ErrWouldBlock = errors.New("operation would block")

// Endpoint is an open, listening, non-blocking socket.
type Endpoint struct {
	FD   int
	Addr netip.AddrPort
}

// Port returns the bound port, resolved when port 0 was requested.
func (e *Endpoint) Port() int {
	return int(e.Addr.Port())
}

// Close releases the listening descriptor.
func (e *Endpoint) Close() error {
	return Close(e.FD)
}
