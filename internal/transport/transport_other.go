//go:build !linux
// +build !linux

// internal/transport/transport_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub socket primitives for platforms without an epoll reactor.

package transport

import (
	"net/netip"

	"github.com/momentics/hioload-tcp/api"
)

func Listen(host string, port int) (*Endpoint, error) {
	return nil, &api.EndpointBindError{Port: port, Op: "socket", Code: api.ErrCodeNotSupported, Err: api.ErrNotSupported}
}

func Accept(lfd int) (int, netip.AddrPort, error) {
	return -1, netip.AddrPort{}, api.ErrNotSupported
}

func Read(fd int, p []byte) (int, error) { return 0, api.ErrNotSupported }

func Write(fd int, p []byte) (int, error) { return 0, api.ErrNotSupported }

func Close(fd int) error { return nil }
