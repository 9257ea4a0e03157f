// internal/transport/transport_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux non-blocking TCP socket primitives.

package transport

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/momentics/hioload-tcp/api"
	"golang.org/x/sys/unix"
)

// Listen opens a non-blocking listening socket on host:port. An empty host
// binds the wildcard address, dual-stack when IPv6 is available. Failures are
// returned as *api.EndpointBindError with partial state already released.
func Listen(host string, port int) (*Endpoint, error) {
	if port < 0 || port > 65535 {
		return nil, &api.EndpointBindError{Port: port, Op: "validate", Code: api.ErrCodeInvalidArgument, Err: api.ErrInvalidArgument}
	}
	if host == "" {
		ep, err := listenFamily(unix.AF_INET6, netip.IPv6Unspecified(), port)
		if err != nil && errors.Is(err, unix.EAFNOSUPPORT) {
			return listenFamily(unix.AF_INET, netip.IPv4Unspecified(), port)
		}
		return ep, err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return nil, &api.EndpointBindError{Port: port, Op: "parse host", Code: api.ErrCodeInvalidArgument, Err: err}
	}
	ip = ip.Unmap()
	if ip.Is4() {
		return listenFamily(unix.AF_INET, ip, port)
	}
	return listenFamily(unix.AF_INET6, ip, port)
}

func listenFamily(family int, ip netip.Addr, port int) (*Endpoint, error) {
	fail := func(op string, err error) error {
		return &api.EndpointBindError{Port: port, Op: op, Code: bindErrorCode(err), Err: err}
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fail("socket", err)
	}
	ok := false
	defer func() {
		if !ok {
			unix.Close(fd)
		}
	}()

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return nil, fail("setsockopt SO_REUSEADDR", err)
	}
	var sa unix.Sockaddr
	if family == unix.AF_INET6 {
		if ip.IsUnspecified() {
			_ = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
		}
		sa = &unix.SockaddrInet6{Port: port, Addr: ip.As16()}
	} else {
		sa = &unix.SockaddrInet4{Port: port, Addr: ip.As4()}
	}
	if err := unix.Bind(fd, sa); err != nil {
		return nil, fail("bind", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return nil, fail("listen", err)
	}
	local, err := unix.Getsockname(fd)
	if err != nil {
		return nil, fail("getsockname", err)
	}
	ok = true
	return &Endpoint{FD: fd, Addr: addrPort(local)}, nil
}

func bindErrorCode(err error) api.ErrorCode {
	switch {
	case errors.Is(err, unix.EADDRINUSE):
		return api.ErrCodeAddressInUse
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return api.ErrCodePermission
	case errors.Is(err, unix.EMFILE), errors.Is(err, unix.ENFILE),
		errors.Is(err, unix.ENOBUFS), errors.Is(err, unix.ENOMEM):
		return api.ErrCodeResourceExhausted
	case errors.Is(err, unix.EAFNOSUPPORT):
		return api.ErrCodeNotSupported
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.EADDRNOTAVAIL):
		return api.ErrCodeInvalidArgument
	default:
		return api.ErrCodeInternal
	}
}

// Accept takes exactly one pending connection from a listening descriptor.
// The returned descriptor is non-blocking. ErrWouldBlock means the queue was
// empty or the peer aborted before accept completed.
func Accept(lfd int) (int, netip.AddrPort, error) {
	for {
		fd, sa, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			switch {
			case errors.Is(err, unix.EINTR):
				continue
			case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.ECONNABORTED):
				return -1, netip.AddrPort{}, ErrWouldBlock
			}
			return -1, netip.AddrPort{}, fmt.Errorf("accept4: %w", err)
		}
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		return fd, addrPort(sa), nil
	}
}

// Read performs a single read. (0, nil) means the peer closed the stream.
func Read(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.EAGAIN) {
				return 0, ErrWouldBlock
			}
			return 0, fmt.Errorf("read: %w", err)
		}
		return n, nil
	}
}

// Write writes as much of p as the socket accepts without blocking. A short
// count is returned with ErrWouldBlock when the send buffer is full.
func Write(fd int, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := unix.Write(fd, p[total:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.EAGAIN) {
				return total, ErrWouldBlock
			}
			return total, fmt.Errorf("write: %w", err)
		}
		total += n
	}
	return total, nil
}

// Close releases a descriptor.
func Close(fd int) error {
	if fd < 0 {
		return nil
	}
	return unix.Close(fd)
}

func addrPort(sa unix.Sockaddr) netip.AddrPort {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr).Unmap(), uint16(a.Port))
	}
	return netip.AddrPort{}
}
