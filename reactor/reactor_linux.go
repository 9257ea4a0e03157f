//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based readiness multiplexer with eventfd wakeup.

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/momentics/hioload-tcp/api"
	"golang.org/x/sys/unix"
)

type registration struct {
	gen      uint32
	interest api.Interest
}

// epollMultiplexer implements api.Multiplexer using level-triggered epoll.
// The registration generation travels in the epoll event payload so that
// keys for a closed and reused descriptor can be told apart.
type epollMultiplexer struct {
	epfd   int
	wakeFD int

	mu      sync.Mutex
	regs    map[int]registration
	nextGen uint32
	closed  bool

	raw []unix.EpollEvent
}

// New constructs an epoll multiplexer reporting at most maxEvents keys per Wait.
func New(maxEvents int) (api.Multiplexer, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wfd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wfd, &ev); err != nil {
		unix.Close(wfd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	return &epollMultiplexer{
		epfd:   epfd,
		wakeFD: wfd,
		regs:   make(map[int]registration),
		raw:    make([]unix.EpollEvent, normalizeMaxEvents(maxEvents)),
	}, nil
}

func epollEvents(in api.Interest) uint32 {
	var ev uint32
	if in&(api.InterestAccept|api.InterestRead) != 0 {
		ev |= unix.EPOLLIN
	}
	if in&api.InterestRead != 0 {
		ev |= unix.EPOLLRDHUP
	}
	if in&api.InterestWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (m *epollMultiplexer) register(fd int, in api.Interest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("register fd %d: %w", fd, api.ErrInvalidState)
	}
	if _, ok := m.regs[fd]; ok {
		return fmt.Errorf("register fd %d: already registered: %w", fd, api.ErrInvalidArgument)
	}
	m.nextGen++
	if m.nextGen == 0 {
		m.nextGen = 1
	}
	reg := registration{gen: m.nextGen, interest: in}
	ev := unix.EpollEvent{Events: epollEvents(in), Fd: int32(fd), Pad: int32(reg.gen)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	m.regs[fd] = reg
	return nil
}

// RegisterAccept adds a listening descriptor to the interest set.
func (m *epollMultiplexer) RegisterAccept(fd int) error {
	return m.register(fd, api.InterestAccept)
}

// RegisterRead adds a connected descriptor to the interest set.
func (m *epollMultiplexer) RegisterRead(fd int) error {
	return m.register(fd, api.InterestRead)
}

// SetWriteInterest arms or disarms EPOLLOUT for a registered descriptor.
func (m *epollMultiplexer) SetWriteInterest(fd int, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[fd]
	if !ok || m.closed {
		return fmt.Errorf("fd %d: %w", fd, api.ErrNotFound)
	}
	in := reg.interest &^ api.InterestWrite
	if enabled {
		in |= api.InterestWrite
	}
	if in == reg.interest {
		return nil
	}
	ev := unix.EpollEvent{Events: epollEvents(in), Fd: int32(fd), Pad: int32(reg.gen)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	reg.interest = in
	m.regs[fd] = reg
	return nil
}

// Deregister removes fd from the interest set. Unknown descriptors are ignored.
func (m *epollMultiplexer) Deregister(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[fd]; !ok {
		return nil
	}
	delete(m.regs, fd)
	if m.closed {
		return nil
	}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF) {
			return nil
		}
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Wait blocks without timeout. Wakeups and EINTR return zero keys.
func (m *epollMultiplexer) Wait(keys []api.ReadinessKey) (int, error) {
	raw := m.raw
	if len(keys) < len(raw) {
		raw = raw[:len(keys)]
	}
	if len(raw) == 0 {
		return 0, fmt.Errorf("wait: empty key buffer: %w", api.ErrInvalidArgument)
	}
	n, err := unix.EpollWait(m.epfd, raw, -1)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for i := 0; i < n; i++ {
		ev := raw[i]
		fd := int(ev.Fd)
		if fd == m.wakeFD {
			m.drainWakeup()
			continue
		}
		key := api.ReadinessKey{FD: fd, Gen: uint32(ev.Pad)}
		reg, ok := m.regs[fd]
		if ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP) != 0 {
			if ok && reg.interest&api.InterestAccept != 0 {
				key.Ready |= api.InterestAccept
			} else {
				key.Ready |= api.InterestRead
			}
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			key.Ready |= api.InterestWrite
		}
		if ev.Events&unix.EPOLLERR != 0 {
			key.Ready |= api.InterestError
		}
		keys[count] = key
		count++
	}
	return count, nil
}

// drainWakeup resets the eventfd counter. Caller holds m.mu.
func (m *epollMultiplexer) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(m.wakeFD, buf[:]); err != nil {
			return
		}
	}
}

// Valid reports whether the key's registration is still the current one.
func (m *epollMultiplexer) Valid(key api.ReadinessKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[key.FD]
	return ok && reg.gen == key.Gen
}

// Wakeup makes a concurrent or subsequent Wait return immediately.
func (m *epollMultiplexer) Wakeup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(m.wakeFD, buf[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Close releases the epoll and eventfd descriptors. Registered descriptors
// are not closed; they belong to the caller.
func (m *epollMultiplexer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.regs = make(map[int]registration)
	werr := unix.Close(m.wakeFD)
	if err := unix.Close(m.epfd); err != nil {
		return fmt.Errorf("close epoll: %w", err)
	}
	if werr != nil {
		return fmt.Errorf("close eventfd: %w", werr)
	}
	return nil
}
