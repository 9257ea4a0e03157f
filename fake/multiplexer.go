// Package fake
// Author: momentics <momentics@gmail.com>
//
// Scripted in-memory readiness multiplexer for testing.

package fake

import (
	"fmt"
	"sync"

	"github.com/momentics/hioload-tcp/api"
)

// Multiplexer implements api.Multiplexer without touching the kernel. Tests
// script readiness with Push and inspect registrations with Interest.
type Multiplexer struct {
	mu      sync.Mutex
	regs    map[int]registration
	nextGen uint32
	ready   [][]api.ReadinessKey
	signal  chan struct{}
	wakeups int
	closed  bool
}

type registration struct {
	gen      uint32
	interest api.Interest
}

var _ api.Multiplexer = (*Multiplexer)(nil)

// NewMultiplexer creates an empty fake multiplexer.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{
		regs:   make(map[int]registration),
		signal: make(chan struct{}, 1),
	}
}

func (m *Multiplexer) register(fd int, in api.Interest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return api.ErrInvalidState
	}
	if _, ok := m.regs[fd]; ok {
		return fmt.Errorf("fd %d already registered: %w", fd, api.ErrInvalidArgument)
	}
	m.nextGen++
	m.regs[fd] = registration{gen: m.nextGen, interest: in}
	return nil
}

func (m *Multiplexer) RegisterAccept(fd int) error { return m.register(fd, api.InterestAccept) }
func (m *Multiplexer) RegisterRead(fd int) error   { return m.register(fd, api.InterestRead) }

func (m *Multiplexer) SetWriteInterest(fd int, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[fd]
	if !ok || m.closed {
		return fmt.Errorf("fd %d: %w", fd, api.ErrNotFound)
	}
	reg.interest &^= api.InterestWrite
	if enabled {
		reg.interest |= api.InterestWrite
	}
	m.regs[fd] = reg
	return nil
}

func (m *Multiplexer) Deregister(fd int) error {
	m.mu.Lock()
	delete(m.regs, fd)
	m.mu.Unlock()
	return nil
}

// Key returns a valid key for fd's current registration with ready set.
func (m *Multiplexer) Key(fd int, ready api.Interest) api.ReadinessKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return api.ReadinessKey{FD: fd, Gen: m.regs[fd].gen, Ready: ready}
}

// Push queues one batch of keys for the next Wait.
func (m *Multiplexer) Push(keys ...api.ReadinessKey) {
	m.mu.Lock()
	m.ready = append(m.ready, keys)
	m.mu.Unlock()
	m.notify()
}

func (m *Multiplexer) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Wait returns the oldest pushed batch, or 0 keys after a Wakeup.
func (m *Multiplexer) Wait(keys []api.ReadinessKey) (int, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return 0, api.ErrInvalidState
		}
		if len(m.ready) > 0 {
			n := copy(keys, m.ready[0])
			m.ready = m.ready[1:]
			m.mu.Unlock()
			return n, nil
		}
		woken := m.wakeups > 0
		m.wakeups = 0
		m.mu.Unlock()
		if woken {
			return 0, nil
		}
		<-m.signal
	}
}

func (m *Multiplexer) Valid(key api.ReadinessKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[key.FD]
	return ok && reg.gen == key.Gen
}

func (m *Multiplexer) Wakeup() error {
	m.mu.Lock()
	if !m.closed {
		m.wakeups++
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *Multiplexer) Close() error {
	m.mu.Lock()
	m.closed = true
	m.regs = make(map[int]registration)
	m.mu.Unlock()
	m.notify()
	return nil
}

// Interest reports the current interest set for fd.
func (m *Multiplexer) Interest(fd int) (api.Interest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[fd]
	return reg.interest, ok
}
