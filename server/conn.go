// File: server/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Accepted client connection and its outbound write path.

package server

import (
	"errors"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/transport"
	"go.opentelemetry.io/otel/trace"
)

// pendingWrite is the unsent tail of one Send call.
type pendingWrite struct {
	data []byte
	off  int
}

// clientConn is one accepted socket. Fields above mu are owned by the loop
// goroutine; fields below it are shared with sender goroutines.
type clientConn struct {
	id       uint64
	fd       int
	addr     string
	accepted time.Time
	buf      []byte
	span     trace.Span
	received int64

	mu      sync.Mutex
	closed  bool
	pending *queue.Queue // of *pendingWrite
}

func newClientConn(id uint64, fd int, addr string) *clientConn {
	return &clientConn{
		id:       id,
		fd:       fd,
		addr:     addr,
		accepted: time.Now(),
		pending:  queue.New(),
	}
}

// ID implements registry.Entry.
func (c *clientConn) ID() uint64 { return c.id }

// FD implements registry.Entry.
func (c *clientConn) FD() int { return c.fd }

// Addr implements registry.Entry.
func (c *clientConn) Addr() string { return c.addr }

func (c *clientConn) info() api.ConnInfo {
	return api.ConnInfo{
		ID:         c.id,
		RemoteAddr: c.addr,
		FD:         c.fd,
		AcceptedAt: c.accepted.UnixNano(),
	}
}

// write sends data from the caller's goroutine. Bytes the socket cannot take
// right now are queued and write interest is armed; the loop flushes them in
// order. Returns the number of bytes written immediately.
func (c *clientConn) write(mux api.Multiplexer, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, api.ErrConnectionClosed
	}
	if c.pending.Length() > 0 {
		c.pending.Add(&pendingWrite{data: append([]byte(nil), data...)})
		return 0, nil
	}
	n, err := transport.Write(c.fd, data)
	if errors.Is(err, transport.ErrWouldBlock) {
		c.pending.Add(&pendingWrite{data: append([]byte(nil), data[n:]...)})
		if err := mux.SetWriteInterest(c.fd, true); err != nil {
			return n, err
		}
		return n, nil
	}
	return n, err
}

// flush drains queued writes on write readiness. It runs on the loop
// goroutine and returns the bytes written and the first hard error, after
// which the queue is discarded.
func (c *clientConn) flush(mux api.Multiplexer) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil
	}
	total := 0
	for c.pending.Length() > 0 {
		pw := c.pending.Peek().(*pendingWrite)
		n, err := transport.Write(c.fd, pw.data[pw.off:])
		total += n
		pw.off += n
		if errors.Is(err, transport.ErrWouldBlock) {
			return total, nil
		}
		if err != nil {
			c.pending = queue.New()
			_ = mux.SetWriteInterest(c.fd, false)
			return total, err
		}
		c.pending.Remove()
	}
	return total, mux.SetWriteInterest(c.fd, false)
}

// markClosed flips the connection to closed, deregisters and closes the
// descriptor. It reports false if the connection was already closed and the
// number of queued bytes that were dropped.
func (c *clientConn) markClosed(mux api.Multiplexer) (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, 0
	}
	c.closed = true
	dropped := 0
	for c.pending.Length() > 0 {
		pw := c.pending.Remove().(*pendingWrite)
		dropped += len(pw.data) - pw.off
	}
	_ = mux.Deregister(c.fd)
	_ = transport.Close(c.fd)
	return true, dropped
}
