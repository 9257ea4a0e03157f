// File: server/eventloop.go
// Package server implements the selector-driven event loop: readiness wait,
// single-shot accept, per-connection reads, queued write flushing and
// lifecycle notifications.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/concurrency"
	"github.com/momentics/hioload-tcp/internal/registry"
	"github.com/momentics/hioload-tcp/internal/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// eventLoop is one bound run of the server: the multiplexer, the listening
// endpoint and the registry all live and die with it.
type eventLoop struct {
	srv      *Server
	log      *slog.Logger
	mux      api.Multiplexer
	ep       *transport.Endpoint
	registry *registry.Registry[*clientConn]
	keys     []api.ReadinessKey

	stop atomic.Bool
	tid  atomic.Int64
	done chan struct{}
}

func newEventLoop(s *Server, mux api.Multiplexer, ep *transport.Endpoint) *eventLoop {
	return &eventLoop{
		srv:      s,
		log:      s.log.With("component", "eventloop", "port", ep.Port()),
		mux:      mux,
		ep:       ep,
		registry: registry.New[*clientConn](),
		keys:     make([]api.ReadinessKey, s.cfg.MaxEvents),
		done:     make(chan struct{}),
	}
}

// signal sets the cancellation token. It reports whether this call set it.
func (l *eventLoop) signal() bool {
	return l.stop.CompareAndSwap(false, true)
}

// finished reports whether the loop goroutine has exited.
func (l *eventLoop) finished() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// onLoopThread reports whether the caller runs on the loop's OS thread,
// i.e. inside a Listener callback. Thread ids are recycled by the kernel,
// so a finished loop never matches.
func (l *eventLoop) onLoopThread() bool {
	tid := l.tid.Load()
	return tid > 0 && !l.finished() && int64(concurrency.ThreadID()) == tid
}

func (l *eventLoop) run() {
	defer close(l.done)

	tid, err := concurrency.PrepareLoopThread(concurrency.ThreadOptions{
		CPU:  l.srv.cfg.LoopCPU,
		Nice: l.srv.cfg.LoopNice,
	})
	l.tid.Store(int64(tid))
	if err != nil {
		l.log.Debug("loop thread hints not applied", "error", err)
	}

	m := l.srv.metrics
	for !l.stop.Load() {
		n, err := l.mux.Wait(l.keys)
		if err != nil {
			l.log.Error("readiness wait failed; stopping event loop", "error", err)
			m.WaitFailures.Inc()
			break
		}
		m.LoopIterations.Inc()
		for _, key := range l.keys[:n] {
			l.dispatch(key)
		}
	}
	l.shutdown()
}

func (l *eventLoop) dispatch(key api.ReadinessKey) {
	if !l.mux.Valid(key) {
		return
	}
	if key.FD == l.ep.FD {
		if key.Acceptable() {
			l.accept()
		}
		return
	}
	c, ok := l.registry.ByFD(key.FD)
	if !ok {
		return
	}
	if key.Writable() {
		l.flush(c)
	}
	if key.Readable() {
		l.read(c)
	}
}

// accept takes exactly one pending connection; further pending connections
// resurface as accept readiness on the next wait.
func (l *eventLoop) accept() {
	m := l.srv.metrics
	fd, remote, err := transport.Accept(l.ep.FD)
	if errors.Is(err, transport.ErrWouldBlock) {
		return
	}
	if err != nil {
		l.log.Warn("accept failed", "error", err)
		m.AcceptErrors.Inc()
		return
	}

	c := newClientConn(l.srv.nextID.Add(1), fd, remote.String())
	if err := l.mux.RegisterRead(fd); err != nil {
		l.log.Warn("register accepted connection failed", "remote", c.addr, "error", err)
		m.AcceptErrors.Inc()
		_ = transport.Close(fd)
		return
	}
	c.buf = l.srv.pool.Acquire(l.srv.cfg.BufferSize)
	if stale, ok := l.registry.Add(c); ok {
		l.log.Warn("replaced stale registry entry for reused descriptor", "fd", fd, "stale_id", stale.id)
	}
	_, c.span = l.srv.tracer.Start(context.Background(), "tcp.connection",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("net.peer.addr", c.addr),
			attribute.Int64("hioload.conn.id", int64(c.id)),
		),
	)
	m.Accepted.Inc()
	m.ConnectionsActive.Inc()
	l.log.Info("connection accepted", "remote", c.addr, "conn_id", c.id)

	l.notify("connected", func() { l.srv.listener.Connected(c.addr) })
}

// read performs one read into the connection's own buffer.
func (l *eventLoop) read(c *clientConn) {
	n, err := transport.Read(c.fd, c.buf)
	switch {
	case errors.Is(err, transport.ErrWouldBlock):
		return
	case err != nil:
		l.log.Warn("read failed; treating as disconnect", "remote", c.addr, "conn_id", c.id, "error", err)
		l.disconnect(c, control.ReasonError, err)
	case n == 0:
		l.log.Info("connection closed by remote", "remote", c.addr, "conn_id", c.id)
		l.disconnect(c, control.ReasonPeer, nil)
	default:
		c.received += int64(n)
		m := l.srv.metrics
		m.BytesReceived.Add(float64(n))
		m.ReceiveChunk.Observe(float64(n))
		l.log.Debug("received", "bytes", n, "remote", c.addr)
		data := c.buf[:n]
		l.notify("received", func() { l.srv.listener.Received(data, c.addr) })
	}
}

func (l *eventLoop) flush(c *clientConn) {
	n, err := c.flush(l.mux)
	if n > 0 {
		l.srv.metrics.BytesSent.Add(float64(n))
	}
	if err != nil {
		l.srv.sendFailed(c, err)
	}
}

// disconnect releases c exactly once and notifies the listener.
func (l *eventLoop) disconnect(c *clientConn, reason string, cause error) {
	first, dropped := c.markClosed(l.mux)
	if !first {
		return
	}
	l.registry.Remove(c.id)
	l.srv.pool.Release(c.buf)
	c.buf = nil

	m := l.srv.metrics
	m.ConnectionsActive.Dec()
	m.Disconnects.WithLabelValues(reason).Inc()
	if dropped > 0 {
		l.log.Warn("dropped unsent bytes on close", "remote", c.addr, "bytes", dropped)
	}
	if c.span != nil {
		c.span.SetAttributes(
			attribute.Int64("hioload.bytes_received", c.received),
			attribute.String("hioload.disconnect_reason", reason),
		)
		if cause != nil {
			c.span.RecordError(cause)
			c.span.SetStatus(codes.Error, cause.Error())
		}
		c.span.End()
	}

	l.notify("disconnected", func() { l.srv.listener.Disconnected(c.addr) })
}

// shutdown disconnects every tracked connection and releases the endpoint
// and the multiplexer. Runs on the loop goroutine after the last iteration.
func (l *eventLoop) shutdown() {
	l.srv.state.CompareAndSwap(int32(api.StateRunning), int32(api.StateStopping))
	l.registry.Range(func(c *clientConn) bool {
		l.disconnect(c, control.ReasonShutdown, nil)
		return true
	})
	if err := l.mux.Deregister(l.ep.FD); err != nil {
		l.log.Warn("deregister listening endpoint", "error", err)
	}
	if err := l.ep.Close(); err != nil {
		l.log.Warn("close listening endpoint", "error", err)
	}
	if err := l.mux.Close(); err != nil {
		l.log.Warn("close multiplexer", "error", err)
	}
	l.srv.state.Store(int32(api.StateStopped))
	l.log.Info("event loop stopped")
}

// notify runs a listener callback, keeping the loop alive if it panics.
func (l *eventLoop) notify(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("listener panicked", "event", event, "panic", r)
		}
	}()
	fn()
}
