// File: server/server.go
// Package server provides the public facade of hioload-tcp: bind a port,
// run the selector-driven event loop on a dedicated thread, send bytes to
// the current connection, and stop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/transport"
	"github.com/momentics/hioload-tcp/pool"
	"github.com/momentics/hioload-tcp/reactor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/momentics/hioload-tcp/server"

// Server is the facade over one listening endpoint and its event loop.
type Server struct {
	cfg         *Config
	listener    api.Listener
	log         *slog.Logger
	metrics     *control.Metrics
	inspectors  *control.DebugInspectors
	tracer      trace.Tracer
	pool        api.BytePool
	onSendError func(error)

	mu     sync.Mutex // serializes endpoint reconfiguration (Bind/Finish)
	loop   atomic.Pointer[eventLoop]
	state  atomic.Int32
	nextID atomic.Uint64
}

// New constructs a Server. The listener is required; pass an explicit no-op
// implementation to ignore events.
func New(cfg *Config, l api.Listener, opts ...Option) (*Server, error) {
	if l == nil {
		return nil, fmt.Errorf("server: listener is required: %w", api.ErrInvalidArgument)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		cfg:      &c,
		listener: l,
		log:      slog.Default(),
		tracer:   otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = control.NewMetrics()
	}
	if s.inspectors == nil {
		s.inspectors = control.NewDebugInspectors()
	}
	if s.pool == nil {
		s.pool = pool.NewBytePool(c.BufferSize)
	}
	s.log = s.log.With("component", "server")
	s.registerInspectors()
	return s, nil
}

func (s *Server) registerInspectors() {
	s.inspectors.RegisterInspector("loop.state", func() any { return s.State().String() })
	s.inspectors.RegisterInspector("endpoint.addr", func() any { return s.Addr() })
	s.inspectors.RegisterInspector("connections.active", func() any { return len(s.Connections()) })
	s.inspectors.RegisterInspector("buffers", func() any { return s.pool.Stats() })
}

// Bind opens the listening endpoint on port and starts the event loop. Any
// previous endpoint is torn down first and its loop is observed stopped
// before the new one starts. Port 0 binds an ephemeral port; see Addr.
//
// Failures are returned as *api.EndpointBindError and leave no loop running.
// Bind must not be called from a Listener callback.
func (s *Server) Bind(port int) error {
	if l := s.loop.Load(); l != nil && l.onLoopThread() {
		return fmt.Errorf("bind from event loop thread: %w", api.ErrInvalidState)
	}
	for {
		s.Finish()
		s.mu.Lock()
		if l := s.loop.Load(); l == nil || l.finished() {
			break
		}
		// A concurrent Bind started a new loop in between.
		s.mu.Unlock()
	}
	defer s.mu.Unlock()

	_, span := s.tracer.Start(context.Background(), "tcp.bind",
		trace.WithAttributes(attribute.Int("net.host.port", port)))
	defer span.End()

	mux, err := reactor.New(s.cfg.MaxEvents)
	if err != nil {
		code := api.ErrCodeInternal
		if errors.Is(err, api.ErrNotSupported) {
			code = api.ErrCodeNotSupported
		}
		return s.bindFailed(span, &api.EndpointBindError{Port: port, Op: "multiplexer", Code: code, Err: err})
	}
	ep, err := transport.Listen(s.cfg.Host, port)
	if err != nil {
		mux.Close()
		return s.bindFailed(span, err)
	}
	if err := mux.RegisterAccept(ep.FD); err != nil {
		ep.Close()
		mux.Close()
		return s.bindFailed(span, &api.EndpointBindError{Port: port, Op: "register", Code: api.ErrCodeInternal, Err: err})
	}

	l := newEventLoop(s, mux, ep)
	s.state.Store(int32(api.StateBound))
	s.loop.Store(l)
	s.metrics.Binds.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.String("net.host.addr", ep.Addr.String()))

	s.state.Store(int32(api.StateRunning))
	go l.run()
	s.log.Info("accepting connections", "port", ep.Port(), "addr", ep.Addr.String())
	return nil
}

func (s *Server) bindFailed(span trace.Span, err error) error {
	s.metrics.Binds.WithLabelValues("error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.log.Error("bind failed", "error", err)
	return err
}

// Finish stops the event loop if one is running and waits until it has
// released its connections and endpoint. Called from a Listener callback it
// only signals; the loop stops after the current iteration. Idempotent.
func (s *Server) Finish() {
	s.mu.Lock()
	l := s.loop.Load()
	if l == nil {
		s.mu.Unlock()
		return
	}
	if l.signal() {
		s.state.CompareAndSwap(int32(api.StateRunning), int32(api.StateStopping))
		if err := l.mux.Wakeup(); err != nil {
			s.log.Warn("wake event loop", "error", err)
		}
	}
	s.mu.Unlock()

	if l.onLoopThread() {
		return
	}
	<-l.done
}

// Send writes data to the current connection: the most recently accepted
// connection that is still open. It runs on the caller's goroutine. Bytes
// the socket cannot take immediately are queued and flushed by the loop.
// Failures are returned as *api.WriteError, logged, and passed to the
// send-error handler; they never affect the loop.
func (s *Server) Send(data []byte) error {
	l := s.loop.Load()
	if l == nil {
		return s.sendFailed(nil, api.ErrNoConnection)
	}
	c, ok := l.registry.Current()
	if !ok {
		return s.sendFailed(nil, api.ErrNoConnection)
	}
	return s.sendTo(l, c, data)
}

// SendTo writes data to the connection with the given id.
func (s *Server) SendTo(id uint64, data []byte) error {
	l := s.loop.Load()
	if l == nil {
		return s.sendFailed(nil, api.ErrNoConnection)
	}
	c, ok := l.registry.Get(id)
	if !ok {
		return s.sendFailed(nil, fmt.Errorf("connection %d: %w", id, api.ErrNotFound))
	}
	return s.sendTo(l, c, data)
}

// SendToAddr writes data to the connection whose remote address is addr, as
// reported to the Listener. Replying from a Received callback uses this.
func (s *Server) SendToAddr(addr string, data []byte) error {
	l := s.loop.Load()
	if l == nil {
		return s.sendFailed(nil, api.ErrNoConnection)
	}
	c, ok := l.registry.ByAddr(addr)
	if !ok {
		return s.sendFailed(nil, fmt.Errorf("connection %s: %w", addr, api.ErrNotFound))
	}
	return s.sendTo(l, c, data)
}

func (s *Server) sendTo(l *eventLoop, c *clientConn, data []byte) error {
	n, err := c.write(l.mux, data)
	if n > 0 {
		s.metrics.BytesSent.Add(float64(n))
	}
	if err != nil {
		return s.sendFailed(c, err)
	}
	s.log.Debug("sent", "bytes", len(data), "remote", c.addr)
	return nil
}

func (s *Server) sendFailed(c *clientConn, err error) error {
	werr := &api.WriteError{Err: err}
	if c != nil {
		werr.ConnID, werr.Addr = c.id, c.addr
	}
	s.metrics.WriteFailures.Inc()
	s.log.Warn("send failed", "error", werr)
	if s.onSendError != nil {
		s.onSendError(werr)
	}
	return werr
}

// State returns the current lifecycle state.
func (s *Server) State() api.LoopState {
	return api.LoopState(s.state.Load())
}

// Addr returns the bound address while a loop is active, "" otherwise.
func (s *Server) Addr() string {
	l := s.loop.Load()
	if l == nil || l.finished() {
		return ""
	}
	return l.ep.Addr.String()
}

// Port returns the bound port while a loop is active, 0 otherwise.
func (s *Server) Port() int {
	l := s.loop.Load()
	if l == nil || l.finished() {
		return 0
	}
	return l.ep.Port()
}

// Connections returns the tracked connections ordered by id.
func (s *Server) Connections() []api.ConnInfo {
	l := s.loop.Load()
	if l == nil {
		return nil
	}
	conns := l.registry.Snapshot()
	out := make([]api.ConnInfo, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.info())
	}
	return out
}

// Done returns a channel closed when the current loop has stopped. With no
// loop ever started, the returned channel is already closed.
func (s *Server) Done() <-chan struct{} {
	if l := s.loop.Load(); l != nil {
		return l.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Metrics returns the collectors used by this server.
func (s *Server) Metrics() *control.Metrics {
	return s.metrics
}

// Inspectors returns the debug inspector registry.
func (s *Server) Inspectors() *control.DebugInspectors {
	return s.inspectors
}
