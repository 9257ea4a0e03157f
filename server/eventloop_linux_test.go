//go:build linux
// +build linux

package server

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/fake"
	"github.com/momentics/hioload-tcp/internal/transport"
	"go.opentelemetry.io/otel/trace/noop"
)

// newDispatchLoop builds an event loop over a real listening socket and a
// scripted multiplexer. The loop goroutine is not started; tests call
// dispatch directly.
func newDispatchLoop(t *testing.T, rec api.Listener) (*eventLoop, *fake.Multiplexer) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BufferSize = 64
	cfg.LoopNice = 0
	s, err := New(cfg, rec,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTracerProvider(noop.NewTracerProvider()),
	)
	if err != nil {
		t.Fatal(err)
	}
	ep, err := transport.Listen("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	mux := fake.NewMultiplexer()
	if err := mux.RegisterAccept(ep.FD); err != nil {
		t.Fatal(err)
	}
	l := newEventLoop(s, mux, ep)
	t.Cleanup(l.shutdown)
	return l, mux
}

func dialLoop(t *testing.T, l *eventLoop) net.Conn {
	t.Helper()
	c, err := net.Dial("tcp4", l.ep.Addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// dispatchUntil repeats dispatch of key until cond holds or a deadline passes.
func dispatchUntil(l *eventLoop, key func() api.ReadinessKey, cond func() bool, step func()) bool {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		l.dispatch(key())
		if step != nil {
			step()
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

func TestDispatchAcceptsOneConnectionPerKey(t *testing.T) {
	rec := fake.NewRecordingListener()
	l, mux := newDispatchLoop(t, rec)
	const pending = 3
	for i := 0; i < pending; i++ {
		dialLoop(t, l)
	}

	accept := func() api.ReadinessKey { return mux.Key(l.ep.FD, api.InterestAccept) }
	before := 0
	ok := dispatchUntil(l, accept, func() bool { return l.registry.Len() == pending }, func() {
		if n := l.registry.Len(); n-before > 1 {
			t.Fatalf("one accept-ready key took %d connections", n-before)
		}
		before = l.registry.Len()
	})
	if !ok {
		t.Fatalf("accepted %d of %d pending connections", l.registry.Len(), pending)
	}

	// Nothing left pending: another key is a no-op.
	l.dispatch(accept())
	if n := l.registry.Len(); n != pending {
		t.Errorf("registry holds %d connections, want %d", n, pending)
	}
	if n := rec.Count(fake.Connected, ""); n != pending {
		t.Errorf("connected fired %d times", n)
	}
}

func TestDispatchSkipsStaleKeys(t *testing.T) {
	rec := fake.NewRecordingListener()
	l, mux := newDispatchLoop(t, rec)
	accept := func() api.ReadinessKey { return mux.Key(l.ep.FD, api.InterestAccept) }

	// A listener key from an older registration never accepts.
	stale := accept()
	stale.Gen++
	first := dialLoop(t, l)
	l.dispatch(stale)
	if l.registry.Len() != 0 {
		t.Fatal("stale accept key accepted a connection")
	}

	if !dispatchUntil(l, accept, func() bool { return l.registry.Len() == 1 }, nil) {
		t.Fatal("connection never accepted")
	}
	c, _ := l.registry.Current()
	oldKey := mux.Key(c.fd, api.InterestRead)
	first.Write([]byte("x"))
	l.disconnect(c, "peer", nil)

	// The descriptor may be reused by the next accept; the old key must
	// still be rejected.
	second := dialLoop(t, l)
	if !dispatchUntil(l, accept, func() bool { return l.registry.Len() == 1 }, nil) {
		t.Fatal("second connection never accepted")
	}
	next, _ := l.registry.Current()
	second.Write([]byte("y"))
	time.Sleep(20 * time.Millisecond)
	l.dispatch(oldKey)
	if n := rec.Count(fake.Received, ""); n != 0 {
		t.Fatalf("stale read key delivered %d chunks", n)
	}

	read := func() api.ReadinessKey { return mux.Key(next.fd, api.InterestRead) }
	if !dispatchUntil(l, read, func() bool { return rec.Count(fake.Received, "") == 1 }, nil) {
		t.Fatal("current read key delivered nothing")
	}
	if got := string(rec.ReceivedBytes(next.addr)); got != "y" {
		t.Errorf("received %q from the current connection", got)
	}
}
