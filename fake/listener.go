// Package fake provides test doubles for hioload-tcp components.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"bytes"
	"sync"
	"time"

	"github.com/momentics/hioload-tcp/api"
)

// EventKind identifies a Listener callback.
type EventKind int

const (
	Connected EventKind = iota
	Received
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Received:
		return "received"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is one recorded callback. Data is a private copy.
type Event struct {
	Kind EventKind
	Addr string
	Data []byte
}

// RecordingListener implements api.Listener and records every callback.
type RecordingListener struct {
	// OnConnected/OnReceived/OnDisconnected run after recording, on the loop thread.
	OnConnected    func(addr string)
	OnReceived     func(data []byte, addr string)
	OnDisconnected func(addr string)

	mu      sync.Mutex
	events  []Event
	changed chan struct{}
}

var _ api.Listener = (*RecordingListener)(nil)

// NewRecordingListener creates an empty recorder.
func NewRecordingListener() *RecordingListener {
	return &RecordingListener{changed: make(chan struct{})}
}

func (r *RecordingListener) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	close(r.changed)
	r.changed = make(chan struct{})
	r.mu.Unlock()
}

func (r *RecordingListener) Connected(addr string) {
	r.record(Event{Kind: Connected, Addr: addr})
	if r.OnConnected != nil {
		r.OnConnected(addr)
	}
}

func (r *RecordingListener) Received(data []byte, addr string) {
	r.record(Event{Kind: Received, Addr: addr, Data: append([]byte(nil), data...)})
	if r.OnReceived != nil {
		r.OnReceived(data, addr)
	}
}

func (r *RecordingListener) Disconnected(addr string) {
	r.record(Event{Kind: Disconnected, Addr: addr})
	if r.OnDisconnected != nil {
		r.OnDisconnected(addr)
	}
}

// Events returns a copy of all recorded events in callback order.
func (r *RecordingListener) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// EventsFor returns the recorded events for one peer address.
func (r *RecordingListener) EventsFor(addr string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Addr == addr {
			out = append(out, ev)
		}
	}
	return out
}

// Count returns how many events of kind were recorded for addr ("" = any).
func (r *RecordingListener) Count(kind EventKind, addr string) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Kind == kind && (addr == "" || ev.Addr == addr) {
			n++
		}
	}
	return n
}

// ReceivedBytes concatenates every chunk received from addr.
func (r *RecordingListener) ReceivedBytes(addr string) []byte {
	var buf bytes.Buffer
	for _, ev := range r.EventsFor(addr) {
		if ev.Kind == Received {
			buf.Write(ev.Data)
		}
	}
	return buf.Bytes()
}

// WaitFor blocks until cond holds for the recorded events or timeout elapses.
func (r *RecordingListener) WaitFor(cond func([]Event) bool, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		r.mu.Lock()
		events := append([]Event(nil), r.events...)
		changed := r.changed
		r.mu.Unlock()
		if cond(events) {
			return true
		}
		select {
		case <-changed:
		case <-deadline.C:
			return false
		}
	}
}

// Reset discards recorded events.
func (r *RecordingListener) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// NopListener ignores every event.
type NopListener struct{}

var _ api.Listener = NopListener{}

func (NopListener) Connected(string)        {}
func (NopListener) Disconnected(string)     {}
func (NopListener) Received([]byte, string) {}
