// File: server/options.go
// Package server defines functional options for the Server facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log/slog"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"go.opentelemetry.io/otel/trace"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics shares a collector set, e.g. one registered with the
// process-wide registry served on /metrics.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracerProvider sets the provider for connection and bind spans.
// Default: the global OpenTelemetry provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithSendErrorHandler registers a side channel for write failures, including
// those hit while flushing queued bytes on the loop thread.
func WithSendErrorHandler(fn func(error)) Option {
	return func(s *Server) {
		s.onSendError = fn
	}
}

// WithBytePool overrides the receive-buffer pool.
func WithBytePool(p api.BytePool) Option {
	return func(s *Server) {
		if p != nil {
			s.pool = p
		}
	}
}

// WithInspectors shares a debug inspector registry.
func WithInspectors(p *control.DebugInspectors) Option {
	return func(s *Server) {
		if p != nil {
			s.inspectors = p
		}
	}
}
