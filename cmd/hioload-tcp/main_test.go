package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/prometheus/client_golang/prometheus"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := newLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	log.Info("hidden")
	log.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record emitted at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON record, got %s", out)
	}

	if _, _, err := newLogger(io.Discard, "loud", "text"); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("bad level: expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := newLogger(io.Discard, "info", "xml"); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("bad format: expected ErrInvalidArgument, got %v", err)
	}
}

type recordingSender struct {
	sent  [][]byte
	addrs []string
}

func (r *recordingSender) SendToAddr(addr string, data []byte) error {
	r.sent = append(r.sent, append([]byte(nil), data...))
	r.addrs = append(r.addrs, addr)
	return nil
}

func TestLogListenerEcho(t *testing.T) {
	out := &recordingSender{}
	l := &logListener{log: slog.New(slog.NewTextHandler(io.Discard, nil)), out: out}

	l.Received([]byte("quiet"), "127.0.0.1:1")
	if len(out.sent) != 0 {
		t.Fatal("echo disabled but bytes were sent")
	}
	l.echo.Store(true)
	l.Received([]byte("hello"), "127.0.0.1:1")
	l.Received([]byte("other"), "127.0.0.1:2")
	if len(out.sent) != 2 || string(out.sent[0]) != "hello" || string(out.sent[1]) != "other" {
		t.Fatalf("echo sent %q", out.sent)
	}
	if out.addrs[0] != "127.0.0.1:1" || out.addrs[1] != "127.0.0.1:2" {
		t.Errorf("echo went to %v, want each sender", out.addrs)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version", "--short"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != version {
		t.Errorf("version --short printed %q, want %q", got, version)
	}
}

func TestServeRejectsBadFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"serve", "--log-level", "loud", "--admin-addr", ""})
	if err := cmd.Execute(); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRuntimeSettingsReload(t *testing.T) {
	_, level, err := newLogger(io.Discard, "info", "text")
	if err != nil {
		t.Fatal(err)
	}
	ll := &logListener{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	cs := runtimeSettings(serveOptions{logLevel: "info"}, level, ll)

	if err := cs.SetConfig(map[string]any{"log.level": "debug", "listener.echo": true}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
	if !ll.echo.Load() {
		t.Error("echo not enabled by reload")
	}
	if err := cs.SetConfig(map[string]any{"log.level": "verbose"}); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("bad level: got %v", err)
	}
}

func TestMetricsOptions(t *testing.T) {
	if opts := metricsOptions(serveOptions{}); len(opts) != 0 {
		t.Fatalf("defaults produced %d options", len(opts))
	}
	o := serveOptions{metricsSubsystem: "edge", metricsLabels: map[string]string{"zone": "b"}}
	reg := prometheus.NewRegistry()
	m := control.NewMetrics(append(metricsOptions(o), control.WithRegistry(reg))...)
	m.Accepted.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() == "hioload_tcp_edge_connections_accepted_total" {
			if l := f.GetMetric()[0].GetLabel(); len(l) != 1 || l[0].GetValue() != "b" {
				t.Errorf("labels = %v", l)
			}
			return
		}
	}
	t.Fatal("subsystem flag not applied")
}
