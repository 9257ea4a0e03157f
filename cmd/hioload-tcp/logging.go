package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/momentics/hioload-tcp/api"
)

var logLevels = []string{"debug", "info", "warn", "error"}

func parseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", level, api.ErrInvalidArgument)
	}
	return lvl, nil
}

// newLogger builds the process logger from the --log-level and --log-format
// flags. The level stays adjustable at runtime through the returned LevelVar.
func newLogger(w io.Writer, level, format string) (*slog.Logger, *slog.LevelVar, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	lv := new(slog.LevelVar)
	lv.Set(lvl)
	opts := &slog.HandlerOptions{Level: lv}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), lv, nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), lv, nil
	default:
		return nil, nil, fmt.Errorf("log format %q: %w", format, api.ErrInvalidArgument)
	}
}

const previewLen = 64

// sender is the part of the server the logging listener echoes through.
type sender interface {
	SendToAddr(addr string, data []byte) error
}

// logListener logs every event and, with echo enabled, writes received
// bytes back to the peer they came from.
type logListener struct {
	log  *slog.Logger
	echo atomic.Bool
	out  sender
}

var _ api.Listener = (*logListener)(nil)

func (l *logListener) Connected(addr string) {
	l.log.Info("connected", "remote", addr)
}

func (l *logListener) Disconnected(addr string) {
	l.log.Info("disconnected", "remote", addr)
}

func (l *logListener) Received(data []byte, addr string) {
	preview := data
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	l.log.Info("received", "remote", addr, "bytes", len(data), "data", fmt.Sprintf("%q", preview))
	if l.echo.Load() && l.out != nil {
		// Send failures are already logged and counted by the server.
		_ = l.out.SendToAddr(addr, data)
	}
}
