package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/admin"
	"github.com/momentics/hioload-tcp/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	port       int
	host       string
	bufferSize int
	adminAddr  string
	echo       bool
	loopCPU    int
	loopNice   int
	logLevel   string
	logFormat  string

	metricsSubsystem string
	metricsLabels    map[string]string
}

func serveCmd() *cobra.Command {
	var o serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Bind a port and run the event loop",
		Long: `Bind a TCP port and run the event loop until SIGINT or SIGTERM.

Examples:
  hioload-tcp serve
  hioload-tcp serve --port=7000 --echo
  hioload-tcp serve --admin-addr="" --log-format=json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, o)
		},
	}

	defaults := server.DefaultConfig()
	cmd.Flags().IntVarP(&o.port, "port", "p", 5891, "TCP port to listen on (0 picks an ephemeral port)")
	cmd.Flags().StringVarP(&o.host, "host", "H", defaults.Host, "Address to bind (empty binds all interfaces)")
	cmd.Flags().IntVar(&o.bufferSize, "buffer-size", defaults.BufferSize, "Per-connection receive buffer in bytes")
	cmd.Flags().StringVar(&o.adminAddr, "admin-addr", ":9090", "Admin HTTP listen address (empty disables it)")
	cmd.Flags().BoolVar(&o.echo, "echo", false, "Write received bytes back to the peer that sent them")
	cmd.Flags().IntVar(&o.loopCPU, "loop-cpu", defaults.LoopCPU, "CPU to pin the event-loop thread to (-1 leaves it unpinned)")
	cmd.Flags().IntVar(&o.loopNice, "loop-nice", defaults.LoopNice, "Nice increment applied to the event-loop thread")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&o.logFormat, "log-format", "text", "Log format: text or json")
	cmd.Flags().StringVar(&o.metricsSubsystem, "metrics-subsystem", "", "Subsystem inserted into metric names (hioload_tcp_<subsystem>_...)")
	cmd.Flags().StringToStringVar(&o.metricsLabels, "metrics-label", nil, "Constant label added to every metric, as key=value (repeatable)")

	return cmd
}

func runServe(ctx context.Context, o serveOptions) error {
	logger, level, err := newLogger(os.Stderr, o.logLevel, o.logFormat)
	if err != nil {
		return err
	}

	cfg := server.DefaultConfig()
	cfg.Host = o.host
	cfg.BufferSize = o.bufferSize
	cfg.LoopCPU = o.loopCPU
	cfg.LoopNice = o.loopNice

	metrics := control.NewMetrics(metricsOptions(o)...)
	ll := &logListener{log: logger.With("component", "listener")}
	ll.echo.Store(o.echo)
	settings := runtimeSettings(o, level, ll)
	srv, err := server.New(cfg, ll, server.WithLogger(logger), server.WithMetrics(metrics))
	if err != nil {
		return err
	}
	ll.out = srv

	if err := srv.Bind(o.port); err != nil {
		return err
	}
	defer srv.Finish()

	var adminSrv *http.Server
	if o.adminAddr != "" {
		adminSrv = &http.Server{
			Addr: o.adminAddr,
			Handler: admin.NewRouter(srv, admin.Options{
				Gatherer: metrics.Gatherer(),
				Debug:    srv.Inspectors(),
				Config:   settings,
				Logger:   logger,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("admin endpoint listening", "addr", o.adminAddr)
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin endpoint failed", "error", err)
			}
		}()
	}

	var loopErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "cause", context.Cause(ctx))
	case <-srv.Done():
		loopErr = fmt.Errorf("event loop stopped unexpectedly on port %d", o.port)
	}
	srv.Finish()

	if adminSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("admin shutdown", "error", err)
		}
	}
	return loopErr
}

func metricsOptions(o serveOptions) []control.MetricsOption {
	var opts []control.MetricsOption
	if o.metricsSubsystem != "" {
		opts = append(opts, control.WithSubsystem(o.metricsSubsystem))
	}
	if len(o.metricsLabels) > 0 {
		opts = append(opts, control.WithConstLabels(prometheus.Labels(o.metricsLabels)))
	}
	return opts
}

// runtimeSettings exposes the knobs that can change while serving.
func runtimeSettings(o serveOptions, level *slog.LevelVar, ll *logListener) *control.ConfigStore {
	cs := control.NewConfigStore()
	cs.Define("log.level", o.logLevel, control.StringSetting(logLevels...))
	cs.Define("listener.echo", o.echo, control.BoolSetting)
	cs.OnReload(func(snap map[string]any) {
		if lvl, err := parseLevel(snap["log.level"].(string)); err == nil {
			level.Set(lvl)
		}
		ll.echo.Store(snap["listener.echo"].(bool))
	})
	return cs
}
