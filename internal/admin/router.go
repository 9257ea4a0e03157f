// File: internal/admin/router.go
// Package admin exposes the operational HTTP surface of a running server:
// Prometheus metrics, debug state, tracked connections and health.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source is the read-only view of a server the router reports on.
type Source interface {
	State() api.LoopState
	Addr() string
	Connections() []api.ConnInfo
}

// Options configures NewRouter. Nil fields disable the matching route.
type Options struct {
	Gatherer prometheus.Gatherer
	Debug    api.Debug
	Config   *control.ConfigStore
	Logger   *slog.Logger
}

const maxConfigBody = 64 << 10

type stateResponse struct {
	State       string         `json:"state"`
	Addr        string         `json:"addr"`
	Connections int            `json:"connections"`
	Inspectors  map[string]any `json:"inspectors,omitempty"`
}

// NewRouter builds the admin handler for src.
func NewRouter(src Source, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "admin")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		st := src.State()
		if st != api.StateRunning {
			http.Error(w, st.String(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	r.Route("/debug", func(r chi.Router) {
		r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
			resp := stateResponse{
				State:       src.State().String(),
				Addr:        src.Addr(),
				Connections: len(src.Connections()),
			}
			if opts.Debug != nil {
				resp.Inspectors = opts.Debug.DumpState()
			}
			writeJSON(w, log, resp)
		})
		r.Get("/connections", func(w http.ResponseWriter, _ *http.Request) {
			conns := src.Connections()
			if conns == nil {
				conns = []api.ConnInfo{}
			}
			writeJSON(w, log, conns)
		})
		if opts.Config != nil {
			r.Get("/config", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, log, opts.Config.GetSnapshot())
			})
			r.Put("/config", func(w http.ResponseWriter, req *http.Request) {
				var update map[string]any
				if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxConfigBody)).Decode(&update); err != nil {
					writeError(w, log, api.NewError(api.ErrCodeInvalidArgument, "malformed JSON body").
						WithContext("error", err.Error()))
					return
				}
				if err := opts.Config.SetConfig(update); err != nil {
					var apiErr *api.Error
					if !errors.As(err, &apiErr) {
						apiErr = api.NewError(api.ErrCodeInternal, err.Error()).WithCause(err)
					}
					writeError(w, log, apiErr)
					return
				}
				log.Info("runtime settings updated", "keys", len(update))
				writeJSON(w, log, opts.Config.GetSnapshot())
			})
		}
	})
	return r
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("encode response", "error", err)
	}
}

// writeError sends e as a JSON body with the status matching its code.
func writeError(w http.ResponseWriter, log *slog.Logger, e *api.Error) {
	status := http.StatusInternalServerError
	switch e.Code {
	case api.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case api.ErrCodeNotFound:
		status = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(e); err != nil {
		log.Warn("encode error response", "error", err)
	}
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("admin request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}
