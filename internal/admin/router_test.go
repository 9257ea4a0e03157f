package admin_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/admin"
	"github.com/prometheus/client_golang/prometheus"
)

type stubSource struct {
	state api.LoopState
	addr  string
	conns []api.ConnInfo
}

func (s *stubSource) State() api.LoopState        { return s.state }
func (s *stubSource) Addr() string                { return s.addr }
func (s *stubSource) Connections() []api.ConnInfo { return s.conns }

func newTestRouter(src admin.Source) (http.Handler, *control.Metrics) {
	m := control.NewMetrics(control.WithRegistry(prometheus.NewRegistry()))
	h := admin.NewRouter(src, admin.Options{
		Gatherer: m.Gatherer(),
		Debug:    control.NewDebugInspectors(),
		Config:   newTestConfig(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h, m
}

func newTestConfig() *control.ConfigStore {
	cs := control.NewConfigStore()
	cs.Define("listener.echo", false, control.BoolSetting)
	return cs
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	src := &stubSource{state: api.StateRunning}
	h, _ := newTestRouter(src)

	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("running: expected 200, got %d", rec.Code)
	}
	for _, st := range []api.LoopState{api.StateIdle, api.StateStopping, api.StateStopped} {
		src.state = st
		rec := get(t, h, "/healthz")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", st, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), st.String()) {
			t.Errorf("%s: body %q does not name the state", st, rec.Body.String())
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, m := newTestRouter(&stubSource{state: api.StateRunning})
	m.Accepted.Inc()

	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hioload_tcp_connections_accepted_total 1") {
		t.Errorf("accepted counter missing from exposition:\n%s", rec.Body.String())
	}
}

func TestDebugState(t *testing.T) {
	src := &stubSource{
		state: api.StateRunning,
		addr:  "127.0.0.1:5891",
		conns: []api.ConnInfo{{ID: 1, RemoteAddr: "127.0.0.1:40000", FD: 9}},
	}
	h, _ := newTestRouter(src)

	rec := get(t, h, "/debug/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		State       string         `json:"state"`
		Addr        string         `json:"addr"`
		Connections int            `json:"connections"`
		Inspectors  map[string]any `json:"inspectors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.State != "running" || body.Addr != src.addr || body.Connections != 1 {
		t.Errorf("unexpected state body %+v", body)
	}
	if _, ok := body.Inspectors["platform.cpus"]; !ok {
		t.Errorf("inspectors missing platform.cpus: %v", body.Inspectors)
	}
}

func TestDebugConnections(t *testing.T) {
	src := &stubSource{state: api.StateIdle}
	h, _ := newTestRouter(src)

	rec := get(t, h, "/debug/connections")
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("no connections: expected [], got %s", got)
	}

	src.conns = []api.ConnInfo{
		{ID: 1, RemoteAddr: "127.0.0.1:40000"},
		{ID: 2, RemoteAddr: "[::1]:40001"},
	}
	rec = get(t, h, "/debug/connections")
	var conns []api.ConnInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &conns); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(conns) != 2 || conns[1].RemoteAddr != "[::1]:40001" {
		t.Errorf("unexpected connections %+v", conns)
	}
}

func TestUnknownRoute(t *testing.T) {
	h, _ := newTestRouter(&stubSource{})
	if rec := get(t, h, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRuntimeConfig(t *testing.T) {
	h, _ := newTestRouter(&stubSource{state: api.StateRunning})

	put := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/debug/config", strings.NewReader(body)))
		return rec
	}
	if rec := put(`{"listener.echo": true}`); rec.Code != http.StatusOK {
		t.Fatalf("valid update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var snap map[string]any
	if err := json.Unmarshal(get(t, h, "/debug/config").Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap["listener.echo"] != true {
		t.Errorf("snapshot after update = %v", snap)
	}

	cases := []struct {
		body string
		code int
		name string
		key  any
	}{
		{`{"listener.echo": "yes"}`, http.StatusBadRequest, "invalid_argument", "listener.echo"},
		{`{"port": 1}`, http.StatusNotFound, "not_found", "port"},
		{`not json`, http.StatusBadRequest, "invalid_argument", nil},
	}
	for _, tc := range cases {
		rec := put(tc.body)
		if rec.Code != tc.code {
			t.Errorf("%s: expected %d, got %d", tc.body, tc.code, rec.Code)
			continue
		}
		var body struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Context map[string]any `json:"context"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Errorf("%s: error body is not JSON: %v", tc.body, err)
			continue
		}
		if body.Code != tc.name || body.Message == "" {
			t.Errorf("%s: unexpected error body %+v", tc.body, body)
		}
		if tc.key != nil && body.Context["key"] != tc.key {
			t.Errorf("%s: context key = %v, want %v", tc.body, body.Context["key"], tc.key)
		}
	}
}
