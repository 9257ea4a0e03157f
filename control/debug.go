// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug inspector registry for internal inspection.

package control

import (
	"runtime"
	"sync"

	"github.com/momentics/hioload-tcp/api"
)

// DebugInspectors holds registered inspector functions.
type DebugInspectors struct {
	mu         sync.RWMutex
	inspectors map[string]api.InspectorFunc
}

var _ api.Debug = (*DebugInspectors)(nil)

// NewDebugInspectors creates a inspector registry with platform inspectors installed.
func NewDebugInspectors() *DebugInspectors {
	dp := &DebugInspectors{
		inspectors: make(map[string]api.InspectorFunc),
	}
	dp.RegisterInspector("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterInspector("platform.os", func() any {
		return runtime.GOOS
	})
	return dp
}

// RegisterInspector inserts a named debug hook, replacing any previous one.
func (dp *DebugInspectors) RegisterInspector(name string, fn api.InspectorFunc) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.inspectors[name] = fn
}

// DumpState returns output of all inspectors.
func (dp *DebugInspectors) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.inspectors))
	for k, fn := range dp.inspectors {
		out[k] = fn()
	}
	return out
}
