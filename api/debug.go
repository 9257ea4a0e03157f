// Package api
// Author: momentics
//
// Live debug introspection support.

package api

// InspectorFunc reports one named piece of runtime state. It must be safe to
// call from any goroutine and should return JSON-encodable values.
type InspectorFunc func() any

// Debug exposes named state inspectors for diagnostics endpoints.
type Debug interface {
	// DumpState evaluates every inspector and returns the results by name.
	DumpState() map[string]any

	// RegisterInspector installs fn under name, replacing an earlier inspector.
	RegisterInspector(name string, fn InspectorFunc)
}
