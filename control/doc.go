// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, debug introspection and tunable settings for the
// hioload-tcp event loop.
//
// Provides concurrent-safe primitives including:
//   - Prometheus collectors for connection lifecycle and byte counters
//   - Named debug inspectors dumped as a state snapshot
//   - A validated runtime settings store with reload hooks
//
// This package is cross-platform.
package control
