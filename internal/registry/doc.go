// File: internal/registry/doc.go
// Package registry
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection bookkeeping for the event loop: every accepted connection keyed
// by a stable identifier, with a descriptor index for readiness dispatch and
// a notion of the current send target.

package registry
