// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw non-blocking socket primitives for the event loop: listening endpoint
// setup, single-shot accept, and read/write on connected descriptors.
// Platform code is strictly separated by build tags.

package transport
