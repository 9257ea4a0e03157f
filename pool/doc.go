// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package pool provides reusable fixed-capacity receive buffers, one per
// accepted connection, returned to the pool when the connection closes.
package pool
