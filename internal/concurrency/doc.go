// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread placement for the event loop: locking the loop goroutine to one OS
// thread, raising its scheduling priority, and optional CPU pinning.
// Platform specifics live behind build tags; unsupported platforms no-op.
package concurrency
