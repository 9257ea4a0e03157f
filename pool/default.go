// File: pool/default.go
// Author: momentics <momentics@gmail.com>

package pool

// DefaultBufferSize is the receive-buffer capacity used when none is configured.
const DefaultBufferSize = 4096
