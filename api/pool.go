// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines the pooling API for receive buffers.

package api

// BytePool provides reusable []byte buffers for the read path.
type BytePool interface {
	// Acquire returns a slice of exactly n bytes.
	Acquire(n int) []byte

	// Release returns a buffer to the pool. The buffer must not be used afterwards.
	Release(buf []byte)

	// Stats exposes allocation accounting for observability.
	Stats() BufferPoolStats
}

// BufferPoolStats aggregates buffer allocation/reuse stats.
type BufferPoolStats struct {
	TotalAlloc int64 `json:"total_alloc"`
	TotalFree  int64 `json:"total_free"`
	InUse      int64 `json:"in_use"`
}
