// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import (
	"sync/atomic"

	"github.com/momentics/hioload-tcp/api"
)

// BytePool hands out buffers of a fixed capacity. Requests larger than the
// capacity are served by plain allocation and never pooled.
type BytePool struct {
	size  int
	pool  ObjectPool[*[]byte]
	alloc atomic.Int64
	free  atomic.Int64
}

var _ api.BytePool = (*BytePool)(nil)

// NewBytePool returns a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	bp := &BytePool{size: size}
	bp.pool = NewSyncPool(
		func() *[]byte {
			buf := make([]byte, size)
			return &buf
		},
		// Only buffers of the pooled capacity are reused, restored to full length.
		func(p *[]byte) bool {
			if cap(*p) != size {
				return false
			}
			*p = (*p)[:size]
			return true
		},
	)
	return bp
}

// Size returns the pooled buffer capacity.
func (b *BytePool) Size() int { return b.size }

// Acquire returns a buffer of length n.
func (b *BytePool) Acquire(n int) []byte {
	b.alloc.Add(1)
	if n > b.size {
		return make([]byte, n)
	}
	p := b.pool.Get()
	return (*p)[:n]
}

// Release returns buf to the pool if it came from it.
func (b *BytePool) Release(buf []byte) {
	if buf == nil {
		return
	}
	b.free.Add(1)
	b.pool.Put(&buf)
}

// Stats reports acquire/release counters.
func (b *BytePool) Stats() api.BufferPoolStats {
	a, f := b.alloc.Load(), b.free.Load()
	return api.BufferPoolStats{TotalAlloc: a, TotalFree: f, InUse: a - f}
}
