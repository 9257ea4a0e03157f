// Package fake
// Author: momentics <momentics@gmail.com>
//
// Counting buffer pool for leak checks in tests.

package fake

import (
	"sync"

	"github.com/momentics/hioload-tcp/api"
)

// BytePool implements api.BytePool and tracks outstanding buffers.
type BytePool struct {
	mu          sync.Mutex
	outstanding map[*byte]int
	alloc       int64
	free        int64
}

var _ api.BytePool = (*BytePool)(nil)

// NewBytePool creates an empty counting pool.
func NewBytePool() *BytePool {
	return &BytePool{outstanding: make(map[*byte]int)}
}

// Acquire allocates a fresh buffer of n bytes.
func (p *BytePool) Acquire(n int) []byte {
	buf := make([]byte, n)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alloc++
	if n > 0 {
		p.outstanding[&buf[0]] = n
	}
	return buf
}

// Release forgets buf. Releasing a buffer twice or one never acquired is
// counted as a free but does not underflow Outstanding.
func (p *BytePool) Release(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free++
	if cap(buf) > 0 {
		delete(p.outstanding, &buf[:1][0])
	}
}

// Outstanding returns how many acquired buffers have not been released.
func (p *BytePool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outstanding)
}

func (p *BytePool) Stats() api.BufferPoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return api.BufferPoolStats{
		TotalAlloc: p.alloc,
		TotalFree:  p.free,
		InUse:      int64(len(p.outstanding)),
	}
}
