// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package pool

import "sync"

// ObjectPool recycles values of one type.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}

// SyncPool is an ObjectPool backed by sync.Pool. Values returned with Put
// pass through the optional recycle hook first; a hook returning false
// drops the value instead of pooling it.
type SyncPool[T any] struct {
	pool    sync.Pool
	recycle func(T) bool
}

// NewSyncPool creates a SyncPool that allocates with creator.
func NewSyncPool[T any](creator func() T, recycle func(T) bool) *SyncPool[T] {
	sp := &SyncPool[T]{recycle: recycle}
	sp.pool.New = func() any { return creator() }
	return sp
}

func (sp *SyncPool[T]) Get() T {
	return sp.pool.Get().(T)
}

func (sp *SyncPool[T]) Put(obj T) {
	if sp.recycle != nil && !sp.recycle(obj) {
		return
	}
	sp.pool.Put(obj)
}
