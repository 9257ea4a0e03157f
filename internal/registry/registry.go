// File: internal/registry/registry.go
// Package registry
// Author: momentics <momentics@gmail.com>
//
// Thread-safe connection registry.

package registry

import (
	"sort"
	"sync"
)

// Entry is the minimum a tracked connection exposes.
type Entry interface {
	ID() uint64
	FD() int
	Addr() string
}

// Registry tracks active connections by id, descriptor and peer address. The
// loop goroutine adds and removes entries; sender goroutines look them up
// concurrently.
type Registry[C Entry] struct {
	mu      sync.RWMutex
	byID    map[uint64]C
	byFD    map[int]uint64
	byAddr  map[string]uint64
	current uint64
}

// New constructs an empty registry.
func New[C Entry]() *Registry[C] {
	return &Registry[C]{
		byID:   make(map[uint64]C),
		byFD:   make(map[int]uint64),
		byAddr: make(map[string]uint64),
	}
}

// Add records c and makes it the current send target. An entry already
// holding the same descriptor is replaced and returned.
func (r *Registry[C]) Add(c C) (replaced C, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if oldID, exists := r.byFD[c.FD()]; exists {
		replaced, ok = r.byID[oldID]
		delete(r.byID, oldID)
		if ok && r.byAddr[replaced.Addr()] == oldID {
			delete(r.byAddr, replaced.Addr())
		}
	}
	r.byID[c.ID()] = c
	r.byFD[c.FD()] = c.ID()
	r.byAddr[c.Addr()] = c.ID()
	r.current = c.ID()
	return replaced, ok
}

// Remove drops the entry with id. If it was the current target, the most
// recently accepted remaining entry becomes current.
func (r *Registry[C]) Remove(id uint64) (C, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return c, false
	}
	delete(r.byID, id)
	if r.byFD[c.FD()] == id {
		delete(r.byFD, c.FD())
	}
	if r.byAddr[c.Addr()] == id {
		delete(r.byAddr, c.Addr())
	}
	if r.current == id {
		r.current = 0
		for other := range r.byID {
			if other > r.current {
				r.current = other
			}
		}
	}
	return c, true
}

// Get fetches an entry by id.
func (r *Registry[C]) Get(id uint64) (C, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// ByFD fetches the entry registered for a descriptor.
func (r *Registry[C]) ByFD(fd int) (C, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero C
	id, ok := r.byFD[fd]
	if !ok {
		return zero, false
	}
	c, ok := r.byID[id]
	return c, ok
}

// ByAddr fetches the entry for a peer address.
func (r *Registry[C]) ByAddr(addr string) (C, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero C
	id, ok := r.byAddr[addr]
	if !ok {
		return zero, false
	}
	c, ok := r.byID[id]
	return c, ok
}

// Current returns the send target: the last accepted connection still tracked.
func (r *Registry[C]) Current() (C, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero C
	if r.current == 0 {
		return zero, false
	}
	c, ok := r.byID[r.current]
	return c, ok
}

// Len returns the number of tracked connections.
func (r *Registry[C]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Snapshot returns all entries ordered by id. Callers may mutate the
// registry while iterating the result.
func (r *Registry[C]) Snapshot() []C {
	r.mu.RLock()
	out := make([]C, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Range applies fn to every entry in id order until fn returns false.
func (r *Registry[C]) Range(fn func(C) bool) {
	for _, c := range r.Snapshot() {
		if !fn(c) {
			return
		}
	}
}
