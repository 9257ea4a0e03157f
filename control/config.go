// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe store of runtime-tunable settings with validated updates and
// hot-reload propagation.

package control

import (
	"fmt"
	"sort"
	"sync"

	"github.com/momentics/hioload-tcp/api"
)

// Validator checks and normalizes a proposed value for one setting.
type Validator func(v any) (any, error)

// ConfigStore is a key/value map of settings declared up front with Define.
// Updates to undeclared keys are rejected.
type ConfigStore struct {
	mu         sync.RWMutex
	config     map[string]any
	validators map[string]Validator
	listeners  []func(map[string]any)
}

// NewConfigStore initializes an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config:     make(map[string]any),
		validators: make(map[string]Validator),
	}
}

// Define declares key with its initial value. A nil validator accepts any value.
func (cs *ConfigStore) Define(key string, initial any, validate Validator) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.config[key] = initial
	cs.validators[key] = validate
}

// Get returns the current value of key.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// GetSnapshot returns a copy of all settings.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.snapshotLocked()
}

func (cs *ConfigStore) snapshotLocked() map[string]any {
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}

// SetConfig validates every value in update and applies them all, or none.
// A rejected update is reported as *api.Error naming the offending key.
// Reload listeners run synchronously with the new snapshot once the update
// is committed.
func (cs *ConfigStore) SetConfig(update map[string]any) error {
	cs.mu.Lock()
	keys := make([]string, 0, len(update))
	for k := range update {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	staged := make(map[string]any, len(update))
	for _, k := range keys {
		validate, ok := cs.validators[k]
		if !ok {
			cs.mu.Unlock()
			return api.NewError(api.ErrCodeNotFound, fmt.Sprintf("unknown setting %q", k)).
				WithContext("key", k).
				WithCause(api.ErrNotFound)
		}
		v := update[k]
		if validate != nil {
			nv, err := validate(v)
			if err != nil {
				cs.mu.Unlock()
				return api.NewError(api.ErrCodeInvalidArgument, fmt.Sprintf("setting %q: %v", k, err)).
					WithContext("key", k).
					WithCause(err)
			}
			v = nv
		}
		staged[k] = v
	}
	for k, v := range staged {
		cs.config[k] = v
	}
	snap := cs.snapshotLocked()
	listeners := append([]func(map[string]any){}, cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return nil
}

// OnReload registers a hook called after every successful SetConfig.
func (cs *ConfigStore) OnReload(fn func(map[string]any)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// BoolSetting accepts JSON booleans.
func BoolSetting(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("want bool, got %T: %w", v, api.ErrInvalidArgument)
	}
	return b, nil
}

// StringSetting accepts one of allowed, or any string when allowed is empty.
func StringSetting(allowed ...string) Validator {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T: %w", v, api.ErrInvalidArgument)
		}
		if len(allowed) == 0 {
			return s, nil
		}
		for _, a := range allowed {
			if s == a {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%q not one of %v: %w", s, allowed, api.ErrInvalidArgument)
	}
}
