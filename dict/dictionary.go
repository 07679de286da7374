// Package dict interns strings (service names, operation names) to stable
// integer ids so that wire payloads stay compact. Entries live for the whole
// process; the keyspace is code-shaped (operation names), not user data, so
// unbounded growth is acceptable.
package dict

import "sync"

// NullValue is the reserved sentinel meaning "not yet resolved". No key is
// ever assigned it.
const NullValue int32 = 0

// Dictionary resolves strings to stable non-negative ids. Resolve is
// idempotent: the same key always yields the same id, and two keys never
// share a non-sentinel id.
type Dictionary interface {
	Resolve(key string) int32
	// Lookup returns the id for a key without assigning one; NullValue if
	// the key has never been resolved.
	Lookup(key string) int32
	// Find returns the key for a previously assigned id, if any.
	Find(id int32) (string, bool)
}

// Registry is the in-memory Dictionary. Safe for concurrent use; a race on
// first resolution of a key converges on a single winning id.
type Registry struct {
	mu     sync.RWMutex
	ids    map[string]int32
	keys   map[int32]string
	nextID int32
}

func NewRegistry() *Registry {
	return &Registry{
		ids:  make(map[string]int32),
		keys: make(map[int32]string),
	}
}

func (r *Registry) Resolve(key string) int32 {
	r.mu.RLock()
	id, ok := r.ids[key]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// lost the race to another resolver; their id stands
	if id, ok := r.ids[key]; ok {
		return id
	}
	r.nextID++
	r.ids[key] = r.nextID
	r.keys[r.nextID] = key
	return r.nextID
}

func (r *Registry) Lookup(key string) int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.ids[key]; ok {
		return id
	}
	return NullValue
}

func (r *Registry) Find(id int32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[id]
	return key, ok
}

// Size reports how many keys have been interned.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
