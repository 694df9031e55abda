package registry

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrDuplicate is returned by Register when the key is already taken.
var ErrDuplicate = errors.New("registry: duplicate key")

// ErrNotFound is returned by Lookup for a missing key.
var ErrNotFound = errors.New("registry: not found")

// Entry represents a key-value pair in the registry.
type Entry[K cmp.Ordered, V any] struct {
	Key   K
	Value V
}

// Registry is a thread-safe map that refuses to overwrite. It enforces
// "at most one X per key", e.g. one running service per engine kind.
type Registry[K cmp.Ordered, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// New creates an empty registry.
func New[K cmp.Ordered, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		items: make(map[K]V),
	}
}

// Register stores value under key unless key is already present.
func (r *Registry[K, V]) Register(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[key]; exists {
		return fmt.Errorf("%w: %v", ErrDuplicate, key)
	}
	r.items[key] = value
	return nil
}

// Get retrieves a value by key.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.items[key]
	return value, ok
}

// Lookup is Get with an error for callers that propagate it.
func (r *Registry[K, V]) Lookup(key K) (V, error) {
	value, ok := r.Get(key)
	if !ok {
		return value, fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	return value, nil
}

// Has checks if a key exists.
func (r *Registry[K, V]) Has(key K) bool {
	_, ok := r.Get(key)
	return ok
}

// Delete removes an entry by key and reports whether it was present.
func (r *Registry[K, V]) Delete(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.items[key]
	delete(r.items, key)
	return ok
}

// Len returns the number of entries.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Keys returns all keys in sorted order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]K, 0, len(r.items))
	for key := range r.items {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// List returns all entries sorted by key.
func (r *Registry[K, V]) List() []Entry[K, V] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry[K, V], 0, len(r.items))
	for key, value := range r.items {
		entries = append(entries, Entry[K, V]{Key: key, Value: value})
	}
	slices.SortFunc(entries, func(a, b Entry[K, V]) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return entries
}

// Range calls fn for every entry in key order until fn returns false. fn runs
// on a copy, so it may call back into the registry.
func (r *Registry[K, V]) Range(fn func(key K, value V) bool) {
	for _, entry := range r.List() {
		if !fn(entry.Key, entry.Value) {
			return
		}
	}
}

// Clear removes all entries.
func (r *Registry[K, V]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[K]V)
}
