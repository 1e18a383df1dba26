// Package registry provides the keyed lookup table behind pipeline factory
// registration. It is generic so callers register whatever they construct,
// but the semantics are fixed: names are unique, registration is write-once,
// and every operation is safe for concurrent use.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tidelinelabs/tideline/pkg/errors"
)

// Registry maps unique names to items of type T. The zero value is not
// usable, construct one with New.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

// Register adds item under name. The empty name is rejected, and a name can
// only be registered once; re-registering reports ErrAlreadyExists so that
// two implementations claiming the same key surface as a conflict instead of
// one silently shadowing the other.
func (r *Registry[T]) Register(name string, item T) error {
	if name == "" {
		return errors.New(errors.ErrInvalidInput, "registry name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return errors.Newf(errors.ErrAlreadyExists, "item %q is already registered", name)
	}
	r.items[name] = item
	return nil
}

// Get returns the item registered under name, or ErrNotFound.
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[name]
	if !exists {
		var zero T
		return zero, errors.Newf(errors.ErrNotFound, "item %q not found in registry", name)
	}
	return item, nil
}

// Remove deletes the item registered under name, or reports ErrNotFound.
func (r *Registry[T]) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; !exists {
		return errors.Newf(errors.ErrNotFound, "item %q not found in registry", name)
	}
	delete(r.items, name)
	return nil
}

// List returns the registered names in sorted order.
func (r *Registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.items[name]
	return exists
}

// Clear drops every registration. Intended for tests that need a clean slate.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]T)
}

// Count returns the number of registered items.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// MustRegister registers an item and panics on failure. Meant for init-time
// registration, where a duplicate key is a programming error.
func MustRegister[T any](reg *Registry[T], name string, item T) {
	if err := reg.Register(name, item); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", name, err))
	}
}
