/*
Copyright 2026 The Atasks Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package registry implements the generic, name-keyed attribute store that
// backs namespace records and task tables.
package registry

import (
	"fmt"
	"reflect"
	"sync"
)

// ErrDuplicateRegistration is returned by Register when a name already
// exists in a non-unite registry.
type ErrDuplicateRegistration struct {
	Registry string
	Name     string
}

func (e *ErrDuplicateRegistration) Error() string {
	return fmt.Sprintf("registering twice in %s: %s", e.Registry, e.Name)
}

// ErrNotFound is returned by Unregister when the name has no entry.
type ErrNotFound struct {
	Registry string
	Name     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("not found in %s: %s", e.Registry, e.Name)
}

// Registry is a concurrency-safe, name-keyed store of values of type V.
//
// In unite mode, Register merges a new value into an existing one via merge
// and Get auto-creates a zero-value entry for a name it has never seen, so a
// later Register merges into that entry and later lookups see the result.
// The value Get hands back is the zero value itself and is not updated by
// later writes; GetOrCreate with a factory returning a pointer gives every
// caller the same shared entry. In non-unite mode, a second Register call
// for the same name fails with ErrDuplicateRegistration and Get never
// auto-creates.
//
// The shape is adapted from a reference-counted concurrent map; Registry
// drops the reference counting (nothing here is closed on last release) and
// adds the unite/non-unite merge semantics the namespace and task tables
// need.
type Registry[V any] struct {
	name  string
	unite bool

	mu   sync.RWMutex
	data map[string]V
}

// New creates a Registry. name is used only for error messages.
func New[V any](name string, unite bool) *Registry[V] {
	return &Registry[V]{
		name:  name,
		unite: unite,
		data:  make(map[string]V),
	}
}

// Register inserts value under name. If an entry already exists: in unite
// mode, merge(existing, value) replaces it; otherwise Register returns
// ErrDuplicateRegistration.
func (r *Registry[V]) Register(name string, value V, merge func(existing, incoming V) V) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, found := r.data[name]
	if found {
		if !r.unite {
			return &ErrDuplicateRegistration{Registry: r.name, Name: name}
		}
		r.data[name] = merge(existing, value)
		return nil
	}
	r.data[name] = value
	return nil
}

// Unregister removes name. Absent entries are an error.
func (r *Registry[V]) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found := r.data[name]; !found {
		return &ErrNotFound{Registry: r.name, Name: name}
	}
	delete(r.data, name)
	return nil
}

// Get returns the value registered under name. In unite mode, an absent
// name is auto-created with zero and returned rather than reported missing.
func (r *Registry[V]) Get(name string) (V, bool) {
	r.mu.RLock()
	if value, found := r.data[name]; found {
		r.mu.RUnlock()
		return value, true
	}
	r.mu.RUnlock()

	if !r.unite {
		var zero V
		return zero, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if value, found := r.data[name]; found {
		return value, true
	}
	var zero V
	r.data[name] = zero
	return zero, true
}

// GetOrCreate returns the value registered under name, atomically creating
// one via factory if absent. Unlike Get, this works regardless of unite
// mode and never returns a value discarded by a concurrent creator racing
// on the same absent name.
func (r *Registry[V]) GetOrCreate(name string, factory func() V) V {
	r.mu.RLock()
	if value, found := r.data[name]; found {
		r.mu.RUnlock()
		return value
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if value, found := r.data[name]; found {
		return value
	}
	value := factory()
	r.data[name] = value
	return value
}

// GetExisting returns the value registered under name without ever
// auto-creating an entry, regardless of unite mode.
func (r *Registry[V]) GetExisting(name string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, found := r.data[name]
	return value, found
}

// attributeProvider is implemented by any V that exposes its bound
// attributes for structural comparison, e.g. *namespace.Record.
type attributeProvider interface {
	Attributes() map[string]any
}

// Equal reports whether the entry registered under name exposes exactly
// attrs via its Attributes() accessor: the same keys, each bound to a value
// equal under == (so two distinct pointers to equal-looking transports are
// not equal), with reflect.DeepEqual used only for values of non-comparable
// types. It is false if name has no entry, or if V doesn't implement
// attributeProvider -- used by tests asserting a namespace record ended up
// bound to a specific set of attributes without reaching into its private
// fields.
func (r *Registry[V]) Equal(name string, attrs map[string]any) bool {
	value, found := r.GetExisting(name)
	if !found {
		return false
	}
	provider, ok := any(value).(attributeProvider)
	if !ok {
		return false
	}
	bound := provider.Attributes()
	if len(bound) != len(attrs) {
		return false
	}
	for key, want := range attrs {
		got, found := bound[key]
		identity := reflect.ValueOf(got).Comparable() && reflect.ValueOf(want).Comparable()
		if !found || (identity && got != want) || (!identity && !reflect.DeepEqual(got, want)) {
			return false
		}
	}
	return true
}

// Names returns a snapshot of every currently registered name.
func (r *Registry[V]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.data))
	for name := range r.data {
		names = append(names, name)
	}
	return names
}
