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

// Package namespace binds the triple {codec, transport, router} plus a task
// table under a namespace name, auto-creating absent namespaces on lookup.
package namespace

import (
	"sync"

	"github.com/atasks-go/atasks/pkg/codec"
	"github.com/atasks-go/atasks/pkg/registry"
	"github.com/atasks-go/atasks/pkg/task"
	"github.com/atasks-go/atasks/pkg/transport"
)

// Name identifies a namespace. Requests with mismatched namespaces never
// reach each other; the router, codec, and transport bound to one namespace
// are invisible to any other.
type Name string

// Default is the literal name used when a caller does not specify one.
const Default Name = "default"

// RouterBinding is the subset of *router.Router a Record needs to expose.
// router.Router satisfies this structurally, which keeps namespace from
// importing router (router imports namespace, not the reverse).
type RouterBinding interface {
	Namespace() Name
}

// Record is a namespace's attribute bag: at most one codec, one transport,
// and one router, plus the router's own task sub-registry. Registering an
// attribute on an existing record merges per-field (last write wins); only
// Tasks, a non-unite registry, rejects duplicate task names.
type Record struct {
	mu        sync.RWMutex
	codec     codec.Codec
	transport transport.Transport
	router    RouterBinding
	tasks     *registry.Registry[*task.Entry]
}

func newRecord() *Record {
	return &Record{
		tasks: registry.New[*task.Entry]("tasks", false),
	}
}

// Codec returns the namespace's bound codec, or nil if none is bound.
func (r *Record) Codec() codec.Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.codec
}

// Transport returns the namespace's bound transport, or nil if none is
// bound.
func (r *Record) Transport() transport.Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.transport
}

// Router returns the namespace's bound router, or nil if none is bound.
func (r *Record) Router() RouterBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.router
}

// Tasks returns the namespace's task table.
func (r *Record) Tasks() *registry.Registry[*task.Entry] {
	return r.tasks
}

// SetCodec binds c to the namespace, replacing any previous codec.
func (r *Record) SetCodec(c codec.Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codec = c
}

// SetTransport binds t to the namespace, replacing any previous transport.
func (r *Record) SetTransport(t transport.Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transport = t
}

// SetRouter binds rt to the namespace, replacing any previous router.
func (r *Record) SetRouter(rt RouterBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.router = rt
}

// Attributes reports which of codec/transport/router are currently bound,
// for the structural-equality comparisons the registry invariant tests use.
func (r *Record) Attributes() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attrs := map[string]any{}
	if r.codec != nil {
		attrs["codec"] = r.codec
	}
	if r.transport != nil {
		attrs["transport"] = r.transport
	}
	if r.router != nil {
		attrs["router"] = r.router
	}
	return attrs
}

// Manager is the process-wide, unite-mode registry of namespace records.
// Lookup of an absent namespace lazily creates an empty record.
type Manager struct {
	reg *registry.Registry[*Record]
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{reg: registry.New[*Record]("namespaces", true)}
}

// Get returns the record for name, atomically creating an empty one if it
// has never been seen.
func (m *Manager) Get(name Name) *Record {
	return m.reg.GetOrCreate(string(name), newRecord)
}

// Equal reports whether the record for name is currently bound to exactly
// attrs, compared via Record.Attributes(). False if name has no record.
func (m *Manager) Equal(name Name, attrs map[string]any) bool {
	return m.reg.Equal(string(name), attrs)
}

// DefaultManager is the process-wide default Manager, the Go analogue of
// the source's module-level `namespaces` singleton. Callers that want
// isolated namespaces for tests should construct their own Manager instead.
var DefaultManager = NewManager()
