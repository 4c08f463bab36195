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

// Package task defines the task binding surface: the entry stored in a
// router's task table and the callable stub handed back at registration
// time. It depends on nothing router-shaped directly -- Registrar and Stub
// are interfaces a *router.Router satisfies structurally, which keeps
// task a leaf package and lets router own the concrete dispatch logic.
package task

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
)

// Func is a registered task body. ctx carries cancellation the same way
// every suspension point in the source carries an implicit await.
type Func func(ctx context.Context, args Args) (any, error)

// Args bundles a task invocation's positional and keyword arguments,
// standing in for the source's (*argv, **kwargs).
type Args struct {
	Positional []any
	Keyword    map[string]any
}

// Entry is a namespace's task-table row: a name bound to a callable and its
// registration-time options.
type Entry struct {
	Name    string
	Fn      Func
	Options map[string]any
}

// Stub is the callable reference returned at registration time. Invoking it
// performs a request/response exchange through whatever transport the
// namespace currently has active -- the stub holds a handle to the router,
// not a captured transport, so activation/deactivation is observed by
// already-issued stubs.
type Stub interface {
	// Name is the task's registered name.
	Name() string
	// String is the stub's debug identity, "ref[<name>/<namespace>]".
	String() string
	// Call invokes the task with positional arguments only.
	Call(ctx context.Context, args ...any) (any, error)
	// CallWithKwargs invokes the task with both positional and keyword
	// arguments.
	CallWithKwargs(ctx context.Context, args []any, kwargs map[string]any) (any, error)
}

// Registrar is implemented by *router.Router. Register and RegisterAll
// depend on this interface rather than on the router package directly.
type Registrar interface {
	RegisterTask(name string, fn Func, opts map[string]any) (Stub, error)
}

// Option mutates a task's registration options map.
type Option func(map[string]any)

// WithOption sets a single registration option.
func WithOption(key string, value any) Option {
	return func(opts map[string]any) {
		opts[key] = value
	}
}

// Register is the explicit, startup-time analogue of the source's
// import-time decorator: it registers fn under name on r and returns the
// callable stub.
func Register(r Registrar, name string, fn Func, opts ...Option) (Stub, error) {
	options := make(map[string]any, len(opts))
	for _, opt := range opts {
		opt(options)
	}
	return r.RegisterTask(name, fn, options)
}

// Definition is one entry of a bulk registration batch, the discovery-time
// equivalent of importing a module full of @atask-decorated functions.
type Definition struct {
	Name    string
	Fn      Func
	Options map[string]any
}

// RegisterAll registers every definition on r, in order, returning their
// stubs in the same order. It stops and returns the error from the first
// registration failure, leaving any definitions registered before it in
// place (matching the source's per-call registration semantics: there is no
// transactional rollback).
func RegisterAll(r Registrar, defs ...Definition) ([]Stub, error) {
	stubs := make([]Stub, 0, len(defs))
	for _, def := range defs {
		stub, err := r.RegisterTask(def.Name, def.Fn, def.Options)
		if err != nil {
			return stubs, fmt.Errorf("registering %s: %w", def.Name, err)
		}
		stubs = append(stubs, stub)
	}
	return stubs, nil
}

// QualifiedName computes the default task name for fn: "<package
// path>.<symbol>", the Go analogue of the source's "<module>.<function>"
// default. Go has no import-time introspection of the call site, so callers
// that want this default call it explicitly rather than relying on a
// decorator to compute it implicitly.
func QualifiedName(fn Func) string {
	pc := reflect.ValueOf(fn).Pointer()
	// The runtime name looks like "github.com/org/pkg.symbol", or
	// "github.com/org/pkg.symbol.func1" for a closure.
	return runtime.FuncForPC(pc).Name()
}
