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

// Package router turns a named invocation into a correlated request/response
// exchange: it owns a namespace's task table, hands out client-side stubs,
// dispatches inbound requests to registered task bodies on the server side,
// and manages which transport is currently active.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/atasks-go/atasks/internal/metrics"
	"github.com/atasks-go/atasks/pkg/ataskerr"
	"github.com/atasks-go/atasks/pkg/codec"
	"github.com/atasks-go/atasks/pkg/namespace"
	"github.com/atasks-go/atasks/pkg/registry"
	"github.com/atasks-go/atasks/pkg/task"
	"github.com/atasks-go/atasks/pkg/transport"
)

// Router is registered into a namespace and uses that namespace's codec and
// transport. It is safe for concurrent use: Activate/Deactivate and the
// server slot are guarded by a mutex, matching spec's "transitioning to
// another transport must first unregister the old callback" invariant.
type Router struct {
	ns     namespace.Name
	nsMgr  *namespace.Manager
	tasks  *registry.Registry[*task.Entry]
	logger logr.Logger

	mu     sync.Mutex
	server transport.Transport
}

// New creates a Router bound to ns within nsMgr and registers itself into
// the namespace record.
func New(nsMgr *namespace.Manager, ns namespace.Name, logger logr.Logger) *Router {
	record := nsMgr.Get(ns)
	r := &Router{
		ns:     ns,
		nsMgr:  nsMgr,
		tasks:  record.Tasks(),
		logger: logger.WithName("router").WithValues("namespace", string(ns)),
	}
	record.SetRouter(r)
	return r
}

// Get returns the router bound to ns within nsMgr, creating one (and the
// namespace record, if necessary) on first use -- the Go analogue of the
// source's get_router().
func Get(nsMgr *namespace.Manager, ns namespace.Name, logger logr.Logger) *Router {
	record := nsMgr.Get(ns)
	if existing := record.Router(); existing != nil {
		if r, ok := existing.(*Router); ok {
			return r
		}
	}
	return New(nsMgr, ns, logger)
}

// Namespace implements namespace.RouterBinding.
func (r *Router) Namespace() namespace.Name {
	return r.ns
}

// RegisterTask inserts a task entry into the router's task table and
// returns a stub bound to (r, name). A duplicate name fails with
// ataskerr.DuplicateRegistrationError.
func (r *Router) RegisterTask(name string, fn task.Func, opts map[string]any) (task.Stub, error) {
	entry := &task.Entry{Name: name, Fn: fn, Options: opts}
	merge := func(existing, _ *task.Entry) *task.Entry { return existing }
	if err := r.tasks.Register(name, entry, merge); err != nil {
		return nil, &ataskerr.DuplicateRegistrationError{Namespace: string(r.ns), Name: name}
	}
	s := &stub{router: r, name: name}
	r.logger.Info("registered task", "task", name, "stub", s.String())
	return s, nil
}

// Activate sets t as the router's active server transport. If t is already
// active this is a no-op; otherwise any previously active transport is
// unregistered first.
func (r *Router) Activate(_ context.Context, t transport.Transport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server == t {
		return nil
	}
	if r.server != nil {
		if err := r.server.UnregisterCallback(); err != nil {
			return fmt.Errorf("deactivating previous transport: %w", err)
		}
	}
	r.server = t
	if r.server != nil {
		if err := r.server.RegisterCallback(r.dispatch); err != nil {
			r.server = nil
			return fmt.Errorf("activating transport: %w", err)
		}
	}
	r.logger.Info("activated transport", "transport", fmt.Sprintf("%T", t))
	return nil
}

// Deactivate unregisters the callback from the active transport, if any,
// and clears the server slot.
func (r *Router) Deactivate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server == nil {
		return nil
	}
	if err := r.server.UnregisterCallback(); err != nil {
		return fmt.Errorf("deactivating transport: %w", err)
	}
	r.server = nil
	r.logger.Info("deactivated transport")
	return nil
}

// SendRequest is the client-side half: encode (args, kwargs), hand the
// bytes to the namespace transport, decode (success, payload), and either
// return payload or turn it into an error.
func (r *Router) SendRequest(ctx context.Context, name string, args []any, kwargs map[string]any) (any, error) {
	record := r.nsMgr.Get(r.ns)

	client := record.Transport()
	if client == nil {
		return nil, ataskerr.ErrNoClientTransport
	}
	c := record.Codec()
	if c == nil {
		return nil, ataskerr.ErrNoCodecRegistered
	}

	body, err := c.Encode(ctx, codec.RequestEnvelope{Args: args, Kwargs: kwargs})
	if err != nil {
		r.logger.Error(err, "encoding request failed", "task", name)
		return nil, fmt.Errorf("%w: %v", ataskerr.ErrTransport, err)
	}

	metrics.InflightInc(string(r.ns))
	defer metrics.InflightDec(string(r.ns))

	r.logger.V(1).Info("sending request", "task", name)
	response, delivered, err := client.SendRequest(ctx, name, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ataskerr.ErrTransport, err)
	}
	if !delivered {
		return nil, ataskerr.ErrTransport
	}

	var result codec.ResultEnvelope
	if err := c.Decode(ctx, response, &result); err != nil {
		r.logger.Error(err, "decoding response failed", "task", name)
		return nil, fmt.Errorf("%w: %v", ataskerr.ErrTransport, err)
	}

	if !result.Success {
		return nil, errorFromEnvelope(result.Err)
	}
	return result.Value, nil
}

// dispatch is the server-side callback installed on the active transport.
func (r *Router) dispatch(ctx context.Context, name string, body []byte) ([]byte, error) {
	record := r.nsMgr.Get(r.ns)
	c := record.Codec()
	if c == nil {
		return nil, ataskerr.ErrNoCodecRegistered
	}

	var req codec.RequestEnvelope
	if err := c.Decode(ctx, body, &req); err != nil {
		return nil, fmt.Errorf("decoding request for %s: %w", name, err)
	}

	entry, found := r.tasks.GetExisting(name)
	if !found {
		r.logger.Info("job not found", "task", name)
		metrics.RecordDispatch(string(r.ns), name, metrics.OutcomeJobMissing, 0)
		return c.Encode(ctx, codec.ResultEnvelope{
			Success: false,
			Err:     &codec.ErrorEnvelope{Kind: "JobNotFound", Message: name},
		})
	}

	start := time.Now()
	result, taskErr := r.callTask(ctx, entry, req)
	elapsed := time.Since(start).Seconds()

	var resultEnvelope codec.ResultEnvelope
	if taskErr != nil {
		resultEnvelope = codec.ResultEnvelope{Success: false, Err: envelopeFromError(taskErr)}
		metrics.RecordDispatch(string(r.ns), name, metrics.OutcomeError, elapsed)
	} else {
		resultEnvelope = codec.ResultEnvelope{Success: true, Value: result}
		metrics.RecordDispatch(string(r.ns), name, metrics.OutcomeSuccess, elapsed)
	}

	response, err := c.Encode(ctx, resultEnvelope)
	if err != nil {
		return nil, fmt.Errorf("encoding response for %s: %w", name, err)
	}
	return response, nil
}

func (r *Router) callTask(ctx context.Context, entry *task.Entry, req codec.RequestEnvelope) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task %s panicked: %v", entry.Name, rec)
		}
	}()
	return entry.Fn(ctx, task.Args{Positional: req.Args, Keyword: req.Kwargs})
}

func envelopeFromError(err error) *codec.ErrorEnvelope {
	if jnf, ok := err.(*ataskerr.JobNotFoundError); ok {
		return &codec.ErrorEnvelope{Kind: "JobNotFound", Message: jnf.Name}
	}
	return &codec.ErrorEnvelope{Kind: fmt.Sprintf("%T", err), Message: err.Error()}
}

func errorFromEnvelope(env *codec.ErrorEnvelope) error {
	if env == nil {
		return fmt.Errorf("atask: remote task failed with no error detail")
	}
	if env.Kind == "JobNotFound" {
		return &ataskerr.JobNotFoundError{Name: env.Message}
	}
	return &ataskerr.RemoteError{Kind: env.Kind, Message: env.Message, Details: env.Details}
}
