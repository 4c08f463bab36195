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

package transport

import (
	"context"
	"fmt"
	"sync"
)

// LoopbackTransport calls its own registered callback directly, with no
// network hop. It is the canonical target of the end-to-end task scenarios:
// cheap to set up, deterministic, and exercises the exact same router/codec
// path a broker-backed transport would.
type LoopbackTransport struct {
	mu sync.RWMutex
	cb Callback
}

// NewLoopbackTransport creates a disconnected LoopbackTransport.
func NewLoopbackTransport() *LoopbackTransport {
	return &LoopbackTransport{}
}

// Connect is a no-op.
func (t *LoopbackTransport) Connect(_ context.Context) error {
	return nil
}

// Disconnect unregisters any installed callback.
func (t *LoopbackTransport) Disconnect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cb = nil
	return nil
}

// SendRequest calls the registered callback directly and returns its
// result. If no callback is registered it fails immediately rather than
// hanging.
func (t *LoopbackTransport) SendRequest(ctx context.Context, name string, body []byte) ([]byte, bool, error) {
	t.mu.RLock()
	cb := t.cb
	t.mu.RUnlock()

	if cb == nil {
		return nil, false, fmt.Errorf("loopback transport: %w", errNoCallback)
	}
	response, err := cb(ctx, name, body)
	if err != nil {
		return nil, false, err
	}
	return response, true, nil
}

// RegisterCallback installs cb, replacing any previously installed handler.
func (t *LoopbackTransport) RegisterCallback(cb Callback) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cb = cb
	return nil
}

// UnregisterCallback drops the installed handler, if any.
func (t *LoopbackTransport) UnregisterCallback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cb = nil
	return nil
}

var errNoCallback = fmt.Errorf("no callback registered")
