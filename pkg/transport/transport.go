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

// Package transport defines the request/response byte-pipe contract every
// backend (loopback, AMQP) implements, plus the in-process LoopbackTransport.
package transport

import "context"

// Callback is the single inbound-request handler a Transport may have
// installed at a time. It receives the raw request bytes and returns the
// raw response bytes.
type Callback func(ctx context.Context, name string, body []byte) ([]byte, error)

// Transport carries opaque, codec-encoded bytes between a caller and a
// dispatcher; it never encodes or decodes application values itself.
type Transport interface {
	// Connect prepares the backend. It is idempotent and safe to call more
	// than once.
	Connect(ctx context.Context) error

	// Disconnect releases the backend. After it returns, the transport must
	// not deliver further inbound messages or accept further sends.
	Disconnect(ctx context.Context) error

	// SendRequest sends name/body and blocks for the matching response.
	// Multiple concurrent calls on one Transport must be supported.
	//
	// delivered distinguishes "no response arrived" from "an empty response
	// arrived": delivered is true only when a reply was produced for this
	// call, even a zero-length one. When no reply was produced (e.g. the
	// loopback transport has no callback installed, or ctx ended first),
	// delivered is false and err reports why; callers must not treat that
	// the same as a genuine zero-length payload.
	SendRequest(ctx context.Context, name string, body []byte) (response []byte, delivered bool, err error)

	// RegisterCallback installs the single inbound-request handler.
	// Re-registration replaces the previous handler, which stops receiving
	// messages before the new one is installed.
	RegisterCallback(cb Callback) error

	// UnregisterCallback stops delivery to the installed handler and drops
	// the reference to it.
	UnregisterCallback() error
}
