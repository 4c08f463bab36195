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

// Package scenario is the host command's registry of loadable task
// packages: the Go analogue of the original's "import the requested
// modules" bootstrap, since Go has no string-keyed dynamic import.
package scenario

import (
	"context"
	"fmt"
	"sync"

	"github.com/atasks-go/atasks/pkg/namespace"
)

// Scenario registers its tasks against a namespace and optionally runs a
// one-time bootstrap step driven by the host command's -o/--option flags.
type Scenario interface {
	// Register binds the scenario's tasks into ns.
	Register(ns namespace.Name) error
	// Bootstrap runs after Register, with the host's parsed -o key=value
	// pairs. A scenario with no setup work may return nil unconditionally.
	Bootstrap(ctx context.Context, options map[string]string) error
}

var (
	mu        sync.Mutex
	scenarios = map[string]Scenario{}
)

// MustRegister adds s under name to the process-wide registry. Intended to
// be called from a scenario package's init(), matching the teacher's
// init()-driven scheme registration in cmd/operator/main.go.
func MustRegister(name string, s Scenario) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := scenarios[name]; exists {
		panic(fmt.Sprintf("scenario: %q already registered", name))
	}
	scenarios[name] = s
}

// Get looks up a registered scenario by name.
func Get(name string) (Scenario, bool) {
	mu.Lock()
	defer mu.Unlock()
	s, found := scenarios[name]
	return s, found
}

// Names returns every registered scenario name.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	return names
}
