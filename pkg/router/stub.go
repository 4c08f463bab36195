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

package router

import (
	"context"
	"fmt"
)

// stub implements task.Stub. It closes over (router, name), never a
// transport, so transport replacement via Activate/Deactivate is observed
// by stubs issued before the replacement happened.
type stub struct {
	router *Router
	name   string
}

func (s *stub) Name() string { return s.name }

func (s *stub) String() string {
	return fmt.Sprintf("ref[%s/%s]", s.name, s.router.ns)
}

func (s *stub) Call(ctx context.Context, args ...any) (any, error) {
	return s.router.SendRequest(ctx, s.name, args, nil)
}

func (s *stub) CallWithKwargs(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	return s.router.SendRequest(ctx, s.name, args, kwargs)
}
