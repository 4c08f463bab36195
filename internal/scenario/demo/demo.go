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

// Package demo registers the literal task_one/task_two/task_three scenario
// from the original test suite's scenarios.py, runnable through the host
// command for manual exercising of a live transport.
package demo

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/atasks-go/atasks/internal/scenario"
	"github.com/atasks-go/atasks/pkg/namespace"
	"github.com/atasks-go/atasks/pkg/router"
	"github.com/atasks-go/atasks/pkg/task"
)

func init() {
	scenario.MustRegister("demo", demoScenario{})
}

type demoScenario struct{}

func (demoScenario) Register(ns namespace.Name) error {
	r := router.Get(namespace.DefaultManager, ns, logr.Discard())

	if _, err := task.Register(r, "task_one", delayed(1*time.Second)); err != nil {
		return err
	}
	if _, err := task.Register(r, "task_two", delayed(2*time.Second)); err != nil {
		return err
	}
	if _, err := task.Register(r, "task_three", delayed(0)); err != nil {
		return err
	}
	return nil
}

func (demoScenario) Bootstrap(_ context.Context, _ map[string]string) error {
	return nil
}

func delayed(d time.Duration) task.Func {
	return func(ctx context.Context, args task.Args) (any, error) {
		if d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return args.Positional[0], nil
	}
}
