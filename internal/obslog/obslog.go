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

// Package obslog builds the process-wide logr.Logger, backed by zap, that
// every atasks-go package logs through.
package obslog

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the underlying zap logger.
type Options struct {
	// Development selects zap's development preset (console encoder,
	// DebugLevel, stack traces on warn) over the production preset (JSON
	// encoder, InfoLevel).
	Development bool
	// Level overrides the preset's default level when non-empty: one of
	// "debug", "info", "warn", "error".
	Level string
}

// New builds a logr.Logger backed by zap per opts.
func New(opts Options) (logr.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return logr.Logger{}, fmt.Errorf("obslog: parsing level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	zapLog, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, fmt.Errorf("obslog: building zap logger: %w", err)
	}
	return zapr.NewLogger(zapLog), nil
}
