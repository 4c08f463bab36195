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

// Command atask is the host process: it wires a namespace's codec and
// transport, activates the router, loads the requested scenarios, and
// blocks until signaled to shut down.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/atasks-go/atasks/internal/config"
	"github.com/atasks-go/atasks/internal/obslog"
	"github.com/atasks-go/atasks/internal/scenario"
	_ "github.com/atasks-go/atasks/internal/scenario/demo"
	"github.com/atasks-go/atasks/pkg/codec"
	"github.com/atasks-go/atasks/pkg/namespace"
	"github.com/atasks-go/atasks/pkg/router"
	"github.com/atasks-go/atasks/pkg/transport"
	amqptransport "github.com/atasks-go/atasks/pkg/transport/amqp"
)

type options map[string]string

func (o *options) String() string { return fmt.Sprintf("%v", map[string]string(*o)) }

func (o *options) Set(value string) error {
	key, val, found := strings.Cut(value, "=")
	if !found {
		return fmt.Errorf("-o expects key=value, got %q", value)
	}
	if *o == nil {
		*o = options{}
	}
	(*o)[key] = val
	return nil
}

func (o *options) Type() string { return "key=value" }

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "atask:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("atask", pflag.ExitOnError)

	mode := fs.String("mode", "server", "One of: server, client.")
	transportName := fs.String("transport", "loopback", "One of: loopback, amqp.")
	namespaceName := fs.String("namespace", string(namespace.Default), "Namespace to bind tasks and transport into.")
	develLogging := fs.Bool("development-logging", false, "Use zap's development logging preset.")
	metricsAddr := fs.String("metrics-bind-address", ":9090", "Address the /metrics HTTP listener binds to.")

	var opts options
	fs.VarP(&opts, "option", "o", "key=value pair forwarded to each scenario's Bootstrap; repeatable.")

	var amqpCfg config.AMQPConfig
	amqpCfg.BindFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := amqpCfg.ResolveEnvOverrides(); err != nil {
		return err
	}
	if v, found := os.LookupEnv("ATASK_NAMESPACE"); found && v != "" {
		*namespaceName = v
	}

	logger, err := obslog.New(obslog.Options{Development: *develLogging})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	ns := namespace.Name(*namespaceName)
	nsMgr := namespace.DefaultManager
	record := nsMgr.Get(ns)

	c, err := codec.NewCBORCodec(codec.DefaultCBOROptions())
	if err != nil {
		return fmt.Errorf("building codec: %w", err)
	}
	record.SetCodec(c)

	tr, err := buildTransport(*transportName, amqpCfg, ns, logger)
	if err != nil {
		return err
	}
	record.SetTransport(tr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := tr.Connect(ctx); err != nil {
		return fmt.Errorf("connecting transport: %w", err)
	}
	defer func() { _ = tr.Disconnect(context.Background()) }()

	r := router.Get(nsMgr, ns, logger)

	if *mode == "server" {
		if err := r.Activate(ctx, tr); err != nil {
			return fmt.Errorf("activating router: %w", err)
		}

		for _, name := range fs.Args() {
			s, found := scenario.Get(name)
			if !found {
				return fmt.Errorf("unknown scenario %q (known: %v)", name, scenario.Names())
			}
			if err := s.Register(ns); err != nil {
				return fmt.Errorf("registering scenario %q: %w", name, err)
			}
			if err := s.Bootstrap(ctx, opts); err != nil {
				return fmt.Errorf("bootstrapping scenario %q: %w", name, err)
			}
		}

		srv := &http.Server{Addr: *metricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error(err, "metrics server stopped")
			}
		}()
		defer func() { _ = srv.Close() }()

		logger.Info("serving", "namespace", ns, "transport", *transportName, "metricsAddr", *metricsAddr)
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	}

	// client mode: call each positional argument as a task name with a
	// single integer argument, printing its result -- a smoke-test caller
	// against a server already running against the same namespace/transport.
	for _, name := range fs.Args() {
		result, err := r.SendRequest(ctx, name, []any{int64(42)}, nil)
		if err != nil {
			return fmt.Errorf("calling %q: %w", name, err)
		}
		fmt.Printf("%s -> %v\n", name, result)
	}
	return nil
}

func buildTransport(name string, amqpCfg config.AMQPConfig, ns namespace.Name, logger logr.Logger) (transport.Transport, error) {
	switch name {
	case "loopback":
		return transport.NewLoopbackTransport(), nil
	case "amqp":
		return amqptransport.New(amqpCfg.ToTransportConfig(string(ns)), logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want loopback or amqp)", name)
	}
}
