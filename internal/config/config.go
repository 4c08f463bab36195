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

// Package config binds the host command's flags and the environment
// variables that override them, mirroring the teacher's pflag-plus
// resolve-os-env layering (cmd/operator/main.go, pkg/util/env_resolver.go).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	amqptransport "github.com/atasks-go/atasks/pkg/transport/amqp"
)

// AMQPConfig is the host's broker-facing configuration: flag defaults,
// overridable by environment variables of the same name prefixed ATASK_.
type AMQPConfig struct {
	URL              string
	RequestExchange  string
	ResponseExchange string
	Prefix           string
	Queue            string
	Prefetch         int
	ReconnectBackoff time.Duration
}

// BindFlags registers the AMQP flags onto fs with the package defaults.
func (c *AMQPConfig) BindFlags(fs *pflag.FlagSet) {
	d := amqptransport.DefaultConfig()
	fs.StringVar(&c.URL, "amqp-url", d.URL, "AMQP broker URL.")
	fs.StringVar(&c.RequestExchange, "amqp-request-exchange", d.RequestExchange, "Topic exchange requests are published to.")
	fs.StringVar(&c.ResponseExchange, "amqp-response-exchange", d.ResponseExchange, "Topic exchange responses are published to.")
	fs.StringVar(&c.Prefix, "amqp-prefix", d.Prefix, "Routing key prefix for task names.")
	fs.StringVar(&c.Queue, "amqp-queue", d.Queue, "Durable server request queue name.")
	fs.IntVar(&c.Prefetch, "amqp-prefetch", d.Prefetch, "Channel QoS prefetch count for the server queue.")
	fs.DurationVar(&c.ReconnectBackoff, "amqp-reconnect-backoff", d.ReconnectBackoff, "Delay between reconnect attempts after an unexpected connection loss.")
}

// ResolveEnvOverrides applies ATASK_AMQP_* environment variables on top of
// whatever BindFlags/pflag.Parse already populated, the same
// flag-then-env-override layering the teacher's main() uses for values
// pflag itself cannot express (e.g. ResolveOsEnvDuration for lease
// durations).
func (c *AMQPConfig) ResolveEnvOverrides() error {
	if v, found := os.LookupEnv("ATASK_AMQP_URL"); found && v != "" {
		c.URL = v
	}
	if v, found := os.LookupEnv("ATASK_AMQP_REQUEST_EXCHANGE"); found && v != "" {
		c.RequestExchange = v
	}
	if v, found := os.LookupEnv("ATASK_AMQP_RESPONSE_EXCHANGE"); found && v != "" {
		c.ResponseExchange = v
	}
	if v, found := os.LookupEnv("ATASK_AMQP_PREFIX"); found && v != "" {
		c.Prefix = v
	}
	if v, found := os.LookupEnv("ATASK_AMQP_QUEUE"); found && v != "" {
		c.Queue = v
	}
	if v, found := os.LookupEnv("ATASK_AMQP_PREFETCH"); found && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid ATASK_AMQP_PREFETCH %q: %w", v, err)
		}
		c.Prefetch = n
	}
	if v, found := os.LookupEnv("ATASK_AMQP_RECONNECT_BACKOFF"); found && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid ATASK_AMQP_RECONNECT_BACKOFF %q: %w", v, err)
		}
		c.ReconnectBackoff = d
	}
	return nil
}

// ToTransportConfig converts the resolved host configuration into the
// amqp.Config the transport constructor expects.
func (c AMQPConfig) ToTransportConfig(namespace string) amqptransport.Config {
	return amqptransport.Config{
		URL:              c.URL,
		RequestExchange:  c.RequestExchange,
		ResponseExchange: c.ResponseExchange,
		Prefix:           c.Prefix,
		Queue:            c.Queue,
		Prefetch:         c.Prefetch,
		ReconnectBackoff: c.ReconnectBackoff,
		Namespace:        namespace,
	}
}
