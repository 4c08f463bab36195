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

// Package metrics registers the process's Prometheus collectors, mirroring
// the teacher's pkg/metrics package-level-GaugeVec-plus-init pattern.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespaceLabel = "atask"

var (
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceLabel,
			Name:      "dispatch_total",
			Help:      "Total number of dispatched task calls, by namespace, task name and outcome.",
		},
		[]string{"namespace", "task", "outcome"},
	)

	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceLabel,
			Name:      "dispatch_duration_seconds",
			Help:      "Server-side task execution latency, by namespace and task name.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"namespace", "task"},
	)

	inflightRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespaceLabel,
			Name:      "inflight_requests",
			Help:      "Client-side calls awaiting a response, by namespace.",
		},
		[]string{"namespace"},
	)

	amqpReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceLabel,
			Name:      "amqp_reconnects_total",
			Help:      "Total number of AMQP transport (re)connect attempts, by namespace.",
		},
		[]string{"namespace"},
	)
)

func init() {
	prometheus.MustRegister(dispatchTotal, dispatchDuration, inflightRequests, amqpReconnectsTotal)
}

// Outcome labels recorded against atask_dispatch_total.
const (
	OutcomeSuccess    = "success"
	OutcomeJobMissing = "job_not_found"
	OutcomeError      = "error"
)

// RecordDispatch increments the dispatch counter and observes its latency
// for a single server-side task invocation.
func RecordDispatch(namespace, task, outcome string, seconds float64) {
	dispatchTotal.WithLabelValues(namespace, task, outcome).Inc()
	dispatchDuration.WithLabelValues(namespace, task).Observe(seconds)
}

// InflightInc/InflightDec track in-flight client calls per namespace.
func InflightInc(namespace string) { inflightRequests.WithLabelValues(namespace).Inc() }
func InflightDec(namespace string) { inflightRequests.WithLabelValues(namespace).Dec() }

// RecordAMQPReconnect counts a (re)connect attempt for the AMQP transport
// bound to namespace.
func RecordAMQPReconnect(namespace string) {
	amqpReconnectsTotal.WithLabelValues(namespace).Inc()
}
