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

// Package amqp implements the Transport contract over RabbitMQ: a topic
// request exchange, a topic response exchange (by default the same
// exchange), a durable server request queue, and a private, exclusive reply
// queue per Transport instance, correlated by a fresh ID per call.
package amqp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/atasks-go/atasks/internal/metrics"
	"github.com/atasks-go/atasks/pkg/ataskerr"
	"github.com/atasks-go/atasks/pkg/transport"
)

// defaultReconnectBackoff is used when Config.ReconnectBackoff is zero.
const defaultReconnectBackoff = 2 * time.Second

// Config holds the broker-facing tunables spec.md §6 names.
type Config struct {
	URL              string
	RequestExchange  string
	ResponseExchange string
	Prefix           string
	Queue            string
	Prefetch         int
	// Namespace labels the atask_amqp_reconnects_total metric; it has no
	// bearing on routing. Defaults to "default" when empty.
	Namespace string
	// ReconnectBackoff is the delay before each automatic reconnect attempt
	// after the broker connection drops unexpectedly. Zero or negative
	// falls back to defaultReconnectBackoff; it is never zero in practice
	// once DefaultConfig or internal/config's flag default is applied.
	ReconnectBackoff time.Duration
}

// DefaultConfig returns the defaults spec.md §6 specifies.
func DefaultConfig() Config {
	return Config{
		URL:              "amqp://localhost:5672/",
		RequestExchange:  "atask",
		ResponseExchange: "atask",
		Prefix:           "atask",
		Queue:            "atask",
		Prefetch:         1,
		Namespace:        "default",
		ReconnectBackoff: defaultReconnectBackoff,
	}
}

func (c Config) namespaceLabel() string {
	if c.Namespace == "" {
		return "default"
	}
	return c.Namespace
}

type state int

const (
	stateNew state = iota
	stateConnected
	stateListening
	stateClosed
)

type pendingCall struct {
	result chan pendingResult
}

type pendingResult struct {
	body []byte
	err  error
}

// Transport is the AMQP-backed Transport implementation.
type Transport struct {
	cfg    Config
	logger logr.Logger

	mu    sync.Mutex
	state state

	conn    *amqp091.Connection
	channel *amqp091.Channel

	replyQueueName   string
	replyConsumerTag string

	serverQueueDeclared bool
	requestConsumerTag  string
	cb                  transport.Callback

	inflightMu sync.Mutex
	inflight   map[string]*pendingCall
}

// New creates a disconnected AMQP transport with the given configuration.
func New(cfg Config, logger logr.Logger) *Transport {
	return &Transport{
		cfg:      cfg,
		logger:   logger.WithName("amqp-transport"),
		inflight: make(map[string]*pendingCall),
	}
}

// Connect dials the broker, declares the request/response exchanges and the
// private reply queue, and starts consuming responses. It is idempotent.
func (t *Transport) Connect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == stateConnected || t.state == stateListening {
		return nil
	}
	if t.state == stateClosed {
		return fmt.Errorf("amqp transport: reconnecting a closed transport is not supported")
	}

	return t.connectLocked()
}

// connectLocked dials the broker and declares topology. Callers must hold
// t.mu. If a callback was already registered (i.e. this is an automatic
// reconnect after an unexpected connection loss while listening), it
// resumes serving requests under that same callback once the new channel is
// up.
func (t *Transport) connectLocked() error {
	metrics.RecordAMQPReconnect(t.cfg.namespaceLabel())

	conn, err := amqp091.DialConfig(t.cfg.URL, amqp091.Config{})
	if err != nil {
		return fmt.Errorf("amqp transport: dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp transport: open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(t.cfg.RequestExchange, amqp091.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp transport: declare request exchange: %w", err)
	}
	if t.cfg.ResponseExchange != t.cfg.RequestExchange {
		if err := channel.ExchangeDeclare(t.cfg.ResponseExchange, amqp091.ExchangeTopic, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return fmt.Errorf("amqp transport: declare response exchange: %w", err)
		}
	}

	replyQueue, err := channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp transport: declare reply queue: %w", err)
	}
	if err := channel.QueueBind(replyQueue.Name, replyQueue.Name, t.cfg.ResponseExchange, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp transport: bind reply queue: %w", err)
	}

	prefetch := t.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := channel.Qos(prefetch, 0, false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp transport: set qos: %w", err)
	}

	replyConsumerTag := "atask-reply-" + uuid.NewString()
	deliveries, err := channel.Consume(replyQueue.Name, replyConsumerTag, false, true, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp transport: consume reply queue: %w", err)
	}

	resumeCb := t.cb

	t.conn = conn
	t.channel = channel
	t.replyQueueName = replyQueue.Name
	t.replyConsumerTag = replyConsumerTag
	t.serverQueueDeclared = false
	t.requestConsumerTag = ""
	t.state = stateConnected

	closeNotify := conn.NotifyClose(make(chan *amqp091.Error, 1))

	go t.consumeReplies(deliveries)
	go t.watchConnection(closeNotify)

	if resumeCb != nil {
		if err := t.listenLocked(resumeCb); err != nil {
			return fmt.Errorf("amqp transport: resuming server queue after reconnect: %w", err)
		}
	}

	t.logger.Info("connected", "replyQueue", replyQueue.Name)
	return nil
}

// watchConnection waits for the broker connection to close and, unless
// Disconnect already put the transport into stateClosed, fails every
// in-flight call and redials with Config.ReconnectBackoff between attempts
// until one succeeds or the transport is explicitly closed. A nil/closed
// closeNotify with no error means Disconnect closed the connection itself,
// so no reconnect is attempted.
func (t *Transport) watchConnection(closeNotify <-chan *amqp091.Error) {
	closeErr, ok := <-closeNotify
	if !ok || closeErr == nil {
		return
	}
	t.logger.Error(closeErr, "amqp connection closed unexpectedly")
	t.failInflight(fmt.Errorf("amqp transport: %w: connection lost", ataskerr.ErrTransport))

	backoff := t.cfg.ReconnectBackoff
	if backoff <= 0 {
		backoff = defaultReconnectBackoff
	}

	for {
		time.Sleep(backoff)

		t.mu.Lock()
		if t.state == stateClosed {
			t.mu.Unlock()
			return
		}
		err := t.connectLocked()
		t.mu.Unlock()

		if err == nil {
			return
		}
		t.logger.Error(err, "reconnect attempt failed")
	}
}

// failInflight fails every currently pending call with err, the same
// draining Disconnect does, so SendRequest callers don't block forever
// waiting on a connection that is being re-established.
func (t *Transport) failInflight(err error) {
	t.inflightMu.Lock()
	defer t.inflightMu.Unlock()
	for id, call := range t.inflight {
		call.result <- pendingResult{err: err}
		delete(t.inflight, id)
	}
}

func (t *Transport) consumeReplies(deliveries <-chan amqp091.Delivery) {
	for d := range deliveries {
		correlationID := d.CorrelationId
		t.inflightMu.Lock()
		call, found := t.inflight[correlationID]
		if found {
			delete(t.inflight, correlationID)
		}
		t.inflightMu.Unlock()

		if !found {
			t.logger.Info("dropping response for unknown correlation id", "correlationId", correlationID)
			_ = d.Ack(false)
			continue
		}

		body := make([]byte, len(d.Body))
		copy(body, d.Body)
		call.result <- pendingResult{body: body}
		_ = d.Ack(false)
	}
}

// RegisterCallback declares/binds the durable server request queue and
// starts a consumer that dispatches each delivery to cb.
func (t *Transport) RegisterCallback(cb transport.Callback) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != stateConnected && t.state != stateListening {
		return fmt.Errorf("amqp transport: RegisterCallback before Connect")
	}
	if err := t.listenLocked(cb); err != nil {
		return fmt.Errorf("amqp transport: %w", err)
	}
	t.logger.Info("listening", "queue", t.cfg.Queue)
	return nil
}

// listenLocked declares/binds the durable server request queue (once per
// channel) and starts a consumer dispatching to cb, cancelling any consumer
// already running on the current channel first. Callers must hold t.mu and
// must already be in stateConnected or stateListening.
func (t *Transport) listenLocked(cb transport.Callback) error {
	if t.state == stateListening {
		if err := t.channel.Cancel(t.requestConsumerTag, false); err != nil {
			return fmt.Errorf("cancel previous consumer: %w", err)
		}
	}

	if !t.serverQueueDeclared {
		if _, err := t.channel.QueueDeclare(t.cfg.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare server queue: %w", err)
		}
		routingKey := t.cfg.Prefix + ".#"
		if err := t.channel.QueueBind(t.cfg.Queue, routingKey, t.cfg.RequestExchange, false, nil); err != nil {
			return fmt.Errorf("bind server queue: %w", err)
		}
		t.serverQueueDeclared = true
	}

	requestConsumerTag := "atask-server-" + uuid.NewString()
	deliveries, err := t.channel.Consume(t.cfg.Queue, requestConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume server queue: %w", err)
	}

	t.cb = cb
	t.requestConsumerTag = requestConsumerTag
	t.state = stateListening
	go t.consumeRequests(deliveries)
	return nil
}

func (t *Transport) consumeRequests(deliveries <-chan amqp091.Delivery) {
	for d := range deliveries {
		t.handleRequest(d)
	}
}

// taskNameFromRoutingKey strips the configured prefix from a routing key to
// recover the task name that was published under it.
func taskNameFromRoutingKey(prefix, routingKey string) string {
	return strings.TrimPrefix(routingKey, prefix+".")
}

func (t *Transport) handleRequest(d amqp091.Delivery) {
	name := taskNameFromRoutingKey(t.cfg.Prefix, d.RoutingKey)

	response, err := t.invokeCallback(name, d.Body)
	if err != nil {
		t.logger.Error(err, "callback failed, rejecting delivery", "task", name)
		_ = d.Nack(false, false)
		return
	}

	t.mu.Lock()
	channel := t.channel
	responseExchange := t.cfg.ResponseExchange
	t.mu.Unlock()

	err = channel.Publish(responseExchange, d.ReplyTo, false, false, amqp091.Publishing{
		CorrelationId: d.CorrelationId,
		Body:          response,
	})
	if err != nil {
		t.logger.Error(err, "publishing response failed", "task", name)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (t *Transport) invokeCallback(name string, body []byte) (response []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("callback panicked for %s: %v", name, rec)
		}
	}()
	t.mu.Lock()
	cb := t.cb
	t.mu.Unlock()
	if cb == nil {
		return nil, ataskerr.ErrCallbackNotInstall
	}
	return cb(context.Background(), name, body)
}

// UnregisterCallback cancels the server consumer and drops the callback.
func (t *Transport) UnregisterCallback() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != stateListening {
		return nil
	}
	if err := t.channel.Cancel(t.requestConsumerTag, false); err != nil {
		return fmt.Errorf("amqp transport: cancel server consumer: %w", err)
	}
	t.cb = nil
	t.state = stateConnected
	t.logger.Info("stopped listening")
	return nil
}

// SendRequest publishes name/body to the request exchange under a fresh
// correlation ID and blocks until the matching reply arrives or ctx is
// done. The publish half runs under the transport mutex; the wait half does
// not, so concurrent calls are not serialized on round-trip latency.
func (t *Transport) SendRequest(ctx context.Context, name string, body []byte) ([]byte, bool, error) {
	correlationID, call, err := t.publish(name, body)
	if err != nil {
		return nil, false, err
	}

	select {
	case result := <-call.result:
		if result.err != nil {
			return nil, false, result.err
		}
		return result.body, true, nil
	case <-ctx.Done():
		t.inflightMu.Lock()
		delete(t.inflight, correlationID)
		t.inflightMu.Unlock()
		return nil, false, ctx.Err()
	}
}

// nextCorrelationID returns a candidate from gen that isn't already a key of
// inflight, retrying gen on collision. Callers must hold inflightMu.
// Factored out of publish so the collision-retry path is unit-testable
// without forcing an actual UUID collision.
func nextCorrelationID(inflight map[string]*pendingCall, gen func() string) string {
	id := gen()
	for {
		if _, exists := inflight[id]; !exists {
			return id
		}
		id = gen()
	}
}

func (t *Transport) publish(name string, body []byte) (string, *pendingCall, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != stateConnected && t.state != stateListening {
		return "", nil, fmt.Errorf("amqp transport: %w: not connected", ataskerr.ErrTransport)
	}

	call := &pendingCall{result: make(chan pendingResult, 1)}

	t.inflightMu.Lock()
	correlationID := nextCorrelationID(t.inflight, uuid.NewString)
	t.inflight[correlationID] = call
	t.inflightMu.Unlock()

	err := t.channel.Publish(t.cfg.RequestExchange, t.cfg.Prefix+"."+name, false, false, amqp091.Publishing{
		CorrelationId: correlationID,
		ReplyTo:       t.replyQueueName,
		Body:          body,
	})
	if err != nil {
		t.inflightMu.Lock()
		delete(t.inflight, correlationID)
		t.inflightMu.Unlock()
		return "", nil, fmt.Errorf("amqp transport: publish: %w: %v", ataskerr.ErrTransport, err)
	}

	return correlationID, call, nil
}

// Disconnect tears down the channel and connection, failing any still
// pending in-flight calls with ataskerr.ErrTransport rather than leaving
// them dangling.
func (t *Transport) Disconnect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == stateClosed || t.state == stateNew {
		t.state = stateClosed
		return nil
	}

	var firstErr error
	if t.channel != nil {
		if err := t.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if t.conn != nil {
		if err := t.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	t.failInflight(ataskerr.ErrTransport)

	t.cb = nil
	t.state = stateClosed
	t.logger.Info("disconnected")
	if firstErr != nil {
		return fmt.Errorf("amqp transport: disconnect: %w", firstErr)
	}
	return nil
}

var _ transport.Transport = (*Transport)(nil)
