package mqttx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/badkiko/y2m/internal/dispatch"
)

const (
	inboundBuffer   = 64
	dispatchTimeout = 30 * time.Second
	drainGrace      = 3 * time.Second
)

// Subscriber is the broker surface the listener needs.
type Subscriber interface {
	Subscribe(ctx context.Context, filter string, handler func(topic string, payload []byte)) error
	Unsubscribe(ctx context.Context, filter string) error
}

// Listener feeds inbound binding-invoke messages to the dispatcher. One
// instance runs for the process lifetime.
type Listener struct {
	client     Subscriber
	dispatcher *dispatch.Dispatcher
	namespace  string
	logger     *slog.Logger
}

func NewListener(client Subscriber, dispatcher *dispatch.Dispatcher, namespace string, logger *slog.Logger) *Listener {
	return &Listener{client: client, dispatcher: dispatcher, namespace: namespace, logger: logger}
}

type inbound struct {
	topic   string
	payload []byte
}

// Run subscribes to the wildcard invoke filter and loops until the context
// is cancelled. Messages arriving faster than they are dispatched may be
// dropped (at-most-once delivery is accepted).
func (l *Listener) Run(ctx context.Context) error {
	filter := l.namespace + "/bindings/+/invoke"
	messages := make(chan inbound, inboundBuffer)

	err := l.client.Subscribe(ctx, filter, func(topic string, payload []byte) {
		select {
		case messages <- inbound{topic: topic, payload: payload}:
		default:
			l.logger.Warn("inbound queue full, dropping message", "topic", topic)
		}
	})
	if err != nil {
		return err
	}
	l.logger.Info("mqtt listener subscribed", "filter", filter)

	for {
		select {
		case <-ctx.Done():
			l.drain(messages)
			unsubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = l.client.Unsubscribe(unsubCtx, filter)
			return nil
		case message := <-messages:
			l.handle(message)
		}
	}
}

// drain processes whatever is already queued, bounded by a short grace
// period, then gives up.
func (l *Listener) drain(messages chan inbound) {
	deadline := time.Now().Add(drainGrace)
	for {
		if time.Now().After(deadline) {
			return
		}
		select {
		case message := <-messages:
			l.handle(message)
		default:
			return
		}
	}
}

// handle contains one dispatch; a failing message never breaks the loop.
func (l *Listener) handle(message inbound) {
	bindingID, ok := BindingIDFromTopic(message.topic)
	if !ok {
		l.logger.Debug("dropping message with unexpected topic", "topic", message.topic)
		return
	}

	payload := map[string]any{}
	if len(message.payload) > 0 {
		if err := json.Unmarshal(message.payload, &payload); err != nil {
			// Malformed payload is treated as an empty invocation.
			payload = map[string]any{}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	result, err := l.dispatcher.Invoke(ctx, bindingID, payload)
	if err != nil {
		if errors.Is(err, dispatch.ErrBindingNotFound) {
			l.logger.Debug("invoke for unknown binding", "binding", bindingID)
			return
		}
		l.logger.Error("dispatch failed", "binding", bindingID, "err", err)
		return
	}
	if !result.OK {
		l.logger.Warn("binding invocation failed", "binding", bindingID, "detail", result.Error)
	}
}

// BindingIDFromTopic extracts the binding id from the fixed topic shape
// <ns>/bindings/<id>/invoke. Any other segment count or layout is rejected.
func BindingIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[1] != "bindings" || parts[3] != "invoke" {
		return "", false
	}
	if parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
