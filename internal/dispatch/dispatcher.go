package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/badkiko/y2m/internal/actions"
	"github.com/badkiko/y2m/internal/model"
	"github.com/badkiko/y2m/internal/storage"
)

// TypeMQTT is the binding-embedded republish action; it bypasses the
// executor registry.
const TypeMQTT = "mqtt"

// ErrBindingNotFound is returned when the requested binding does not exist;
// the HTTP layer maps it to 404.
var ErrBindingNotFound = errors.New("binding not found")

// ErrNoToken is returned by a TokenSource with no stored account token.
var ErrNoToken = errors.New("no token stored")

// BindingStore resolves bindings by id.
type BindingStore interface {
	GetBinding(ctx context.Context, id string) (model.Binding, error)
}

// TokenSource yields the decrypted access token of the linked account.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Publisher sends one MQTT message.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Broadcaster fans an event out to connected UI clients. May be nil.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Dispatcher resolves a binding, merges its stored config with the caller
// payload, routes the invocation to the right executor and reports the
// outcome on the device state topic.
type Dispatcher struct {
	store     BindingStore
	registry  *actions.Registry
	publisher Publisher
	tokens    TokenSource
	hub       Broadcaster
	namespace string
	logger    *slog.Logger
}

func New(store BindingStore, registry *actions.Registry, publisher Publisher, tokens TokenSource, hub Broadcaster, namespace string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		registry:  registry,
		publisher: publisher,
		tokens:    tokens,
		hub:       hub,
		namespace: namespace,
		logger:    logger,
	}
}

// Invoke runs one binding. The returned error is non-nil only when the
// binding does not exist; every execution failure is carried in the result.
func (d *Dispatcher) Invoke(ctx context.Context, bindingID string, payload map[string]any) (model.ActionResult, error) {
	binding, err := d.store.GetBinding(ctx, bindingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.ActionResult{}, ErrBindingNotFound
		}
		return model.ActionResult{}, err
	}

	// Stored config serves as defaults; caller fields win on collision.
	merged := make(map[string]any, len(binding.ActionConfig)+len(payload))
	for key, value := range binding.ActionConfig {
		merged[key] = value
	}
	for key, value := range payload {
		merged[key] = value
	}

	var result model.ActionResult
	switch binding.ActionType {
	case actions.TypeStation:
		result = d.invokeStation(ctx, merged)
	case TypeMQTT:
		result = d.invokeMQTT(ctx, binding, merged, payload)
	default:
		result = d.invokeRegistered(ctx, binding.ActionType, merged)
	}

	d.reportState(ctx, binding, result)
	return result, nil
}

func (d *Dispatcher) invokeStation(ctx context.Context, merged map[string]any) model.ActionResult {
	token, err := d.tokens.AccessToken(ctx)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return model.ActionResult{OK: false, Error: "no Yandex token configured"}
		}
		return model.ActionResult{OK: false, Error: err.Error()}
	}
	merged["oauthToken"] = token
	return d.invokeRegistered(ctx, actions.TypeStation, merged)
}

func (d *Dispatcher) invokeRegistered(ctx context.Context, actionType string, merged map[string]any) model.ActionResult {
	executor, ok := d.registry.Get(actionType)
	if !ok {
		return model.ActionResult{OK: false, Error: fmt.Sprintf("unknown action type %q", actionType)}
	}
	if err := actions.ValidateParams(executor.ConfigSchema(), merged); err != nil {
		return model.ActionResult{OK: false, Error: "invalid config: " + err.Error()}
	}
	return executor.Execute(ctx, merged)
}

func (d *Dispatcher) invokeMQTT(ctx context.Context, binding model.Binding, merged, payload map[string]any) model.ActionResult {
	topic, _ := merged["topic"].(string)
	if strings.TrimSpace(topic) == "" {
		return model.ActionResult{OK: false, Error: "invalid config: missing required param \"topic\""}
	}
	template, _ := merged["payload"].(string)

	values := map[string]string{
		"capability": binding.Capability,
		"instance":   binding.Capability,
		"device_id":  binding.DeviceID,
	}
	if raw, ok := payload["value"]; ok {
		values["value"] = stringify(raw)
	}
	if raw, ok := payload["capability"]; ok {
		values["capability"] = stringify(raw)
	}
	if raw, ok := payload["instance"]; ok {
		values["instance"] = stringify(raw)
	}
	if raw, ok := payload["device_id"]; ok {
		values["device_id"] = stringify(raw)
	}

	rendered := renderTemplate(template, values)
	if err := d.publisher.Publish(ctx, topic, []byte(rendered)); err != nil {
		return model.ActionResult{OK: false, Error: "mqtt publish failed: " + err.Error()}
	}
	return model.ActionResult{OK: true, Output: "published to " + topic}
}

// reportState publishes the invocation envelope to the per-device state
// topic and mirrors it to websocket subscribers. It runs for every
// invocation regardless of origin or outcome.
func (d *Dispatcher) reportState(ctx context.Context, binding model.Binding, result model.ActionResult) {
	envelope := model.InvocationEnvelope{
		BindingID:  binding.ID,
		Capability: binding.Capability,
		Result:     result,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		d.logger.Error("encode state envelope", "binding", binding.ID, "err", err)
		return
	}
	topic := fmt.Sprintf("%s/devices/%s/state", d.namespace, binding.DeviceID)
	if err := d.publisher.Publish(ctx, topic, body); err != nil {
		d.logger.Warn("state publish failed", "topic", topic, "err", err)
	}
	if d.hub != nil {
		d.hub.Broadcast(body)
	}
}
