package mqttx

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/badkiko/y2m/internal/actions"
	"github.com/badkiko/y2m/internal/dispatch"
	"github.com/badkiko/y2m/internal/model"
	"github.com/badkiko/y2m/internal/storage"
)

type fakeSubscriber struct {
	mu           sync.Mutex
	filter       string
	handler      func(topic string, payload []byte)
	unsubscribed bool
}

func (s *fakeSubscriber) Subscribe(_ context.Context, filter string, handler func(topic string, payload []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	s.handler = handler
	return nil
}

func (s *fakeSubscriber) Unsubscribe(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed = true
	return nil
}

// deliver simulates a broker message arriving on the subscription.
func (s *fakeSubscriber) deliver(t *testing.T, topic string, payload []byte) {
	t.Helper()
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler == nil {
		t.Fatal("deliver before subscribe")
	}
	handler(topic, payload)
}

func (s *fakeSubscriber) isUnsubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

type fakeBindings struct {
	bindings map[string]model.Binding
}

func (s *fakeBindings) GetBinding(_ context.Context, id string) (model.Binding, error) {
	binding, ok := s.bindings[id]
	if !ok {
		return model.Binding{}, storage.ErrNotFound
	}
	return binding, nil
}

type recordPublisher struct {
	mu       sync.Mutex
	messages map[string][]string
}

func (p *recordPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = map[string][]string{}
	}
	p.messages[topic] = append(p.messages[topic], string(payload))
	return nil
}

func (p *recordPublisher) byTopic(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.messages[topic]...)
}

type fakeTokens struct{}

func (fakeTokens) AccessToken(context.Context) (string, error) { return "", dispatch.ErrNoToken }

func mqttBinding(id, deviceID, topic, template string) model.Binding {
	return model.Binding{
		ID:         id,
		DeviceID:   deviceID,
		Capability: "on",
		ActionType: dispatch.TypeMQTT,
		ActionConfig: map[string]any{
			"topic":   topic,
			"payload": template,
		},
	}
}

// startListener runs the listener against in-memory fakes and returns the
// pieces a test needs to drive and observe it.
func startListener(t *testing.T, bindings map[string]model.Binding) (*fakeSubscriber, *recordPublisher, context.CancelFunc, chan error) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	subscriber := &fakeSubscriber{}
	publisher := &recordPublisher{}
	dispatcher := dispatch.New(&fakeBindings{bindings: bindings}, actions.NewRegistry(), publisher, fakeTokens{}, nil, "y2m", logger)
	listener := NewListener(subscriber, dispatcher, "y2m", logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- listener.Run(ctx)
	}()

	waitFor(t, "subscription", func() bool {
		subscriber.mu.Lock()
		defer subscriber.mu.Unlock()
		return subscriber.handler != nil
	})
	t.Cleanup(cancel)
	return subscriber, publisher, cancel, done
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestListenerMalformedPayloadInvokesWithEmptyObject(t *testing.T) {
	bindings := map[string]model.Binding{
		"bnd-1": mqttBinding("bnd-1", "dev-1", "home/lamp1/cmd", "ping"),
	}
	subscriber, publisher, _, _ := startListener(t, bindings)

	subscriber.deliver(t, "y2m/bindings/bnd-1/invoke", []byte("not-json{"))

	waitFor(t, "command publish", func() bool {
		return len(publisher.byTopic("home/lamp1/cmd")) == 1
	})
	if got := publisher.byTopic("home/lamp1/cmd"); got[0] != "ping" {
		t.Fatalf("unexpected command payload: %q", got[0])
	}
	// The state envelope still goes out for the malformed trigger.
	waitFor(t, "state publish", func() bool {
		return len(publisher.byTopic("y2m/devices/dev-1/state")) == 1
	})
}

func TestListenerSurvivesFailingMessages(t *testing.T) {
	bindings := map[string]model.Binding{
		"bnd-ok": mqttBinding("bnd-ok", "dev-1", "home/lamp1/cmd", "on"),
	}
	subscriber, publisher, _, _ := startListener(t, bindings)

	// Neither an unknown binding nor a bogus topic may break the loop.
	subscriber.deliver(t, "y2m/bindings/ghost/invoke", []byte(`{}`))
	subscriber.deliver(t, "y2m/not-a-binding-topic", []byte(`{}`))
	subscriber.deliver(t, "y2m/bindings/bnd-ok/invoke", []byte(`{}`))

	waitFor(t, "dispatch after failures", func() bool {
		return len(publisher.byTopic("home/lamp1/cmd")) == 1
	})
	if got := publisher.byTopic("home/lamp1/cmd"); got[0] != "on" {
		t.Fatalf("unexpected command payload: %q", got[0])
	}
}

func TestListenerStopDrainsQueuedMessages(t *testing.T) {
	bindings := map[string]model.Binding{
		"bnd-1": mqttBinding("bnd-1", "dev-1", "home/lamp1/cmd", "bye"),
	}
	subscriber, publisher, cancel, done := startListener(t, bindings)

	subscriber.deliver(t, "y2m/bindings/bnd-1/invoke", []byte(`{}`))
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	// The already-queued message was handled before shutdown completed.
	if got := publisher.byTopic("home/lamp1/cmd"); len(got) != 1 {
		t.Fatalf("queued message not drained, publishes = %v", got)
	}
	if !subscriber.isUnsubscribed() {
		t.Fatal("listener must unsubscribe on stop")
	}
}

func TestBindingIDFromTopic(t *testing.T) {
	cases := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"y2m/bindings/bnd-1/invoke", "bnd-1", true},
		{"other-ns/bindings/abc/invoke", "abc", true},
		{"y2m/bindings//invoke", "", false},
		{"y2m/bindings/bnd-1", "", false},
		{"y2m/bindings/bnd-1/invoke/extra", "", false},
		{"y2m/devices/dev-1/state", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		id, ok := BindingIDFromTopic(tc.topic)
		if ok != tc.wantOK || id != tc.wantID {
			t.Fatalf("BindingIDFromTopic(%q) = (%q, %v), want (%q, %v)",
				tc.topic, id, ok, tc.wantID, tc.wantOK)
		}
	}
}
