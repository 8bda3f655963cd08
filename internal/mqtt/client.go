package mqttx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Options configure the broker connection.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
}

// Client wraps the paho client with context-aware publish/subscribe.
type Client struct {
	client mqtt.Client
	logger *slog.Logger
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "y2m-" + uuid.NewString()[:8]
	}

	pahoOpts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Host, opts.Port)).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false)
	if opts.Username != "" {
		pahoOpts.SetUsername(opts.Username)
		pahoOpts.SetPassword(opts.Password)
	}
	pahoOpts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connected", "broker", fmt.Sprintf("%s:%d", opts.Host, opts.Port))
	}
	pahoOpts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "err", err)
	}

	return &Client{client: mqtt.NewClient(pahoOpts), logger: logger}
}

// Connect establishes the broker session, waiting until the context ends.
// With connect-retry enabled the background client keeps trying after a
// timeout here.
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()
	return waitToken(ctx, token)
}

// Publish sends one message at QoS 0 without retain.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	token := c.client.Publish(topic, 0, false, payload)
	return waitToken(ctx, token)
}

// Subscribe registers a handler for a topic filter at QoS 0. The handler
// runs on a paho goroutine; it must not block.
func (c *Client) Subscribe(ctx context.Context, filter string, handler func(topic string, payload []byte)) error {
	token := c.client.Subscribe(filter, 0, func(_ mqtt.Client, message mqtt.Message) {
		handler(message.Topic(), message.Payload())
	})
	return waitToken(ctx, token)
}

func (c *Client) Unsubscribe(ctx context.Context, filter string) error {
	return waitToken(ctx, c.client.Unsubscribe(filter))
}

// Close disconnects after letting in-flight work settle briefly.
func (c *Client) Close() {
	c.client.Disconnect(250)
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
