package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"cloudpico-bthome/internal/bthome"
	"cloudpico-bthome/internal/config"
	"cloudpico-bthome/internal/telemetry"
)

const publishTimeout = 5 * time.Second

type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg config.Config, logger *slog.Logger) (*Client, error) {
	c := newClient(cfg, logger, nil)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		c.logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		c.logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

func newClient(cfg config.Config, logger *slog.Logger, client mqtt.Client) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client: client,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Connect establishes connection to the MQTT broker.
// It waits for the initial connection and respects ctx and Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry(true) paho keeps retrying internally.
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// Push mirrors a beacon packet to stations/<id>/bthome. It lets the MQTT
// client stand in for, or run next to, the radio.
func (c *Client) Push(ctx context.Context, p *bthome.Packet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload := p.Payload()
	fr, err := bthome.Decode(payload)
	if err != nil {
		return fmt.Errorf("decode %s: %w", p.Name(), err)
	}
	t := telemetry.FromFrame(c.cfg.DeviceStationID, fr, payload, time.Now())
	return c.publish(fmt.Sprintf("stations/%s/bthome", t.StationID), false, t)
}

// PublishTelemetry publishes telemetry data to the station topic.
func (c *Client) PublishTelemetry(t telemetry.Telemetry) error {
	if t.StationID == "" {
		t.StationID = c.cfg.DeviceStationID
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	return c.publish(fmt.Sprintf("stations/%s/telemetry", t.StationID), false, t)
}

// PublishStationHealth publishes the retained last-seen state of a station.
func (c *Client) PublishStationHealth(health telemetry.StationHealth) error {
	if health.LastSeen.IsZero() {
		health.LastSeen = time.Now()
	}
	return c.publish(fmt.Sprintf("stations/%s/health", health.StationID), true, health)
}

func (c *Client) publish(topic string, retained bool, v any) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	token := c.client.Publish(topic, 1, retained, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		c.logger.Error("mqtt publish failed", "topic", topic, "error", err)
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	c.logger.Debug("mqtt published", "topic", topic, "bytes", len(data))
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the MQTT connection. It is
// idempotent; afterwards Connect returns "client stopped".
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	// Paho Disconnect quiesces in-flight work for the given ms.
	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
