package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"cloudpico-bthome/internal/bthome"
	"cloudpico-bthome/internal/config"
	"cloudpico-bthome/internal/sensor"
	"cloudpico-bthome/internal/telemetry"
)

type token struct{ err error }

func (t token) Wait() bool                     { return true }
func (t token) WaitTimeout(time.Duration) bool { return true }
func (t token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t token) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// fakePaho implements the parts of mqtt.Client the wrapper calls.
type fakePaho struct {
	mqtt.Client

	mu           sync.Mutex
	connected    bool
	published    []message
	fail         error
	disconnected int
}

func (f *fakePaho) IsConnected() bool { return f.connected }

func (f *fakePaho) Connect() mqtt.Token {
	f.connected = true
	return token{}
}

func (f *fakePaho) Disconnect(uint) {
	f.disconnected++
	f.connected = false
}

func (f *fakePaho) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return token{err: f.fail}
	}
	f.published = append(f.published, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return token{}
}

func newTestClient(t *testing.T) (*Client, *fakePaho) {
	t.Helper()
	paho := &fakePaho{}
	c := newClient(config.Config{DeviceStationID: "home"}, slog.New(slog.NewTextHandler(io.Discard, nil)), paho)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	c.setConnected(true)
	return c, paho
}

func TestPushPublishesDecodedFrame(t *testing.T) {
	c, paho := newTestClient(t)

	p, err := bthome.NewPacket("temp_hum", []sensor.Channel{sensor.Temperature, sensor.Humidity}, false)
	if err != nil {
		t.Fatal(err)
	}
	p.SetSample(sensor.Temperature, sensor.Sample{Integer: 22, Fraction: 500000})
	p.SetSample(sensor.Humidity, sensor.Sample{Integer: 55})

	if err := c.Push(context.Background(), p); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if len(paho.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(paho.published))
	}
	msg := paho.published[0]
	if msg.topic != "stations/home/bthome" || msg.retained {
		t.Errorf("topic = %s retained = %v, want stations/home/bthome false", msg.topic, msg.retained)
	}

	var got telemetry.Telemetry
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Temperature == nil || *got.Temperature != 22.5 {
		t.Errorf("Temperature = %v, want 22.5", got.Temperature)
	}
	if got.Humidity == nil || *got.Humidity != 55 {
		t.Errorf("Humidity = %v, want 55", got.Humidity)
	}
	if got.Frame != "4002CA08037C15" {
		t.Errorf("Frame = %q, want 4002CA08037C15", got.Frame)
	}
}

func TestPublishHealthIsRetained(t *testing.T) {
	c, paho := newTestClient(t)

	if err := c.PublishStationHealth(telemetry.StationHealth{StationID: "garden", Healthy: true}); err != nil {
		t.Fatalf("PublishStationHealth() error = %v", err)
	}
	if err := c.PublishTelemetry(telemetry.Telemetry{}); err != nil {
		t.Fatalf("PublishTelemetry() error = %v", err)
	}

	want := []struct {
		topic    string
		retained bool
	}{
		{"stations/garden/health", true},
		{"stations/home/telemetry", false},
	}
	for i, w := range want {
		if paho.published[i].topic != w.topic || paho.published[i].retained != w.retained {
			t.Errorf("message %d = %s/%v, want %s/%v", i, paho.published[i].topic, paho.published[i].retained, w.topic, w.retained)
		}
	}
}

func TestPublishErrors(t *testing.T) {
	c, paho := newTestClient(t)

	paho.fail = errors.New("broker gone")
	if err := c.PublishTelemetry(telemetry.Telemetry{}); !errors.Is(err, paho.fail) {
		t.Errorf("PublishTelemetry() error = %v, want %v", err, paho.fail)
	}

	c.Disconnect()
	c.Disconnect()
	if paho.disconnected != 2 {
		t.Errorf("Disconnect calls = %d, want 2", paho.disconnected)
	}
	if err := c.PublishTelemetry(telemetry.Telemetry{}); err == nil {
		t.Error("PublishTelemetry() after Disconnect error = nil")
	}
	if err := c.Connect(context.Background()); err == nil {
		t.Error("Connect() after Disconnect error = nil")
	}
}
