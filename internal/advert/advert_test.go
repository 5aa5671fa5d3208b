package advert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"tinygo.org/x/bluetooth"

	"cloudpico-bthome/internal/beacon"
	"cloudpico-bthome/internal/bthome"
	"cloudpico-bthome/internal/sensor"
)

type fakeAdv struct {
	configured   [][]byte
	names        []string
	starts       int
	stops        int
	failConfig   error
	failStart    error
	lastAdvType  bluetooth.AdvertisingType
	lastInterval bluetooth.Duration
}

func (f *fakeAdv) Configure(o bluetooth.AdvertisementOptions) error {
	if f.failConfig != nil {
		return f.failConfig
	}
	if len(o.ServiceData) != 1 || o.ServiceData[0].UUID != bluetooth.New16BitUUID(0xFCD2) {
		return errors.New("unexpected service data")
	}
	f.configured = append(f.configured, append([]byte(nil), o.ServiceData[0].Data...))
	f.names = append(f.names, o.LocalName)
	f.lastAdvType = o.AdvertisementType
	f.lastInterval = o.Interval
	return nil
}

func (f *fakeAdv) Start() error {
	if f.failStart != nil {
		return f.failStart
	}
	f.starts++
	return nil
}

func (f *fakeAdv) Stop() error {
	f.stops++
	return nil
}

func tempPacket(t *testing.T, centi int64) *bthome.Packet {
	t.Helper()
	p, err := bthome.NewPacket("temp", []sensor.Channel{sensor.Temperature}, false)
	if err != nil {
		t.Fatalf("NewPacket() error = %v", err)
	}
	if _, err := p.Set(sensor.Temperature, centi); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	return p
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBLEPushReconfigures(t *testing.T) {
	adv := &fakeAdv{}
	b := newBLE(adv, BLEOptions{LocalName: "DIY-sensor", Interval: time.Second}, discard())

	if err := b.Push(context.Background(), tempPacket(t, 2250)); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if err := b.Push(context.Background(), tempPacket(t, -500)); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	want := [][]byte{
		{0x40, 0x02, 0xCA, 0x08},
		{0x40, 0x02, 0x0C, 0xFE},
	}
	if len(adv.configured) != len(want) {
		t.Fatalf("configured %d times, want %d", len(adv.configured), len(want))
	}
	for i := range want {
		if !bytes.Equal(adv.configured[i], want[i]) {
			t.Errorf("service data %d = % X, want % X", i, adv.configured[i], want[i])
		}
	}
	if adv.starts != 2 || adv.stops != 1 {
		t.Errorf("starts = %d, stops = %d; want 2, 1", adv.starts, adv.stops)
	}
	if adv.names[0] != "DIY-sensor" {
		t.Errorf("LocalName = %q, want DIY-sensor", adv.names[0])
	}
	if adv.lastAdvType != bluetooth.AdvertisingTypeNonConnInd {
		t.Errorf("AdvertisementType = %v, want non-connectable", adv.lastAdvType)
	}
	if adv.lastInterval != bluetooth.NewDuration(time.Second) {
		t.Errorf("Interval = %v, want 1s", adv.lastInterval)
	}

	if err := b.Stop(); err != nil || adv.stops != 2 {
		t.Errorf("Stop() error = %v, stops = %d; want nil, 2", err, adv.stops)
	}
	if err := b.Stop(); err != nil || adv.stops != 2 {
		t.Errorf("second Stop() error = %v, stops = %d; want nil, 2", err, adv.stops)
	}
}

func TestBLEPushErrors(t *testing.T) {
	adv := &fakeAdv{failConfig: errors.New("busy")}
	b := newBLE(adv, BLEOptions{}, discard())
	if err := b.Push(context.Background(), tempPacket(t, 1)); err == nil {
		t.Fatal("Push() with failing Configure error = nil")
	}

	adv = &fakeAdv{failStart: errors.New("no radio")}
	b = newBLE(adv, BLEOptions{}, discard())
	if err := b.Push(context.Background(), tempPacket(t, 1)); err == nil {
		t.Fatal("Push() with failing Start error = nil")
	}
	if b.running {
		t.Error("running = true after failed Start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Push(ctx, tempPacket(t, 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Push(canceled) error = %v, want context.Canceled", err)
	}
}

type countingTx struct {
	n   int
	err error
}

func (c *countingTx) Push(context.Context, *bthome.Packet) error {
	c.n++
	return c.err
}

func TestMultiTriesEveryTransmitter(t *testing.T) {
	errRadio := errors.New("radio")
	errBroker := errors.New("broker")
	a, b, c := &countingTx{err: errRadio}, &countingTx{}, &countingTx{err: errBroker}

	err := Multi{a, b, c}.Push(context.Background(), tempPacket(t, 1))
	if a.n != 1 || b.n != 1 || c.n != 1 {
		t.Errorf("pushes = %d %d %d, want 1 1 1", a.n, b.n, c.n)
	}
	if !errors.Is(err, errRadio) || !errors.Is(err, errBroker) {
		t.Errorf("Push() error = %v, want both failures", err)
	}
	if err := (Multi{b}).Push(context.Background(), tempPacket(t, 1)); err != nil {
		t.Errorf("Push() error = %v, want nil", err)
	}
}

var _ beacon.Transmitter = Multi(nil)
var _ beacon.Transmitter = Log{}
var _ beacon.Transmitter = (*BLE)(nil)

func TestLogWritesFrame(t *testing.T) {
	var buf bytes.Buffer
	l := Log{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	if err := l.Push(context.Background(), tempPacket(t, 2250)); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"packet=temp", "uuid=FCD2", "data=D2FC4002CA08"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}
