//go:build !baremetal

package sensor

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

const (
	nanoPerUnit    = 1_000_000_000
	nanoPaPerHPa   = 100 * int64(physic.Pascal)
	humidityPerPct = int64(physic.PercentRH)
)

// BME280Channels are the channels a BME280 measures.
var BME280Channels = []Channel{Temperature, Pressure, Humidity}

// BME280 reads temperature, pressure and humidity from a Bosch BME280/BMP280
// on a Linux I2C bus.
type BME280 struct {
	bus i2c.BusCloser
	dev *bmxx80.Dev

	mu  sync.Mutex
	env physic.Env
	ok  bool
}

// OpenBME280 initializes the host drivers and opens the sensor at addr on the
// named bus ("" picks the default bus, usually /dev/i2c-1).
func OpenBME280(busName string, addr uint16) (*BME280, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", busName, err)
	}

	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("bmxx80 at 0x%02X: %w: %w", addr, ErrNotReady, err)
	}

	return &BME280{bus: bus, dev: dev}, nil
}

func (b *BME280) Ready() error {
	if b == nil || b.dev == nil {
		return ErrNotReady
	}
	return nil
}

func (b *BME280) Fetch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var env physic.Env
	if err := b.dev.Sense(&env); err != nil {
		return fmt.Errorf("sense: %w", err)
	}
	b.mu.Lock()
	b.env = env
	b.ok = true
	b.mu.Unlock()
	return nil
}

func (b *BME280) Read(ch Channel) (Sample, error) {
	b.mu.Lock()
	env, ok := b.env, b.ok
	b.mu.Unlock()
	if !ok {
		return Sample{}, fmt.Errorf("%s: no sample fetched", ch)
	}

	switch ch {
	case Temperature:
		return TemperatureSample(env.Temperature), nil
	case Pressure:
		return PressureSample(env.Pressure), nil
	case Humidity:
		return HumiditySample(env.Humidity), nil
	default:
		return Sample{}, fmt.Errorf("%s: %w", ch, ErrUnsupportedChannel)
	}
}

// Close halts the sensor and releases the bus.
func (b *BME280) Close() error {
	err := b.dev.Halt()
	if cerr := b.bus.Close(); err == nil {
		err = cerr
	}
	return err
}

// TemperatureSample converts a periph temperature to °C.
func TemperatureSample(t physic.Temperature) Sample {
	return FromFixed(int64(t-physic.ZeroCelsius), nanoPerUnit)
}

// PressureSample converts a periph pressure to hPa.
func PressureSample(p physic.Pressure) Sample {
	return FromFixed(int64(p), nanoPaPerHPa)
}

// HumiditySample converts a periph relative humidity to %RH.
func HumiditySample(h physic.RelativeHumidity) Sample {
	return FromFixed(int64(h), humidityPerPct)
}
