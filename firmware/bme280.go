package main

import (
	"context"
	"fmt"
	"machine"

	"tinygo.org/x/drivers/bme280"

	"cloudpico-bthome/internal/sensor"
)

// bme280Source reads the BME280 wired to I2C1 (GP32/GP33).
type bme280Source struct {
	dev     bme280.Device
	t, p, h int32
	ok      bool
}

func newBME280() (*bme280Source, error) {
	i2c := machine.I2C1
	if err := i2c.Configure(machine.I2CConfig{
		SDA:       machine.GP32,
		SCL:       machine.GP33,
		Frequency: 400 * machine.KHz,
	}); err != nil {
		return nil, err
	}

	s := &bme280Source{dev: bme280.New(i2c)}
	s.dev.Configure()
	return s, nil
}

func (s *bme280Source) Ready() error {
	if !s.dev.Connected() {
		return sensor.ErrNotReady
	}
	return nil
}

func (s *bme280Source) Fetch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := s.dev.ReadTemperature()
	if err != nil {
		return fmt.Errorf("temperature: %w", err)
	}
	p, err := s.dev.ReadPressure()
	if err != nil {
		return fmt.Errorf("pressure: %w", err)
	}
	h, err := s.dev.ReadHumidity()
	if err != nil {
		return fmt.Errorf("humidity: %w", err)
	}
	s.t, s.p, s.h, s.ok = t, p, h, true
	return nil
}

func (s *bme280Source) Read(ch sensor.Channel) (sensor.Sample, error) {
	if !s.ok {
		return sensor.Sample{}, fmt.Errorf("%s: no sample fetched", ch)
	}
	switch ch {
	case sensor.Temperature:
		return sensor.FromFixed(int64(s.t), 1000), nil // m°C
	case sensor.Pressure:
		return sensor.FromFixed(int64(s.p), 100_000), nil // mPa
	case sensor.Humidity:
		return sensor.FromFixed(int64(s.h), 100), nil // 0.01 %RH
	default:
		return sensor.Sample{}, fmt.Errorf("%s: %w", ch, sensor.ErrUnsupportedChannel)
	}
}
