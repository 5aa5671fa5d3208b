// Command firmware is the Pico 2 W BTHome beacon.
package main

import (
	"context"
	"log/slog"
	"machine"
	"time"

	"tinygo.org/x/bluetooth"

	"cloudpico-bthome/internal/advert"
	"cloudpico-bthome/internal/beacon"
	"cloudpico-bthome/internal/bthome"
	"cloudpico-bthome/internal/sensor"
)

const (
	localName   = "DIY-sensor"
	advInterval = time.Second
)

var channels = []sensor.Channel{sensor.Temperature, sensor.Humidity, sensor.Pressure}

func main() {
	// USB CDC serial
	machine.Serial.Configure(machine.UARTConfig{})

	// Give the host time to enumerate the USB serial device.
	time.Sleep(1500 * time.Millisecond)

	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("boot: pico2w bthome beacon")

	src, err := newBME280()
	if err != nil {
		halt(logger, "bme280 init failed", err)
	}

	ble, err := advert.NewBLE(bluetooth.DefaultAdapter, advert.BLEOptions{
		LocalName: localName,
		Interval:  advInterval,
	}, logger)
	if err != nil {
		halt(logger, "ble init failed", err)
	}

	set, err := bthome.BuildPacketSet(channels, bthome.ServiceDataBudget(bthome.LegacyMaxPayload, localName), false)
	if err != nil {
		halt(logger, "packet layout failed", err)
	}

	sched, err := beacon.New(src, ble, set, beacon.Options{
		Channels:    channels,
		AdvInterval: advInterval,
		Logger:      logger,
	})
	if err != nil {
		halt(logger, "beacon init failed", err)
	}

	sched.Run(context.Background())
}

// halt keeps reporting a fatal error; a microcontroller has nowhere to exit to.
func halt(logger *slog.Logger, msg string, err error) {
	for {
		logger.Error(msg, "error", err)
		time.Sleep(time.Second)
	}
}
