package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"cloudpico-bthome/internal/advert"
	"cloudpico-bthome/internal/advert/hci"
	"cloudpico-bthome/internal/beacon"
	"cloudpico-bthome/internal/bthome"
	"cloudpico-bthome/internal/config"
	"cloudpico-bthome/internal/mqtt"
	"cloudpico-bthome/internal/sensor"
)

// Run starts the beacon: sensor, packet set, transmitters and scheduler.
// It returns when ctx is done or startup fails.
func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()

	set, err := bthome.BuildPacketSet(cfg.SensorChannels, cfg.PayloadBudget(), cfg.PacketID)
	if err != nil {
		return fmt.Errorf("%w: %w", beacon.ErrInit, err)
	}
	for _, p := range set.Packets {
		logger.Info("beacon: packet layout",
			"packet", p.Name(),
			"len", p.Len(),
			"channels", fmt.Sprint(p.Channels()),
		)
	}

	src, closeSrc, err := openSource(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", beacon.ErrInit, err)
	}
	defer closeSrc.Close()

	var txs advert.Multi
	if cfg.BLEEnabled {
		tx, closeTx, err := openBLE(cfg, logger)
		if err != nil {
			return fmt.Errorf("%w: %w", beacon.ErrInit, err)
		}
		defer closeTx.Close()
		txs = append(txs, tx)
	}
	if cfg.MQTTEnabled {
		logger.Info("initializing mqtt mirror",
			"mqtt_broker", cfg.MQTTBroker,
			"mqtt_port", cfg.MQTTPort,
			"mqtt_client_id", cfg.MQTTClientID,
		)
		mqttClient, err := mqtt.NewClient(cfg, logger)
		if err != nil {
			return fmt.Errorf("%w: %w", beacon.ErrInit, err)
		}
		defer mqttClient.Disconnect()
		go func() {
			if err := mqttClient.Connect(ctx); err != nil && ctx.Err() == nil {
				logger.Error("mqtt connect failed", "error", err)
			}
		}()
		txs = append(txs, mqttClient)
	}
	if len(txs) == 0 {
		logger.Warn("no transmitter enabled; packets are only logged")
		txs = append(txs, advert.Log{Logger: logger})
	}

	sched, err := beacon.New(src, txs, set, beacon.Options{
		Channels:    cfg.SensorChannels,
		Interval:    cfg.UpdateInterval,
		Dwell:       cfg.AdvDwell,
		AdvInterval: cfg.AdvInterval,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	return sched.Run(ctx)
}

func openSource(cfg config.Config) (sensor.Source, io.Closer, error) {
	switch cfg.SensorDriver {
	case config.SensorDriverStatic:
		return sensor.NewStatic(cfg.StaticReadings), io.NopCloser(nil), nil
	default:
		for _, ch := range cfg.SensorChannels {
			if !slices.Contains(sensor.BME280Channels, ch) {
				return nil, nil, fmt.Errorf("bme280 cannot measure %s", ch)
			}
		}
		dev, err := sensor.OpenBME280(cfg.I2CBus, cfg.BME280Address)
		if err != nil {
			return nil, nil, err
		}
		return dev, dev, nil
	}
}

func openBLE(cfg config.Config, logger *slog.Logger) (beacon.Transmitter, io.Closer, error) {
	if cfg.BLEBackend == config.BLEBackendLog {
		return advert.Log{Logger: logger}, io.NopCloser(nil), nil
	}
	id, err := cfg.AdapterIndex()
	if err != nil {
		return nil, nil, err
	}
	tx, err := hci.Open(id, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("ble: advertising over raw hci", "adapter", cfg.BLEAdapter)
	return tx, tx, nil
}
