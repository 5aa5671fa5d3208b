package app

import (
	"context"
	"log/slog"

	"cloudpico-bthome/internal/config"
	"cloudpico-bthome/internal/mqtt"
	"cloudpico-bthome/internal/scan"
)

// RunScan listens for BTHome advertisements and publishes them until ctx is
// done. A missing adapter is logged and the scanner keeps waiting, like the
// gateway it grew out of.
func RunScan(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()

	var pub scan.Publisher
	if cfg.MQTTEnabled {
		slog.Info("initializing scanner",
			"mqtt_broker", cfg.MQTTBroker,
			"mqtt_port", cfg.MQTTPort,
			"mqtt_client_id", cfg.MQTTClientID,
		)
		mqttClient, err := mqtt.NewClient(cfg, logger)
		if err != nil {
			return err
		}
		defer mqttClient.Disconnect()
		go func() {
			if err := mqttClient.Connect(ctx); err != nil && ctx.Err() == nil {
				slog.Error("mqtt connect failed", "error", err)
			}
		}()
		pub = mqttClient
	}

	listener := scan.NewListener(scan.Options{
		Adapter: cfg.BLEAdapter,
		Filter:  scan.Filter{LocalName: cfg.ScanLocalName},
	})
	handler := scan.NewHandler(pub, logger)
	go func() {
		if err := listener.Run(ctx, handler.HandleObservation); err != nil {
			slog.Warn("ble listener could not be initialized; scanner continues without BLE",
				"error", err,
			)
		}
	}()
	<-ctx.Done()

	slog.Info("scanner shutting down")
	return nil
}
