// Package scan listens for BTHome advertisements and turns them into
// telemetry.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tinygo.org/x/bluetooth"

	"cloudpico-bthome/internal/bthome"
	"cloudpico-bthome/internal/utils"
)

// Observation is one BTHome service data element seen in an advertisement.
type Observation struct {
	Address   string
	RSSI      int16
	LocalName string
	Data      []byte // service data after the UUID
	SeenAt    time.Time
}

type Filter struct {
	LocalName string
}

type Options struct {
	Adapter string // "hci0" by default
	Filter  Filter
}

// Listener wraps BlueZ scanning with context cancellation.
type Listener struct {
	adapter *bluetooth.Adapter
	opts    Options
	uuid    bluetooth.UUID
}

func NewListener(opts Options) *Listener {
	if opts.Adapter == "" {
		opts.Adapter = "hci0"
	}
	return &Listener{
		adapter: newAdapter(opts.Adapter),
		opts:    opts,
		uuid:    bluetooth.New16BitUUID(bthome.ServiceUUID),
	}
}

// Run scans until ctx is done. onFrame is called from the bluetooth stack's
// goroutine for every BTHome element that passes the filter.
func (l *Listener) Run(ctx context.Context, onFrame func(Observation)) error {
	slog.Info("ble: enabling adapter", "adapter", l.opts.Adapter)
	if err := l.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable (%s): %w", l.opts.Adapter, err)
	}

	go func() {
		<-ctx.Done()
		_ = l.adapter.StopScan()
	}()

	slog.Info("ble: scanning started",
		"uuid", utils.Hex4(bthome.ServiceUUID),
		"filter_name", l.opts.Filter.LocalName,
	)

	// adapter.Scan blocks until StopScan() or error.
	err := l.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		for _, obs := range l.match(r.Address.String(), r.RSSI, r.LocalName(), r.ServiceData()) {
			onFrame(obs)
		}
	})

	if ctx.Err() != nil {
		slog.Info("ble: scanning stopped (context canceled)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ble scan: %w", err)
	}

	slog.Info("ble: scanning stopped")
	return nil
}

func (l *Listener) match(addr string, rssi int16, name string, elems []bluetooth.ServiceDataElement) []Observation {
	if l.opts.Filter.LocalName != "" && name != l.opts.Filter.LocalName {
		return nil
	}
	var out []Observation
	for _, sd := range elems {
		if sd.UUID != l.uuid {
			continue
		}
		out = append(out, Observation{
			Address:   addr,
			RSSI:      rssi,
			LocalName: name,
			Data:      append([]byte(nil), sd.Data...),
			SeenAt:    time.Now(),
		})
	}
	return out
}
