// Package advert holds the transmitters that put BTHome packets on the air.
package advert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"cloudpico-bthome/internal/bthome"
)

// BLEOptions configures the tinygo bluetooth advertisement.
type BLEOptions struct {
	LocalName string
	Interval  time.Duration
}

// advertiser is the part of *bluetooth.Advertisement the transmitter uses.
type advertiser interface {
	Configure(options bluetooth.AdvertisementOptions) error
	Start() error
	Stop() error
}

// BLE advertises packets through tinygo bluetooth. Each push stops the
// running advertisement, reconfigures it with the new service data and
// starts it again, which the HCI based stacks (CYW43439, nRF) support.
type BLE struct {
	mu      sync.Mutex
	adv     advertiser
	options bluetooth.AdvertisementOptions
	running bool
	logger  *slog.Logger
}

// NewBLE enables the adapter and prepares its default advertisement.
func NewBLE(adapter *bluetooth.Adapter, opts BLEOptions, logger *slog.Logger) (*BLE, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble enable: %w", err)
	}
	return newBLE(adapter.DefaultAdvertisement(), opts, logger), nil
}

func newBLE(adv advertiser, opts BLEOptions, logger *slog.Logger) *BLE {
	if logger == nil {
		logger = slog.Default()
	}
	b := &BLE{adv: adv, logger: logger}
	b.options = bluetooth.AdvertisementOptions{
		AdvertisementType: bluetooth.AdvertisingTypeNonConnInd,
		LocalName:         opts.LocalName,
		Interval:          bluetooth.NewDuration(opts.Interval),
		ServiceData: []bluetooth.ServiceDataElement{
			{UUID: bluetooth.New16BitUUID(bthome.ServiceUUID)},
		},
	}
	return b
}

// Push replaces the advertised service data with p.
func (b *BLE) Push(ctx context.Context, p *bthome.Packet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		if err := b.adv.Stop(); err != nil {
			b.logger.Warn("ble: adv stop failed", "error", err)
		}
		b.running = false
	}

	b.options.ServiceData[0].Data = p.Payload()
	if err := b.adv.Configure(b.options); err != nil {
		return fmt.Errorf("ble configure %s: %w", p.Name(), err)
	}
	if err := b.adv.Start(); err != nil {
		b.adv.Stop()
		return fmt.Errorf("ble start %s: %w", p.Name(), err)
	}
	b.running = true
	return nil
}

// Stop ends advertising.
func (b *BLE) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return nil
	}
	b.running = false
	return b.adv.Stop()
}
