// Package hci advertises BTHome packets by driving a Linux HCI socket
// directly through go-ble, bypassing BlueZ's advertising manager so the
// service data can be replaced on every push.
package hci

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloudpico-bthome/internal/bthome"
)

// startupWait is how long Push waits for the controller to reject the new
// advertising data before it reports success.
const startupWait = 50 * time.Millisecond

// device is the advertising half of a go-ble device.
type device interface {
	AdvertiseServiceData16(ctx context.Context, id uint16, b []byte) error
	Stop() error
}

// Transmitter keeps at most one advertisement running on the device.
type Transmitter struct {
	mu     sync.Mutex
	dev    device
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan error
}

func newTransmitter(dev device, logger *slog.Logger) *Transmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transmitter{dev: dev, logger: logger}
}

// Push stops the running advertisement and starts a new one carrying p.
func (t *Transmitter) Push(ctx context.Context, p *bthome.Packet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	data := append([]byte(nil), p.Payload()...)
	advCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- t.dev.AdvertiseServiceData16(advCtx, bthome.ServiceUUID, data)
	}()

	timer := time.NewTimer(startupWait)
	defer timer.Stop()
	select {
	case err := <-done:
		cancel()
		if err == nil {
			err = errors.New("advertising ended immediately")
		}
		return fmt.Errorf("hci advertise %s: %w", p.Name(), err)
	case <-timer.C:
	}

	t.cancel, t.done = cancel, done
	return nil
}

func (t *Transmitter) stopLocked() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	if err := <-t.done; err != nil && !errors.Is(err, context.Canceled) {
		t.logger.Warn("hci: advertisement ended with error", "error", err)
	}
	t.cancel, t.done = nil, nil
}

// Close stops advertising and releases the device.
func (t *Transmitter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	return t.dev.Stop()
}
