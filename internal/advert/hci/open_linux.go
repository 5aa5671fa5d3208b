//go:build linux && !baremetal

package hci

import (
	"fmt"
	"log/slog"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// Open takes over hciN. The process needs CAP_NET_ADMIN.
func Open(id int, logger *slog.Logger) (*Transmitter, error) {
	dev, err := linux.NewDevice(ble.OptDeviceID(id))
	if err != nil {
		return nil, fmt.Errorf("hci%d: %w", id, err)
	}
	return newTransmitter(dev, logger), nil
}
