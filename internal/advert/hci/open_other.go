//go:build !linux || baremetal

package hci

import (
	"errors"
	"log/slog"
)

func Open(id int, logger *slog.Logger) (*Transmitter, error) {
	return nil, errors.New("hci: raw advertising is only available on linux")
}
