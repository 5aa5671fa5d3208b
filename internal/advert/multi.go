package advert

import (
	"context"
	"errors"

	"cloudpico-bthome/internal/beacon"
	"cloudpico-bthome/internal/bthome"
)

// Multi pushes every packet to all transmitters in order. Every transmitter
// is tried; the failures are joined.
type Multi []beacon.Transmitter

func (m Multi) Push(ctx context.Context, p *bthome.Packet) error {
	var errs []error
	for _, tx := range m {
		if err := tx.Push(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
