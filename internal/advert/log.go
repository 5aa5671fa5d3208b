package advert

import (
	"context"
	"log/slog"

	"cloudpico-bthome/internal/bthome"
	"cloudpico-bthome/internal/utils"
)

// Log writes each packet to the logger instead of a radio.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Push(ctx context.Context, p *bthome.Packet) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "adv: packet",
		"packet", p.Name(),
		"uuid", utils.Hex4(bthome.ServiceUUID),
		"data", utils.BytesToHex(p.Bytes()),
	)
	return nil
}
