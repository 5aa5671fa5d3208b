package scan

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"cloudpico-bthome/internal/bthome"
	"cloudpico-bthome/internal/telemetry"
	"cloudpico-bthome/internal/utils"
)

// dedupTTL is how long the last frame of a silent device is remembered.
const dedupTTL = 10 * time.Minute

// Publisher receives decoded frames. *mqtt.Client implements it.
type Publisher interface {
	PublishTelemetry(t telemetry.Telemetry) error
	PublishStationHealth(h telemetry.StationHealth) error
}

// Handler decodes observations, drops repeats and publishes the rest.
type Handler struct {
	pub    Publisher
	logger *slog.Logger

	dedupMu sync.Mutex
	last    *cache.Cache
}

// NewHandler creates a handler; pub may be nil to only log frames.
func NewHandler(pub Publisher, logger *slog.Logger) *Handler {
	return newHandler(pub, logger, dedupTTL)
}

func newHandler(pub Publisher, logger *slog.Logger, ttl time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pub:    pub,
		logger: logger,
		last:   cache.New(ttl, 2*ttl),
	}
}

// StationID names a station after its address, "a4c1380a1b2c" style.
func StationID(addr string) string {
	return strings.ToLower(strings.ReplaceAll(addr, ":", ""))
}

// HandleObservation is the Listener callback.
func (h *Handler) HandleObservation(o Observation) {
	fr, err := bthome.Decode(o.Data)
	switch {
	case errors.Is(err, bthome.ErrUnknownObject) && len(fr.Measurements) > 0:
		h.logger.Debug("ble: frame has unknown objects, keeping prefix", "addr", o.Address, "error", err)
	case err != nil:
		h.logger.Debug("ble: ignore undecodable frame", "addr", o.Address, "data", utils.BytesToHex(o.Data), "error", err)
		return
	}

	if h.duplicate(o.Address, fr, o.Data) {
		return
	}

	t := telemetry.FromFrame(StationID(o.Address), fr, o.Data, o.SeenAt)
	t.Address = o.Address
	rssi := o.RSSI
	t.RSSI = &rssi

	h.logger.Info("ble: bthome frame",
		"addr", o.Address,
		"rssi", o.RSSI,
		"objects", len(fr.Measurements),
		"data", utils.BytesToHex(o.Data),
	)

	if h.pub == nil {
		return
	}
	if err := h.pub.PublishTelemetry(t); err != nil {
		h.logger.Warn("ble: failed to publish telemetry", "addr", o.Address, "error", err)
		return
	}
	if err := h.pub.PublishStationHealth(telemetry.StationHealth{
		StationID: t.StationID,
		LastSeen:  o.SeenAt,
		Healthy:   true,
	}); err != nil {
		h.logger.Warn("ble: failed to publish health", "addr", o.Address, "error", err)
	}
}

// duplicate reports whether the frame repeats the previous one from addr.
// Frames with a packet id are compared by id, the rest by content, since the
// scanner reports every advertising event.
func (h *Handler) duplicate(addr string, fr bthome.Frame, data []byte) bool {
	key := utils.BytesToHex(data)
	if fr.PacketID != nil {
		key = "pid:" + utils.BytesToHex([]byte{*fr.PacketID})
	}

	h.dedupMu.Lock()
	defer h.dedupMu.Unlock()
	prev, ok := h.last.Get(addr)
	h.last.Set(addr, key, cache.DefaultExpiration)
	return ok && prev.(string) == key
}
