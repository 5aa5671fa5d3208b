package bthome

import (
	"errors"
	"fmt"
)

var (
	ErrShortFrame    = errors.New("bthome: frame too short")
	ErrVersion       = errors.New("bthome: unsupported version")
	ErrEncrypted     = errors.New("bthome: encrypted frames are not supported")
	ErrUnknownObject = errors.New("bthome: unknown object id")
)

// Measurement is one decoded object.
type Measurement struct {
	ID  ObjectID
	Raw int64
}

// Value returns the measurement in its physical unit.
func (m Measurement) Value() float64 {
	f, ok := m.ID.Format()
	if !ok || f.Resolution == 1 {
		return float64(m.Raw)
	}
	return float64(m.Raw) / float64(f.Resolution)
}

// Frame is a decoded service data payload.
type Frame struct {
	DeviceInfo   byte
	Trigger      bool
	PacketID     *uint8
	Measurements []Measurement
}

// Lookup returns the first measurement with the given id.
func (f Frame) Lookup(id ObjectID) (Measurement, bool) {
	for _, m := range f.Measurements {
		if m.ID == id {
			return m, true
		}
	}
	return Measurement{}, false
}

// Decode parses a service data payload that starts at the device info byte,
// i.e. without the UUID. Objects are not length prefixed, so decoding stops
// with ErrUnknownObject at the first id it has no format for; the objects
// decoded up to that point are returned alongside the error.
func Decode(payload []byte) (Frame, error) {
	if len(payload) < 1 {
		return Frame{}, ErrShortFrame
	}
	info := payload[0]
	if info&deviceInfoVersion != DeviceInfoV2&deviceInfoVersion {
		return Frame{}, fmt.Errorf("%w: device info 0x%02X", ErrVersion, info)
	}
	if info&deviceInfoEncrypted != 0 {
		return Frame{}, ErrEncrypted
	}

	fr := Frame{DeviceInfo: info, Trigger: info&deviceInfoTrigger != 0}
	off := 1
	for off < len(payload) {
		id := ObjectID(payload[off])
		f, ok := id.Format()
		if !ok {
			return fr, fmt.Errorf("%w 0x%02X at offset %d", ErrUnknownObject, byte(id), off)
		}
		v, err := ReadValue(payload, off+1, f)
		if err != nil {
			return fr, fmt.Errorf("%w: %v", ErrShortFrame, err)
		}
		if id == ObjectPacketID {
			pid := uint8(v)
			fr.PacketID = &pid
		} else {
			fr.Measurements = append(fr.Measurements, Measurement{ID: id, Raw: v})
		}
		off += 1 + f.Size
	}
	return fr, nil
}

// DecodeServiceData is Decode for a buffer that still carries the UUID.
func DecodeServiceData(b []byte) (Frame, error) {
	if len(b) < headerLen {
		return Frame{}, ErrShortFrame
	}
	if uuid := uint16(b[0]) | uint16(b[1])<<8; uuid != ServiceUUID {
		return Frame{}, fmt.Errorf("bthome: service uuid 0x%04X", uuid)
	}
	return Decode(b[2:])
}
