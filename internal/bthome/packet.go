package bthome

import (
	"encoding/binary"
	"errors"
	"fmt"

	"cloudpico-bthome/internal/sensor"
)

var ErrNoObject = errors.New("channel has no BTHome object")

// Field is one object inside a packet. Offset points at the first value
// byte; the object id sits at Offset-1.
type Field struct {
	Channel sensor.Channel
	ID      ObjectID
	Format  Format
	Offset  int
}

// Packet is a single service data buffer. Its layout is fixed when it is
// built; afterwards only value bytes change.
type Packet struct {
	name     string
	buf      []byte
	fields   []Field
	packetID int // offset of the packet id value, -1 without one
}

// NewPacket lays out channels in order behind the UUID and device info byte.
// With withPacketID a packet id object is placed first.
func NewPacket(name string, channels []sensor.Channel, withPacketID bool) (*Packet, error) {
	size := headerLen
	if withPacketID {
		f, _ := ObjectPacketID.Format()
		size += 1 + f.Size
	}
	for _, ch := range channels {
		id, ok := ObjectFor(ch)
		if !ok {
			return nil, fmt.Errorf("%s: %w", ch, ErrNoObject)
		}
		f, _ := id.Format()
		size += 1 + f.Size
	}

	p := &Packet{
		name:     name,
		buf:      make([]byte, size),
		fields:   make([]Field, 0, len(channels)),
		packetID: -1,
	}
	binary.LittleEndian.PutUint16(p.buf[0:2], ServiceUUID)
	p.buf[2] = DeviceInfoV2

	off := headerLen
	if withPacketID {
		f, _ := ObjectPacketID.Format()
		p.buf[off] = byte(ObjectPacketID)
		p.packetID = off + 1
		off += 1 + f.Size
	}
	for _, ch := range channels {
		id, _ := ObjectFor(ch)
		f, _ := id.Format()
		p.buf[off] = byte(id)
		p.fields = append(p.fields, Field{Channel: ch, ID: id, Format: f, Offset: off + 1})
		off += 1 + f.Size
	}
	return p, nil
}

func (p *Packet) Name() string { return p.name }

// Len is the length of the full buffer including the UUID.
func (p *Packet) Len() int { return len(p.buf) }

// Bytes returns the buffer including the UUID. The slice aliases the packet
// and changes on the next Set.
func (p *Packet) Bytes() []byte { return p.buf }

// Payload returns the bytes following the UUID, which is what BLE stacks
// take as the data of a 16-bit service data element.
func (p *Packet) Payload() []byte { return p.buf[2:] }

func (p *Packet) Fields() []Field { return p.fields }

// Channels returns the channels carried by the packet, in layout order.
func (p *Packet) Channels() []sensor.Channel {
	out := make([]sensor.Channel, len(p.fields))
	for i, f := range p.fields {
		out[i] = f.Channel
	}
	return out
}

// Has reports whether the packet carries ch.
func (p *Packet) Has(ch sensor.Channel) bool {
	for _, f := range p.fields {
		if f.Channel == ch {
			return true
		}
	}
	return false
}

// HasPacketID reports whether the layout starts with a packet id object.
func (p *Packet) HasPacketID() bool { return p.packetID >= 0 }

// Set writes an already scaled value for ch. clamped reports saturation.
func (p *Packet) Set(ch sensor.Channel, v int64) (clamped bool, err error) {
	for _, f := range p.fields {
		if f.Channel == ch {
			return PutValue(p.buf, f.Offset, f.Format, v)
		}
	}
	return false, fmt.Errorf("packet %s does not carry %s", p.name, ch)
}

// SetSample scales s at the channel's resolution and writes it.
func (p *Packet) SetSample(ch sensor.Channel, s sensor.Sample) (clamped bool, err error) {
	for _, f := range p.fields {
		if f.Channel == ch {
			return PutValue(p.buf, f.Offset, f.Format, Scale(s, f.Format.Resolution))
		}
	}
	return false, fmt.Errorf("packet %s does not carry %s", p.name, ch)
}

// Value reads back the encoded value of ch.
func (p *Packet) Value(ch sensor.Channel) (int64, error) {
	for _, f := range p.fields {
		if f.Channel == ch {
			return ReadValue(p.buf, f.Offset, f.Format)
		}
	}
	return 0, fmt.Errorf("packet %s does not carry %s", p.name, ch)
}

// SetPacketID writes the packet id; it is a no-op without a packet id object.
func (p *Packet) SetPacketID(id uint8) {
	if p.packetID >= 0 {
		p.buf[p.packetID] = id
	}
}
