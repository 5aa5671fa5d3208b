package bthome

import (
	"errors"
	"fmt"
	"slices"

	"cloudpico-bthome/internal/sensor"
)

const (
	// LegacyMaxPayload is the advertising data limit of legacy advertising.
	LegacyMaxPayload = 31
	// ExtendedMaxPayload is a conservative single-PDU limit for extended
	// advertising; controllers may report more.
	ExtendedMaxPayload = 251

	flagsADLen       = 3 // len, type, flags
	adHeaderLen      = 2 // len, type
	serviceDataADLen = adHeaderLen
)

var ErrPayloadTooLarge = errors.New("service data exceeds advertising payload budget")

// Groups is the split used when all channels do not fit one advertisement.
// Objects inside each packet are ordered by object id as BTHome receivers
// expect.
var Groups = []struct {
	Name     string
	Channels []sensor.Channel
}{
	{Name: "temp_hum", Channels: []sensor.Channel{sensor.Temperature, sensor.Humidity}},
	{Name: "press", Channels: []sensor.Channel{sensor.Pressure}},
	{Name: "air", Channels: []sensor.Channel{sensor.AirQualityIndex, sensor.CO2Equivalent, sensor.VOCIndex}},
}

// ServiceDataBudget returns how many bytes of service data (UUID included)
// fit into an advertisement of maxPayload bytes that also carries the flags
// and, when localName is set, the complete local name.
func ServiceDataBudget(maxPayload int, localName string) int {
	n := maxPayload - flagsADLen - serviceDataADLen
	if localName != "" {
		n -= adHeaderLen + len(localName)
	}
	return n
}

// PacketSet is the fixed list of packets pushed each cycle.
type PacketSet struct {
	Packets []*Packet
	// Rotating is set when more than one packet has to share the
	// advertisement in turn.
	Rotating bool
	Budget   int
}

// Len returns the number of packets.
func (s *PacketSet) Len() int { return len(s.Packets) }

// Packet returns the packet carrying ch, or nil.
func (s *PacketSet) Packet(ch sensor.Channel) *Packet {
	for _, p := range s.Packets {
		if p.Has(ch) {
			return p
		}
	}
	return nil
}

// BuildPacketSet decides once how channels are grouped. If every encodable
// channel fits one packet within budget, a single combined packet is used.
// Otherwise the channels are split along Groups and rotated. A packet that
// still does not fit is an error; nothing is ever truncated.
func BuildPacketSet(channels []sensor.Channel, budget int, withPacketID bool) (*PacketSet, error) {
	encodable := encodableChannels(channels)
	if len(encodable) == 0 {
		return nil, errors.New("no channel can be encoded as a BTHome object")
	}

	all, err := NewPacket("all", encodable, withPacketID)
	if err != nil {
		return nil, err
	}
	if all.Len() <= budget {
		return &PacketSet{Packets: []*Packet{all}, Budget: budget}, nil
	}

	enabled := make(map[sensor.Channel]bool, len(encodable))
	for _, ch := range encodable {
		enabled[ch] = true
	}

	set := &PacketSet{Rotating: true, Budget: budget}
	for _, g := range Groups {
		var chs []sensor.Channel
		for _, ch := range g.Channels {
			if enabled[ch] {
				chs = append(chs, ch)
			}
		}
		if len(chs) == 0 {
			continue
		}
		p, err := NewPacket(g.Name, encodableChannels(chs), withPacketID)
		if err != nil {
			return nil, err
		}
		if p.Len() > budget {
			return nil, fmt.Errorf("packet %s is %d bytes, budget %d: %w", g.Name, p.Len(), budget, ErrPayloadTooLarge)
		}
		set.Packets = append(set.Packets, p)
	}
	return set, nil
}

// encodableChannels drops channels without a BTHome object and sorts the
// rest by object id.
func encodableChannels(channels []sensor.Channel) []sensor.Channel {
	var out []sensor.Channel
	for _, ch := range channels {
		if _, ok := ObjectFor(ch); ok {
			out = append(out, ch)
		}
	}
	slices.SortStableFunc(out, func(a, b sensor.Channel) int {
		ia, _ := ObjectFor(a)
		ib, _ := ObjectFor(b)
		return int(ia) - int(ib)
	})
	return out
}
