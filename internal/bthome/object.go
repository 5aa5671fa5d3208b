// Package bthome encodes sensor samples into BTHome v2 service data.
//
// A frame is laid out as
//
//	[UUID16 LE][device info][object id][value LE]...
//
// with the device info byte 0x40 for an unencrypted, version 2 frame.
// See https://bthome.io/format/.
package bthome

import (
	"fmt"

	"cloudpico-bthome/internal/sensor"
)

const (
	// ServiceUUID is the 16-bit UUID BTHome registers for its service data.
	ServiceUUID uint16 = 0xFCD2

	// DeviceInfoV2 marks an unencrypted, regularly broadcast, version 2 frame.
	DeviceInfoV2 byte = 0x40

	deviceInfoEncrypted byte = 0x01
	deviceInfoTrigger   byte = 0x04
	deviceInfoVersion   byte = 0xE0

	// headerLen is UUID + device info.
	headerLen = 3
)

// ObjectID is the type byte preceding each value in a frame.
type ObjectID byte

const (
	ObjectPacketID    ObjectID = 0x00
	ObjectBattery     ObjectID = 0x01
	ObjectTemperature ObjectID = 0x02
	ObjectHumidity    ObjectID = 0x03
	ObjectPressure    ObjectID = 0x04
	ObjectCO2         ObjectID = 0x12
	ObjectVOC         ObjectID = 0x13
)

// Format is the wire representation of an object's value.
type Format struct {
	Size       int   // value bytes, little-endian
	Signed     bool  // two's complement
	Resolution int64 // scaled = value * Resolution
}

// Min returns the smallest value the format can carry.
func (f Format) Min() int64 {
	if !f.Signed {
		return 0
	}
	return -(1 << (8*f.Size - 1))
}

// Max returns the largest value the format can carry.
func (f Format) Max() int64 {
	if f.Signed {
		return 1<<(8*f.Size-1) - 1
	}
	return 1<<(8*f.Size) - 1
}

var formats = map[ObjectID]Format{
	ObjectPacketID:    {Size: 1, Resolution: 1},
	ObjectBattery:     {Size: 1, Resolution: 1},
	ObjectTemperature: {Size: 2, Signed: true, Resolution: 100},
	ObjectHumidity:    {Size: 2, Resolution: 100},
	ObjectPressure:    {Size: 3, Resolution: 100},
	ObjectCO2:         {Size: 2, Resolution: 1},
	ObjectVOC:         {Size: 2, Resolution: 1},
}

var objectNames = map[ObjectID]string{
	ObjectPacketID:    "packet_id",
	ObjectBattery:     "battery",
	ObjectTemperature: "temperature",
	ObjectHumidity:    "humidity",
	ObjectPressure:    "pressure",
	ObjectCO2:         "co2",
	ObjectVOC:         "voc",
}

// Format returns the wire format of a known object.
func (id ObjectID) Format() (Format, bool) {
	f, ok := formats[id]
	return f, ok
}

func (id ObjectID) String() string {
	if n, ok := objectNames[id]; ok {
		return n
	}
	return fmt.Sprintf("object(0x%02X)", byte(id))
}

// ObjectFor maps a sensor channel to its BTHome object. The air quality
// index has no BTHome object and reports false.
func ObjectFor(ch sensor.Channel) (ObjectID, bool) {
	switch ch {
	case sensor.Temperature:
		return ObjectTemperature, true
	case sensor.Humidity:
		return ObjectHumidity, true
	case sensor.Pressure:
		return ObjectPressure, true
	case sensor.CO2Equivalent:
		return ObjectCO2, true
	case sensor.VOCIndex:
		return ObjectVOC, true
	default:
		return 0, false
	}
}
