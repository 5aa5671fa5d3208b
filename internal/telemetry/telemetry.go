// Package telemetry defines the JSON document published for every BTHome
// frame, whether it was sent by this beacon or picked up by the scanner.
package telemetry

import (
	"time"

	"cloudpico-bthome/internal/bthome"
	"cloudpico-bthome/internal/utils"
)

// Telemetry represents one decoded BTHome frame of a station.
type Telemetry struct {
	StationID   string    `json:"station_id"`
	Timestamp   time.Time `json:"timestamp"`
	Address     string    `json:"address,omitempty"`
	RSSI        *int16    `json:"rssi,omitempty"`
	Temperature *float64  `json:"temperature_c,omitempty"`
	Humidity    *float64  `json:"humidity_pct,omitempty"`
	Pressure    *float64  `json:"pressure_hpa,omitempty"`
	Battery     *float64  `json:"battery_pct,omitempty"`
	CO2         *float64  `json:"co2_ppm,omitempty"`
	VOC         *float64  `json:"voc_ppb,omitempty"`
	Sequence    *int      `json:"sequence,omitempty"`
	Frame       string    `json:"frame,omitempty"`
}

// FromFrame fills a Telemetry from a decoded frame. payload is the raw
// service data kept as hex for debugging; it may be nil.
func FromFrame(stationID string, fr bthome.Frame, payload []byte, at time.Time) Telemetry {
	t := Telemetry{
		StationID: stationID,
		Timestamp: at,
	}
	if len(payload) > 0 {
		t.Frame = utils.BytesToHex(payload)
	}
	if fr.PacketID != nil {
		seq := int(*fr.PacketID)
		t.Sequence = &seq
	}
	for _, m := range fr.Measurements {
		v := m.Value()
		switch m.ID {
		case bthome.ObjectTemperature:
			t.Temperature = &v
		case bthome.ObjectHumidity:
			t.Humidity = &v
		case bthome.ObjectPressure:
			t.Pressure = &v
		case bthome.ObjectBattery:
			t.Battery = &v
		case bthome.ObjectCO2:
			t.CO2 = &v
		case bthome.ObjectVOC:
			t.VOC = &v
		}
	}
	return t
}

// StationHealth is the retained last-seen state of a station.
type StationHealth struct {
	StationID string    `json:"station_id"`
	LastSeen  time.Time `json:"last_seen"`
	Healthy   bool      `json:"healthy"`
}
