package bthome

import (
	"errors"
	"math"
	"testing"
)

func TestDecode(t *testing.T) {
	// 25.00 °C, 50.55 %
	fr, err := Decode([]byte{0x40, 0x02, 0xC4, 0x09, 0x03, 0xBF, 0x13})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if fr.PacketID != nil || fr.Trigger {
		t.Errorf("PacketID = %v, Trigger = %v; want nil, false", fr.PacketID, fr.Trigger)
	}
	temp, ok := fr.Lookup(ObjectTemperature)
	if !ok || math.Abs(temp.Value()-25.00) > 1e-9 {
		t.Errorf("temperature = %v, want 25.00", temp.Value())
	}
	hum, ok := fr.Lookup(ObjectHumidity)
	if !ok || math.Abs(hum.Value()-50.55) > 1e-9 {
		t.Errorf("humidity = %v, want 50.55", hum.Value())
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{name: "empty", in: nil, want: ErrShortFrame},
		{name: "version 1", in: []byte{0x20, 0x02, 0x00, 0x00}, want: ErrVersion},
		{name: "encrypted", in: []byte{0x41, 0x02, 0x00, 0x00}, want: ErrEncrypted},
		{name: "truncated value", in: []byte{0x40, 0x04, 0x01, 0x02}, want: ErrShortFrame},
		{name: "unknown object", in: []byte{0x40, 0x02, 0x00, 0x00, 0x7F, 0x01}, want: ErrUnknownObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeUnknownObjectKeepsPrefix(t *testing.T) {
	fr, err := Decode([]byte{0x40, 0x02, 0xCA, 0x08, 0x7F, 0x01})
	if !errors.Is(err, ErrUnknownObject) {
		t.Fatalf("Decode() error = %v, want ErrUnknownObject", err)
	}
	if m, ok := fr.Lookup(ObjectTemperature); !ok || m.Raw != 2250 {
		t.Errorf("temperature = %+v, want raw 2250", m)
	}
}

func TestDecodeServiceDataWrongUUID(t *testing.T) {
	if _, err := DecodeServiceData([]byte{0x0F, 0x18, 0x40}); err == nil {
		t.Fatal("DecodeServiceData(battery uuid) error = nil, want non-nil")
	}
}
