package sensor

import (
	"context"
	"errors"
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestParseChannels(t *testing.T) {
	got, err := ParseChannels(" temperature, HUMIDITY ,pressure,co2,voc,iaq")
	if err != nil {
		t.Fatalf("ParseChannels() error = %v, want nil", err)
	}
	want := []Channel{Temperature, Humidity, Pressure, CO2Equivalent, VOCIndex, AirQualityIndex}
	if len(got) != len(want) {
		t.Fatalf("ParseChannels() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseChannels()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	for _, in := range []string{"", "temperature,temperature", "lux"} {
		if _, err := ParseChannels(in); err == nil {
			t.Errorf("ParseChannels(%q) error = nil, want non-nil", in)
		}
	}
}

func TestChannelAirQuality(t *testing.T) {
	for _, ch := range []Channel{AirQualityIndex, CO2Equivalent, VOCIndex} {
		if !ch.AirQuality() {
			t.Errorf("%v.AirQuality() = false, want true", ch)
		}
	}
	for _, ch := range []Channel{Temperature, Pressure, Humidity} {
		if ch.AirQuality() {
			t.Errorf("%v.AirQuality() = true, want false", ch)
		}
	}
}

func TestParseSample(t *testing.T) {
	tests := []struct {
		in   string
		want Sample
	}{
		{in: "22.5", want: Sample{22, 500000}},
		{in: "55", want: Sample{55, 0}},
		{in: "1013.25", want: Sample{1013, 250000}},
		{in: "-1.5", want: Sample{-1, -500000}},
		{in: "-0.25", want: Sample{0, -250000}},
		{in: ".75", want: Sample{0, 750000}},
		{in: "3.1415926535", want: Sample{3, 141592}},
		{in: "+7", want: Sample{7, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSample(tt.in)
			if err != nil {
				t.Fatalf("ParseSample(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseSample(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}

	for _, in := range []string{"", "abc", "1.x", ".", "--5", "-+5", "+-5", "1.+5", "1.-5", "1.2.3", "1.1234567.8"} {
		if _, err := ParseSample(in); err == nil {
			t.Errorf("ParseSample(%q) error = nil, want non-nil", in)
		}
	}
}

func TestSampleString(t *testing.T) {
	tests := []struct {
		in   Sample
		want string
	}{
		{Sample{22, 500000}, "22.500000"},
		{Sample{-1, -500000}, "-1.500000"},
		{Sample{0, -250000}, "-0.250000"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSamplePositive(t *testing.T) {
	tests := []struct {
		in   Sample
		want bool
	}{
		{Sample{0, 0}, false},
		{Sample{0, 1}, true},
		{Sample{1, 0}, true},
		{Sample{-1, 0}, false},
		{Sample{0, -1}, false},
	}
	for _, tt := range tests {
		if got := tt.in.Positive(); got != tt.want {
			t.Errorf("%+v.Positive() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPeriphConversions(t *testing.T) {
	if got, want := TemperatureSample(physic.ZeroCelsius+22500*physic.MilliKelvin), (Sample{22, 500000}); got != want {
		t.Errorf("TemperatureSample(22.5°C) = %+v, want %+v", got, want)
	}
	if got, want := TemperatureSample(physic.ZeroCelsius-1500*physic.MilliKelvin), (Sample{-1, -500000}); got != want {
		t.Errorf("TemperatureSample(-1.5°C) = %+v, want %+v", got, want)
	}
	if got, want := PressureSample(101325*physic.Pascal), (Sample{1013, 250000}); got != want {
		t.Errorf("PressureSample(101325Pa) = %+v, want %+v", got, want)
	}
	if got, want := HumiditySample(55*physic.PercentRH+5*physic.MilliRH), (Sample{55, 500000}); got != want {
		t.Errorf("HumiditySample(55.5%%) = %+v, want %+v", got, want)
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic(map[Channel]Sample{Temperature: {21, 0}})
	ctx := context.Background()

	if err := s.Fetch(ctx); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got, _ := s.Read(Temperature); got != (Sample{21, 0}) {
		t.Errorf("Read(Temperature) = %+v, want 21.0", got)
	}
	if _, err := s.Read(CO2Equivalent); !errors.Is(err, ErrUnsupportedChannel) {
		t.Errorf("Read(CO2Equivalent) error = %v, want ErrUnsupportedChannel", err)
	}

	boom := errors.New("bus")
	s.FailFetch(boom)
	if err := s.Fetch(ctx); !errors.Is(err, boom) {
		t.Errorf("Fetch() error = %v, want %v", err, boom)
	}
	if s.Fetches() != 2 {
		t.Errorf("Fetches() = %d, want 2", s.Fetches())
	}
}

func TestParseReadings(t *testing.T) {
	got, err := ParseReadings("temperature=22.5, co2=612")
	if err != nil {
		t.Fatalf("ParseReadings() error = %v", err)
	}
	if got[Temperature] != (Sample{22, 500000}) || got[CO2Equivalent] != (Sample{612, 0}) {
		t.Errorf("ParseReadings() = %+v", got)
	}
	if _, err := ParseReadings("temperature"); err == nil {
		t.Error("ParseReadings(no value) error = nil, want non-nil")
	}
}

func TestFromFixed(t *testing.T) {
	tests := []struct {
		v, perUnit int64
		want       Sample
	}{
		{22500, 1000, Sample{22, 500000}},
		{-1250, 1000, Sample{-1, -250000}},
		{101325250, 100000, Sample{1013, 252500}},
		{5512, 100, Sample{55, 120000}},
	}
	for _, tt := range tests {
		if got := FromFixed(tt.v, tt.perUnit); got != tt.want {
			t.Errorf("FromFixed(%d, %d) = %+v, want %+v", tt.v, tt.perUnit, got, tt.want)
		}
	}
}
