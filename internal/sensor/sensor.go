// Package sensor defines the sampled environmental channels and the sources
// that produce them.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FractionScale is the denominator of Sample.Fraction.
const FractionScale = 1_000_000

var (
	ErrNotReady           = errors.New("sensor not ready")
	ErrUnsupportedChannel = errors.New("channel not supported by sensor")
)

// Channel identifies one measured quantity.
type Channel int

const (
	Temperature     Channel = iota // °C
	Pressure                       // hPa
	Humidity                       // %RH
	AirQualityIndex                // unitless
	CO2Equivalent                  // ppm
	VOCIndex                       // ppb
)

var channelNames = [...]string{
	Temperature:     "temperature",
	Pressure:        "pressure",
	Humidity:        "humidity",
	AirQualityIndex: "iaq",
	CO2Equivalent:   "co2",
	VOCIndex:        "voc",
}

func (c Channel) String() string {
	if c < 0 || int(c) >= len(channelNames) {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// AirQuality reports whether the channel comes from the gas sensor and is
// only meaningful once the sensor has warmed up.
func (c Channel) AirQuality() bool {
	return c == AirQualityIndex || c == CO2Equivalent || c == VOCIndex
}

// ParseChannel accepts the names returned by Channel.String.
func ParseChannel(s string) (Channel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range channelNames {
		if n == name {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", s)
}

// ParseChannels parses a comma separated channel list, rejecting duplicates.
func ParseChannels(s string) ([]Channel, error) {
	var out []Channel
	seen := make(map[Channel]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		ch, err := ParseChannel(part)
		if err != nil {
			return nil, err
		}
		if seen[ch] {
			return nil, fmt.Errorf("duplicate channel %q", ch)
		}
		seen[ch] = true
		out = append(out, ch)
	}
	if len(out) == 0 {
		return nil, errors.New("no channels")
	}
	return out, nil
}

// Sample is a reading split into an integer part and a fractional part in
// millionths. Both parts carry the sign of the value, so -1.5 is {-1, -500000}.
type Sample struct {
	Integer  int32
	Fraction int32
}

// Positive reports whether the sample is strictly greater than zero.
func (s Sample) Positive() bool {
	return s.Integer > 0 || (s.Integer == 0 && s.Fraction > 0)
}

func (s Sample) Float64() float64 {
	return float64(s.Integer) + float64(s.Fraction)/FractionScale
}

func (s Sample) String() string {
	frac := s.Fraction
	if frac < 0 {
		frac = -frac
	}
	sign := ""
	if s.Integer == 0 && s.Fraction < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%06d", sign, s.Integer, frac)
}

// ParseSample parses a decimal string such as "-12.25" without going
// through floating point. Digits past the sixth decimal are dropped.
func ParseSample(s string) (Sample, error) {
	str := strings.TrimSpace(s)
	neg := strings.HasPrefix(str, "-")
	if neg || strings.HasPrefix(str, "+") {
		str = str[1:]
	}
	// one sign at most, then digits and a single point
	if strings.Count(str, ".") > 1 || strings.ContainsFunc(str, func(r rune) bool {
		return r != '.' && (r < '0' || r > '9')
	}) {
		return Sample{}, fmt.Errorf("invalid sample %q", s)
	}

	intPart, fracPart, _ := strings.Cut(str, ".")
	if intPart == "" && fracPart == "" {
		return Sample{}, fmt.Errorf("invalid sample %q", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	i, err := strconv.ParseInt(intPart, 10, 32)
	if err != nil {
		return Sample{}, fmt.Errorf("invalid sample %q: %w", s, err)
	}

	var f int64
	if fracPart != "" {
		if len(fracPart) > 6 {
			fracPart = fracPart[:6]
		}
		fracPart += strings.Repeat("0", 6-len(fracPart))
		f, err = strconv.ParseInt(fracPart, 10, 32)
		if err != nil || f < 0 {
			return Sample{}, fmt.Errorf("invalid sample %q", s)
		}
	}

	if neg {
		i, f = -i, -f
	}
	return Sample{Integer: int32(i), Fraction: int32(f)}, nil
}

// FromFixed converts a fixed point value with perUnit counts per whole unit,
// e.g. FromFixed(22500, 1000) for 22500 m°C.
func FromFixed(v, perUnit int64) Sample {
	return Sample{
		Integer:  int32(v / perUnit),
		Fraction: int32(v % perUnit * FractionScale / perUnit),
	}
}

// Source is a sensor that is sampled once per cycle and then read per channel.
type Source interface {
	// Ready returns ErrNotReady (possibly wrapped) when the device can not be used.
	Ready() error
	// Fetch triggers a new measurement. It may block on the sensor bus.
	Fetch(ctx context.Context) error
	// Read returns the channel value from the last successful Fetch.
	Read(ch Channel) (Sample, error)
}
