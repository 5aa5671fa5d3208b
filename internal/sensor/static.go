package sensor

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Static serves fixed readings. It stands in for hardware on benches
// without a sensor and in tests.
type Static struct {
	mu       sync.Mutex
	readings map[Channel]Sample
	fetchErr error
	fetches  int
}

func NewStatic(readings map[Channel]Sample) *Static {
	r := make(map[Channel]Sample, len(readings))
	for ch, v := range readings {
		r[ch] = v
	}
	return &Static{readings: r}
}

// Set replaces the value returned for ch.
func (s *Static) Set(ch Channel, v Sample) {
	s.mu.Lock()
	s.readings[ch] = v
	s.mu.Unlock()
}

// FailFetch makes subsequent Fetch calls return err; nil clears it.
func (s *Static) FailFetch(err error) {
	s.mu.Lock()
	s.fetchErr = err
	s.mu.Unlock()
}

// Fetches returns the number of Fetch calls so far.
func (s *Static) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *Static) Ready() error { return nil }

func (s *Static) Fetch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return s.fetchErr
}

func (s *Static) Read(ch Channel) (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.readings[ch]
	if !ok {
		return Sample{}, fmt.Errorf("%s: %w", ch, ErrUnsupportedChannel)
	}
	return v, nil
}

// ParseReadings parses "temperature=22.5,humidity=55" style lists.
func ParseReadings(s string) (map[Channel]Sample, error) {
	out := make(map[Channel]Sample)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid reading %q (want channel=value)", part)
		}
		ch, err := ParseChannel(name)
		if err != nil {
			return nil, err
		}
		v, err := ParseSample(value)
		if err != nil {
			return nil, err
		}
		out[ch] = v
	}
	return out, nil
}
