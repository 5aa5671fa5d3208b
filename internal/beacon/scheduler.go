// Package beacon runs the recurring sample, encode and advertise cycle.
package beacon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"cloudpico-bthome/internal/bthome"
	"cloudpico-bthome/internal/sensor"
)

const (
	DefaultInterval = 3 * time.Second
	// DefaultDwell outlasts the slow advertising interval range (1 s to 1.2 s).
	DefaultDwell = 1600 * time.Millisecond
)

// Transmitter makes a packet visible over the air. Push overwrites whatever
// was advertised before and reads the packet only during the call.
type Transmitter interface {
	Push(ctx context.Context, p *bthome.Packet) error
}

// State of the scheduler.
type State int32

const (
	Idle State = iota
	Scheduled
)

func (s State) String() string {
	if s == Scheduled {
		return "scheduled"
	}
	return "idle"
}

type Options struct {
	// Channels are read every cycle. Channels without a BTHome object
	// (air quality index) are only validated.
	Channels []sensor.Channel
	// Interval is the delay between the end of one cycle and the next.
	Interval time.Duration
	// Dwell is how long each packet stays live before the next one of a
	// rotating set replaces it.
	Dwell time.Duration
	// AdvInterval is the advertising interval; Dwell must not be shorter.
	AdvInterval time.Duration
	Logger      *slog.Logger
}

// Stats counts cycle outcomes since the scheduler was created.
type Stats struct {
	Cycles           uint64
	Transmitted      uint64
	Skipped          uint64
	TransmitFailures uint64
}

// Scheduler owns the packet set and drives it from a single goroutine.
type Scheduler struct {
	src  sensor.Source
	tx   Transmitter
	set  *bthome.PacketSet
	opts Options
	log  *slog.Logger

	state    atomic.Int32
	packetID uint8

	cycles      atomic.Uint64
	transmitted atomic.Uint64
	skipped     atomic.Uint64
	txFailures  atomic.Uint64

	readings map[sensor.Channel]sensor.Sample
}

// New checks the sensor is ready and the options are consistent. Failures
// wrap ErrInit.
func New(src sensor.Source, tx Transmitter, set *bthome.PacketSet, opts Options) (*Scheduler, error) {
	if src == nil || tx == nil || set == nil || set.Len() == 0 {
		return nil, fmt.Errorf("%w: sensor, transmitter and packets are required", ErrInit)
	}
	if err := src.Ready(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Dwell <= 0 {
		opts.Dwell = DefaultDwell
	}
	if set.Rotating && opts.Dwell < opts.AdvInterval {
		return nil, fmt.Errorf("%w: dwell %v shorter than advertising interval %v", ErrInit, opts.Dwell, opts.AdvInterval)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.Channels) == 0 {
		for _, p := range set.Packets {
			opts.Channels = append(opts.Channels, p.Channels()...)
		}
	}
	for _, p := range set.Packets {
		for _, ch := range p.Channels() {
			if !slices.Contains(opts.Channels, ch) {
				return nil, fmt.Errorf("%w: packet %s carries %s which is not sampled", ErrInit, p.Name(), ch)
			}
		}
	}

	return &Scheduler{
		src:      src,
		tx:       tx,
		set:      set,
		opts:     opts,
		log:      opts.Logger,
		readings: make(map[sensor.Channel]sensor.Sample, len(opts.Channels)),
	}, nil
}

// State returns whether a tick is currently armed.
func (s *Scheduler) State() State { return State(s.state.Load()) }

func (s *Scheduler) Stats() Stats {
	return Stats{
		Cycles:           s.cycles.Load(),
		Transmitted:      s.transmitted.Load(),
		Skipped:          s.skipped.Load(),
		TransmitFailures: s.txFailures.Load(),
	}
}

// Run arms an immediate tick and then keeps re-arming after every cycle,
// whatever its outcome, until ctx is done. Shutdown is a clean nil return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("beacon: scheduler started",
		"packets", s.set.Len(),
		"rotating", s.set.Rotating,
		"interval", s.opts.Interval,
		"dwell", s.opts.Dwell,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()
	s.state.Store(int32(Scheduled))

	for {
		select {
		case <-ctx.Done():
			s.state.Store(int32(Idle))
			s.log.Info("beacon: scheduler stopped")
			return nil
		case <-timer.C:
		}
		s.state.Store(int32(Idle))

		if err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			level := slog.LevelWarn
			if errors.Is(err, ErrInvalidReading) {
				level = slog.LevelInfo
			}
			s.log.Log(ctx, level, "beacon: cycle failed", "error", err)
		}

		timer.Reset(s.opts.Interval)
		s.state.Store(int32(Scheduled))
	}
}

// RunCycle samples the sensor, encodes every packet and pushes them in
// order. Sample failures and invalid readings skip the transmission;
// transmit failures are collected and the remaining packets still go out.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	s.cycles.Add(1)

	if err := s.sample(ctx); err != nil {
		s.skipped.Add(1)
		return err
	}
	if err := s.validate(); err != nil {
		s.skipped.Add(1)
		return err
	}
	if err := s.encode(); err != nil {
		s.skipped.Add(1)
		return err
	}

	var errs []error
	for i, p := range s.set.Packets {
		if i > 0 {
			if err := sleep(ctx, s.opts.Dwell); err != nil {
				return err
			}
		}
		if err := s.tx.Push(ctx, p); err != nil {
			s.txFailures.Add(1)
			s.log.Warn("beacon: advertisement update failed", "packet", p.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%w: packet %s: %w", ErrTransmit, p.Name(), err))
			continue
		}
		s.log.Debug("beacon: advertisement updated", "packet", p.Name(), "len", p.Len())
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.transmitted.Add(1)
	return nil
}

func (s *Scheduler) sample(ctx context.Context) error {
	if err := s.src.Fetch(ctx); err != nil {
		return fmt.Errorf("%w: fetch: %w", ErrSample, err)
	}
	attrs := make([]any, 0, 2*len(s.opts.Channels))
	for _, ch := range s.opts.Channels {
		v, err := s.src.Read(ch)
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", ErrSample, ch, err)
		}
		s.readings[ch] = v
		attrs = append(attrs, ch.String(), v.String())
	}
	s.log.Debug("beacon: sample", attrs...)
	return nil
}

func (s *Scheduler) validate() error {
	for _, ch := range s.opts.Channels {
		if !ch.AirQuality() {
			continue
		}
		if v := s.readings[ch]; !v.Positive() {
			return fmt.Errorf("%w: %s = %s (sensor warming up)", ErrInvalidReading, ch, v)
		}
	}
	return nil
}

// encode writes every packet completely before anything is pushed.
func (s *Scheduler) encode() error {
	for _, p := range s.set.Packets {
		for _, f := range p.Fields() {
			clamped, err := p.SetSample(f.Channel, s.readings[f.Channel])
			if err != nil {
				return fmt.Errorf("encode %s: %w", p.Name(), err)
			}
			if clamped {
				s.log.Warn("beacon: value saturated", "channel", f.Channel.String(), "value", s.readings[f.Channel].String())
			}
		}
		// Receivers drop a frame that repeats the previous packet id.
		if p.HasPacketID() {
			p.SetPacketID(s.packetID)
			s.packetID++
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
