package beacon

import "errors"

var (
	// ErrInit means the sensor or the transport is not usable; startup aborts.
	ErrInit = errors.New("beacon: init failure")
	// ErrSample means fetching or reading the sensor failed for one cycle.
	ErrSample = errors.New("beacon: sample failure")
	// ErrInvalidReading means a value is implausible, typically a gas sensor
	// that is still warming up. Handled like ErrSample.
	ErrInvalidReading = errors.New("beacon: invalid reading")
	// ErrTransmit means the transport rejected an advertisement update.
	ErrTransmit = errors.New("beacon: transmit failure")
)
