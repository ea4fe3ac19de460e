// Package ambient reads illuminance from platform light sensors. The
// sensor is polled by the caller; nothing here pushes readings.
package ambient

import "errors"

// ErrUnsupported is returned when the platform has no sensor support.
var ErrUnsupported = errors.New("ambient: no light sensor support on this platform")

// ErrNoSensor is returned when sensor support exists but no device is
// present.
var ErrNoSensor = errors.New("ambient: no light sensor found")

// Sensor reads the current illuminance.
type Sensor interface {
	// Lux returns the current ambient illuminance in lux.
	Lux() (float64, error)
	Close() error
}
