//go:build !linux && !darwin

package ambient

// Open reports that no light sensor backend exists on this platform.
func Open() (Sensor, error) { return nil, ErrUnsupported }
