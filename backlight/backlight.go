// Package backlight abstracts hardware brightness controls behind a
// percentage interface. Device ranges, property formats, and platform
// quirks stay here; callers only see values in [0,100].
package backlight

import "errors"

// ErrUnsupported is returned when a control has no implementation on
// the current platform.
var ErrUnsupported = errors.New("backlight: not supported on this platform")

// ErrNoBacklight is returned when no usable brightness control is found.
var ErrNoBacklight = errors.New("backlight: no backlight control found")

// Control is a single brightness channel addressed in percent.
type Control interface {
	// Percent returns the current brightness in [0,100].
	Percent() (float64, error)
	// SetPercent writes a brightness percentage, clamped to the range
	// the underlying device supports.
	SetPercent(pct float64) error
	Close() error
}

func clampPercent(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
