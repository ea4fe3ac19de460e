package engine

import (
	"errors"
	"fmt"
	"time"
)

// Defaults matching the daemon's historical behavior.
const (
	DefaultDimTimeout    = 120 * time.Second
	DefaultDimPercent    = 10
	DefaultDimSteps      = 20
	DefaultBrightenSteps = 5
)

// Config is fixed at startup; the engine never mutates it.
type Config struct {
	// DimTimeout is how long the user must be idle before dimming.
	DimTimeout time.Duration
	// DimPercent is the screen brightness target when dimmed.
	DimPercent int
	// DimSteps and BrightenSteps are the number of discrete writes per
	// transition in each direction.
	DimSteps      int
	BrightenSteps int

	// DimScreen dims the display backlight on idle.
	DimScreen bool
	// DimKeyboard turns the keyboard backlight off on idle.
	DimKeyboard bool
	// UseAmbientLight polls a light sensor and follows scene profiles.
	UseAmbientLight bool
}

// Validate checks flag ranges and that the daemon has anything at all
// to do. Called before any device is opened.
func (c Config) Validate() error {
	if c.DimTimeout <= 0 {
		return errors.New("dim timeout must be positive")
	}
	if c.DimPercent < 1 || c.DimPercent > 100 {
		return fmt.Errorf("dim percentage %d out of range 1-100", c.DimPercent)
	}
	if c.DimSteps < 1 || c.DimSteps > 100 {
		return fmt.Errorf("dim steps %d out of range 1-100", c.DimSteps)
	}
	if c.BrightenSteps < 1 || c.BrightenSteps > 100 {
		return fmt.Errorf("brighten steps %d out of range 1-100", c.BrightenSteps)
	}
	if !c.DimScreen && !c.DimKeyboard && !c.UseAmbientLight {
		return errors.New("nothing to do: screen dimming, keyboard dimming and ambient light all disabled")
	}
	return nil
}
