//go:build linux

package backlight

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const ledsPath = "/sys/class/leds"

// Keyboard drives a keyboard backlight through the leds sysfs class
// (entries named like tpacpi::kbd_backlight or *::kbd_backlight).
type Keyboard struct {
	brightnessPath string
	max            int
}

// OpenKeyboard picks the first kbd_backlight led device.
func OpenKeyboard() (*Keyboard, error) {
	entries, err := os.ReadDir(ledsPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ledsPath, err)
	}
	for _, entry := range entries {
		if !strings.Contains(entry.Name(), "kbd_backlight") {
			continue
		}
		return openKeyboardAt(filepath.Join(ledsPath, entry.Name()))
	}
	return nil, ErrNoBacklight
}

func openKeyboardAt(dir string) (*Keyboard, error) {
	maxData, err := os.ReadFile(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("read max_brightness: %w", err)
	}
	max, err := strconv.Atoi(strings.TrimSpace(string(maxData)))
	if err != nil || max <= 0 {
		return nil, fmt.Errorf("invalid max_brightness in %s", dir)
	}
	return &Keyboard{
		brightnessPath: filepath.Join(dir, "brightness"),
		max:            max,
	}, nil
}

// Percent reads the current led brightness as a percentage of the
// device maximum.
func (k *Keyboard) Percent() (float64, error) {
	data, err := os.ReadFile(k.brightnessPath)
	if err != nil {
		return 0, fmt.Errorf("read brightness: %w", err)
	}
	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse brightness: %w", err)
	}
	return float64(raw) * 100 / float64(k.max), nil
}

// SetPercent writes the scaled raw value. Keyboard led ranges are tiny
// (often 0..2 or 0..3), so rounding matters more than step smoothness.
func (k *Keyboard) SetPercent(pct float64) error {
	pct = clampPercent(pct)
	raw := int(math.Round(pct * float64(k.max) / 100))
	err := os.WriteFile(k.brightnessPath, []byte(strconv.Itoa(raw)), 0o644)
	if err != nil {
		return fmt.Errorf("write brightness: %w", err)
	}
	return nil
}

func (k *Keyboard) Close() error { return nil }
