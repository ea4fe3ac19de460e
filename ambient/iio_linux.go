//go:build linux

package ambient

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const iioPath = "/sys/bus/iio/devices"

// iioSensor reads an industrial-IO illuminance channel. Devices either
// expose in_illuminance_input (already in lux) or a raw value plus a
// scale factor.
type iioSensor struct {
	inputPath string
	scale     float64
}

// Open scans the IIO bus for the first device with an illuminance
// channel.
func Open() (Sensor, error) {
	entries, err := os.ReadDir(iioPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSensor
		}
		return nil, fmt.Errorf("read %s: %w", iioPath, err)
	}

	for _, entry := range entries {
		s, err := openAt(filepath.Join(iioPath, entry.Name()))
		if err == nil {
			return s, nil
		}
	}
	return nil, ErrNoSensor
}

func openAt(dir string) (*iioSensor, error) {
	for _, name := range []string{"in_illuminance_input", "in_illuminance0_input"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return &iioSensor{inputPath: p, scale: 1}, nil
		}
	}

	for _, name := range []string{"in_illuminance_raw", "in_illuminance0_raw"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		scale := 1.0
		if data, err := os.ReadFile(filepath.Join(dir, "in_illuminance_scale")); err == nil {
			if v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64); err == nil {
				scale = v
			}
		}
		return &iioSensor{inputPath: p, scale: scale}, nil
	}

	return nil, ErrNoSensor
}

func (s *iioSensor) Lux() (float64, error) {
	data, err := os.ReadFile(s.inputPath)
	if err != nil {
		return 0, fmt.Errorf("read illuminance: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse illuminance: %w", err)
	}
	return v * s.scale, nil
}

func (s *iioSensor) Close() error { return nil }
