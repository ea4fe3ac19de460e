//go:build linux

package ambient

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSysfs(t *testing.T, dir, name, value string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenAtPrefersProcessedInput(t *testing.T) {
	dir := t.TempDir()
	writeSysfs(t, dir, "in_illuminance_input", "412\n")
	writeSysfs(t, dir, "in_illuminance_raw", "9999\n")

	s, err := openAt(dir)
	if err != nil {
		t.Fatal(err)
	}
	lux, err := s.Lux()
	if err != nil {
		t.Fatal(err)
	}
	if lux != 412 {
		t.Errorf("Lux() = %v, want 412 from the processed channel", lux)
	}
}

func TestOpenAtScalesRawChannel(t *testing.T) {
	dir := t.TempDir()
	writeSysfs(t, dir, "in_illuminance_raw", "200\n")
	writeSysfs(t, dir, "in_illuminance_scale", "2.5\n")

	s, err := openAt(dir)
	if err != nil {
		t.Fatal(err)
	}
	lux, err := s.Lux()
	if err != nil {
		t.Fatal(err)
	}
	if lux != 500 {
		t.Errorf("Lux() = %v, want 500 (raw 200 * scale 2.5)", lux)
	}
}

func TestOpenAtRawWithoutScaleDefaultsToOne(t *testing.T) {
	dir := t.TempDir()
	writeSysfs(t, dir, "in_illuminance0_raw", "33\n")

	s, err := openAt(dir)
	if err != nil {
		t.Fatal(err)
	}
	lux, err := s.Lux()
	if err != nil {
		t.Fatal(err)
	}
	if lux != 33 {
		t.Errorf("Lux() = %v, want 33", lux)
	}
}

func TestOpenAtNoIlluminanceChannel(t *testing.T) {
	dir := t.TempDir()
	writeSysfs(t, dir, "in_accel_x_raw", "12\n")

	if _, err := openAt(dir); !errors.Is(err, ErrNoSensor) {
		t.Errorf("openAt = %v, want ErrNoSensor", err)
	}
}

func TestLuxRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	writeSysfs(t, dir, "in_illuminance_input", "not-a-number\n")

	s, err := openAt(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Lux(); err == nil {
		t.Error("garbage reading accepted")
	}
}
