//go:build darwin

package ambient

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

// The sensord daemon (taigrr/apple-silicon-accelerometer) publishes the
// raw ALS HID report in a POSIX shared memory snapshot: an 8-byte
// header (update count + pad) followed by the 122-byte report. Lux is a
// little-endian float32 at report offset 40.
const (
	shmName      = "vib_detect_shm_als"
	snapHeader   = 8
	alsReportLen = 122
	luxOffset    = snapHeader + 40
	shmSize      = snapHeader + alsReportLen
)

type shmSensor struct {
	buf []byte
	fd  int
}

// Open maps the sensord ALS snapshot read-only. sensord must already be
// running; there is no direct IOKit path here.
func Open() (Sensor, error) {
	fd, err := shmOpen(shmName, unix.O_RDONLY, 0)
	if err != nil {
		return nil, ErrNoSensor
	}

	buf, err := unix.Mmap(fd, 0, shmSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", shmName, err)
	}

	return &shmSensor{buf: buf, fd: fd}, nil
}

func (s *shmSensor) Lux() (float64, error) {
	if binary.LittleEndian.Uint32(s.buf[0:4]) == 0 {
		return 0, fmt.Errorf("ambient: no ALS sample published yet (is sensord running?)")
	}
	bits := binary.LittleEndian.Uint32(s.buf[luxOffset : luxOffset+4])
	return float64(math.Float32frombits(bits)), nil
}

func (s *shmSensor) Close() error {
	if s.buf != nil {
		unix.Munmap(s.buf)
		s.buf = nil
	}
	if s.fd >= 0 {
		unix.Close(s.fd)
		s.fd = -1
	}
	return nil
}

// shm_open is not exposed by the unix package on darwin; call it
// through libSystem.
var (
	libSystem uintptr
	fnShmOpen func(name *byte, oflag int32, mode uint16) int32
	shmReady  bool
)

func shmOpen(name string, flags int, mode uint32) (int, error) {
	if !shmReady {
		var err error
		libSystem, err = purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_LAZY)
		if err != nil {
			return -1, fmt.Errorf("dlopen libSystem: %w", err)
		}
		purego.RegisterLibFunc(&fnShmOpen, libSystem, "shm_open")
		shmReady = true
	}

	// shm_open names must start with /
	full := "/" + name
	b := make([]byte, len(full)+1)
	copy(b, full)
	fd := fnShmOpen(&b[0], int32(flags), uint16(mode))
	if fd < 0 {
		return -1, fmt.Errorf("shm_open(%q) returned %d", full, fd)
	}
	return int(fd), nil
}
