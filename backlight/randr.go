package backlight

import (
	"fmt"
	"math"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"
	"github.com/rs/zerolog/log"
)

// Screen drives a display backlight through the RandR "Backlight"
// output property. The first output exposing a usable property wins;
// per-output policy is out of scope.
type Screen struct {
	conn   *xgb.Conn
	output randr.Output
	prop   xproto.Atom
	min    int32
	max    int32
}

// backlightAtoms are the property names to probe, in order. "Backlight"
// is the modern RandR name, "BACKLIGHT" the legacy one some drivers
// still register.
var backlightAtoms = []string{"Backlight", "BACKLIGHT"}

// OpenScreen locates the first RandR output with an integer-range
// backlight property. The connection stays owned by the caller.
func OpenScreen(conn *xgb.Conn) (*Screen, error) {
	if err := randr.Init(conn); err != nil {
		return nil, fmt.Errorf("randr extension: %w", err)
	}

	root := xproto.Setup(conn).DefaultScreen(conn).Root
	res, err := randr.GetScreenResources(conn, root).Reply()
	if err != nil {
		return nil, fmt.Errorf("screen resources: %w", err)
	}

	for _, name := range backlightAtoms {
		atomReply, err := xproto.InternAtom(conn, true, uint16(len(name)), name).Reply()
		if err != nil || atomReply.Atom == xproto.AtomNone {
			continue
		}

		for _, output := range res.Outputs {
			prop, err := randr.GetOutputProperty(conn, output, atomReply.Atom,
				xproto.AtomNone, 0, 4, false, false).Reply()
			if err != nil || prop.Type != xproto.AtomInteger ||
				prop.NumItems != 1 || prop.Format != 32 {
				continue
			}

			info, err := randr.QueryOutputProperty(conn, output, atomReply.Atom).Reply()
			if err != nil || !info.Range || len(info.ValidValues) != 2 {
				continue
			}

			s := &Screen{
				conn:   conn,
				output: output,
				prop:   atomReply.Atom,
				min:    info.ValidValues[0],
				max:    info.ValidValues[1],
			}
			log.Debug().Str("property", name).
				Int32("min", s.min).Int32("max", s.max).
				Msg("found backlight output")
			return s, nil
		}
	}

	return nil, ErrNoBacklight
}

// Percent reads the current backlight value and maps it into [0,100].
func (s *Screen) Percent() (float64, error) {
	raw, err := s.raw()
	if err != nil {
		return 0, err
	}
	return float64(raw-s.min) * 100 / float64(s.max-s.min), nil
}

// SetPercent maps pct into the device range and writes it. The write is
// checked so a device failure surfaces immediately instead of being
// buffered on the connection.
func (s *Screen) SetPercent(pct float64) error {
	pct = clampPercent(pct)
	to := s.min + int32(math.Round(pct*float64(s.max-s.min)/100))
	if to < s.min {
		to = s.min
	}
	if to > s.max {
		to = s.max
	}

	var data [4]byte
	xgb.Put32(data[:], uint32(to))
	err := randr.ChangeOutputPropertyChecked(s.conn, s.output, s.prop,
		xproto.AtomInteger, 32, xproto.PropModeReplace, 1, data[:]).Check()
	if err != nil {
		return fmt.Errorf("set backlight: %w", err)
	}
	return nil
}

func (s *Screen) raw() (int32, error) {
	prop, err := randr.GetOutputProperty(s.conn, s.output, s.prop,
		xproto.AtomNone, 0, 4, false, false).Reply()
	if err != nil {
		return 0, fmt.Errorf("get backlight: %w", err)
	}
	if prop.Type != xproto.AtomInteger || prop.NumItems != 1 || prop.Format != 32 {
		return 0, ErrNoBacklight
	}
	return int32(xgb.Get32(prop.Data)), nil
}

// Close releases nothing; the X connection belongs to the caller.
func (s *Screen) Close() error { return nil }
