package engine

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taigrr/dimd/backlight"
	"github.com/taigrr/dimd/idle"
)

// Unset marks a brightness value or target as "not set"; the stepper
// leaves such channels alone.
const Unset = -1

// stepDelay paces multi-step transitions and bounds the interruption
// check between steps.
const stepDelay = 15 * time.Millisecond

// stepper walks one or two brightness channels from their current
// levels to their targets in equal linear increments. It holds no
// device state of its own; every level it acts on is read fresh.
type stepper struct {
	screen   backlight.Control
	keyboard backlight.Control
}

// step transitions the channels toward their targets over the given
// number of writes. A target of Unset (or a nil control) skips that
// channel; a channel already at its rounded target contributes no
// increment. The final write snaps each moving channel exactly to its
// target so float drift never accumulates in the device.
//
// When interrupt is non-nil the transition pauses briefly after every
// non-final write and stops early if an event arrives; the event is
// handed back to the caller. Only dim-direction transitions pass an
// interrupt channel, since a slow dim-down must not mask real user
// input; brighten transitions always run to completion.
func (s *stepper) step(targetScreen, targetKeyboard float64, steps int, interrupt <-chan idle.Event) (*idle.Event, error) {
	type channel struct {
		ctl     backlight.Control
		cur, to float64
		inc     float64
	}

	var moving []*channel
	add := func(ctl backlight.Control, target float64) error {
		if ctl == nil || target < 0 {
			return nil
		}
		cur, err := ctl.Percent()
		if err != nil {
			return err
		}
		if math.Round(cur) == math.Round(target) {
			return nil
		}
		moving = append(moving, &channel{ctl: ctl, cur: cur, to: target})
		return nil
	}
	if err := add(s.screen, targetScreen); err != nil {
		return nil, err
	}
	if err := add(s.keyboard, targetKeyboard); err != nil {
		return nil, err
	}
	if len(moving) == 0 {
		return nil, nil
	}

	for _, ch := range moving {
		ch.inc = (ch.to - ch.cur) / float64(steps)
	}

	for j := 1; j <= steps; j++ {
		for _, ch := range moving {
			if j == steps {
				ch.cur = ch.to
			} else {
				ch.cur += ch.inc
			}
			if err := ch.ctl.SetPercent(ch.cur); err != nil {
				return nil, err
			}
		}

		if interrupt != nil && j < steps {
			select {
			case ev := <-interrupt:
				log.Debug().Int("step", j).Int("of", steps).
					Msg("transition interrupted by activity")
				return &ev, nil
			case <-time.After(stepDelay):
			}
		}
	}
	return nil, nil
}
