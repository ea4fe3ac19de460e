// Package engine implements the idle-dimming state machine: a single
// event loop that multiplexes idle watches, external control requests,
// and ambient light polling, and drives gradual brightness transitions.
//
// The loop is the only execution context that touches the brightness
// controls, the idle watcher, and the light sensor. Everything arriving
// from outside (signals, the bus) comes in through the Controller.
package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taigrr/dimd/ambient"
	"github.com/taigrr/dimd/backlight"
	"github.com/taigrr/dimd/idle"
)

// ambientPollInterval is how often the light sensor is sampled while
// the screen is bright.
const ambientPollInterval = time.Second

// Watcher arms threshold watches on the idle-time counter. Arming one
// kind tears down the other; the engine relies on that so no stale
// watch ever fires against the wrong state.
type Watcher interface {
	ArmIdle(timeout time.Duration) error
	ArmReset(sinceMs int64) error
	Events() <-chan idle.Event
}

// Engine owns all dimming state. Two states: bright (initial) and
// dimmed. Remembered brightness is captured at the moment dimming
// begins and restored on brighten.
type Engine struct {
	cfg     Config
	step    stepper
	watcher Watcher
	sensor  ambient.Sensor
	ctrl    *Controller

	dimmed             bool
	rememberedScreen   float64
	rememberedKeyboard float64
	lastLux            float64
}

// New wires an engine. screen, keyboard, and sensor may be nil when the
// corresponding feature is disabled.
func New(cfg Config, screen, keyboard backlight.Control, sensor ambient.Sensor, watcher Watcher, ctrl *Controller) *Engine {
	return &Engine{
		cfg:                cfg,
		step:               stepper{screen: screen, keyboard: keyboard},
		watcher:            watcher,
		sensor:             sensor,
		ctrl:               ctrl,
		rememberedScreen:   Unset,
		rememberedKeyboard: Unset,
		lastLux:            Unset,
	}
}

// Run is the event loop. It returns nil on a requested graceful
// shutdown and an error on any device failure, which the caller treats
// as fatal: a half-applied brightness step left unresolved is worse
// than a clean crash.
func (e *Engine) Run() error {
	if err := e.watcher.ArmIdle(e.cfg.DimTimeout); err != nil {
		return err
	}

	var tick <-chan time.Time
	if e.sensor != nil {
		t := time.NewTicker(ambientPollInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case req := <-e.ctrl.Requests():
			exit, err := e.handleRequest(req)
			if exit || err != nil {
				return err
			}

		case ev, ok := <-e.watcher.Events():
			if !ok {
				return errors.New("idle watch closed")
			}
			// A control request pending in the same wake-up wins over
			// the watch event.
			select {
			case req := <-e.ctrl.Requests():
				exit, err := e.handleRequest(req)
				if exit || err != nil {
					return err
				}
			default:
			}
			if err := e.handleIdleEvent(ev); err != nil {
				return err
			}

		case <-tick:
			if !e.dimmed {
				if err := e.evaluateAmbient(); err != nil {
					return err
				}
			}
		}
	}
}

// handleRequest acts on one external control request. Force-dim while
// dimmed and force-brighten while bright are no-ops.
func (e *Engine) handleRequest(req Request) (exit bool, err error) {
	log.Debug().Stringer("request", req).Bool("dimmed", e.dimmed).Msg("external request")

	switch req {
	case RequestExit:
		if e.dimmed {
			// Best effort: restore brightness on the way out, but never
			// let a failing device block shutdown.
			if err := e.exitBrighten(); err != nil {
				log.Warn().Err(err).Msg("restore on exit failed")
			}
		}
		return true, nil

	case RequestDim:
		if e.dimmed {
			return false, nil
		}
		return false, e.dim(Unset)

	case RequestBrighten:
		if !e.dimmed {
			return false, nil
		}
		return false, e.brighten()
	}
	return false, nil
}

// handleIdleEvent acts on a watch firing. Events that no longer match
// the engine's state (late deliveries after a forced transition) are
// dropped.
func (e *Engine) handleIdleEvent(ev idle.Event) error {
	switch ev.Kind {
	case idle.IdleReached:
		if e.dimmed {
			return nil
		}
		log.Debug().Int64("idle_ms", ev.IdleMs).Msg("idle threshold reached")
		return e.dim(ev.IdleMs)

	case idle.ActivityResumed:
		if !e.dimmed {
			return nil
		}
		log.Debug().Msg("idle counter reset")
		return e.brighten()
	}
	return nil
}

// dim captures the current brightness, arms the reset watch, and steps
// down interruptibly. idleMs is the counter value that triggered the
// transition, or Unset on a forced dim (the watcher then queries the
// counter itself).
//
// The reset watch is armed before stepping: it is what makes the
// transition interruptible, since input during the dim-down fires it.
func (e *Engine) dim(idleMs int64) error {
	var targetScreen, targetKeyboard float64 = Unset, Unset

	if e.step.screen != nil {
		cur, err := e.step.screen.Percent()
		if err != nil {
			return err
		}
		e.rememberedScreen = cur
		if e.cfg.DimScreen {
			if cur > float64(e.cfg.DimPercent) {
				targetScreen = float64(e.cfg.DimPercent)
			} else {
				log.Debug().Float64("current", cur).Int("target", e.cfg.DimPercent).
					Msg("backlight already at or below dim target")
			}
		}
	}
	if e.step.keyboard != nil {
		cur, err := e.step.keyboard.Percent()
		if err != nil {
			return err
		}
		e.rememberedKeyboard = cur
		if e.cfg.DimKeyboard {
			targetKeyboard = 0
		}
	}

	if err := e.watcher.ArmReset(idleMs); err != nil {
		return err
	}

	ev, err := e.step.step(targetScreen, targetKeyboard, e.cfg.DimSteps, e.watcher.Events())
	if err != nil {
		return err
	}
	e.dimmed = true

	if ev != nil {
		// Real input arrived mid-dim; the device is partially dimmed
		// and the reset watch has fired. Handle it as the activity it is.
		return e.handleIdleEvent(*ev)
	}
	return nil
}

// brighten restores the remembered brightness and re-arms the idle
// watch. With ambient light enabled the scene for the current lux is
// adopted first, so waking restores an ambient-appropriate level
// rather than a stale pre-dim value.
func (e *Engine) brighten() error {
	if e.sensor != nil {
		lux, err := e.sensor.Lux()
		if err != nil {
			return fmt.Errorf("ambient light read: %w", err)
		}
		sc := sceneFor(lux)
		if e.step.screen != nil {
			e.rememberedScreen = sc.Screen
		}
		if e.step.keyboard != nil {
			e.rememberedKeyboard = sc.Keyboard
		}
		e.lastLux = lux
		log.Debug().Str("scene", sc.Name).Float64("lux", lux).Msg("waking into scene")
	}

	if err := e.watcher.ArmIdle(e.cfg.DimTimeout); err != nil {
		return err
	}

	_, err := e.step.step(e.rememberedScreen, e.rememberedKeyboard, e.cfg.BrightenSteps, nil)
	if err != nil {
		return err
	}
	e.dimmed = false
	return nil
}

// exitBrighten restores the remembered brightness on the way out of the
// process. No watches are touched and ambient light is ignored; this
// path only undoes the dim.
func (e *Engine) exitBrighten() error {
	_, err := e.step.step(e.rememberedScreen, e.rememberedKeyboard, e.cfg.BrightenSteps, nil)
	return err
}

// evaluateAmbient polls the light sensor and, when the reading moved
// enough and resolves to different targets, transitions to the new
// scene. Only called while bright: evaluating ambient light while the
// screen is intentionally dark would fight the dim state.
func (e *Engine) evaluateAmbient() error {
	lux, err := e.sensor.Lux()
	if err != nil {
		return fmt.Errorf("ambient light read: %w", err)
	}

	if e.lastLux < 0 {
		// first sample only calibrates
		e.lastLux = lux
		return nil
	}
	if math.Abs(lux-e.lastLux) < luxHysteresis {
		e.lastLux = lux
		return nil
	}
	e.lastLux = lux

	sc := sceneFor(lux)
	var targetScreen, targetKeyboard float64 = Unset, Unset
	if e.step.screen != nil {
		targetScreen = sc.Screen
	}
	if e.step.keyboard != nil {
		targetKeyboard = sc.Keyboard
	}
	log.Debug().Str("scene", sc.Name).Float64("lux", lux).Msg("ambient scene change")

	if _, err := e.step.step(targetScreen, targetKeyboard, e.cfg.DimSteps, nil); err != nil {
		return err
	}

	// The scene is the new restore baseline.
	if e.step.screen != nil {
		e.rememberedScreen = sc.Screen
	}
	if e.step.keyboard != nil {
		e.rememberedKeyboard = sc.Keyboard
	}
	return nil
}
