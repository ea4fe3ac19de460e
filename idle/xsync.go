package idle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jezek/xgb"
	xsync "github.com/jezek/xgb/sync"
	"github.com/rs/zerolog/log"
)

// ErrNoIdleCounter is returned when the X server exposes no IDLETIME
// system counter.
var ErrNoIdleCounter = errors.New("idle: no IDLETIME counter available")

// Watcher arms one-shot alarms against the IDLETIME counter via the
// XSync extension. At most one watch of each kind exists at a time;
// re-arming destroys the previous alarm first, and arming one kind
// tears down the other, so exactly one watch is live in steady state.
type Watcher struct {
	conn    *xgb.Conn
	counter xsync.Counter
	events  chan Event

	// mu guards the alarm IDs, read by the event pump goroutine and
	// written by Arm* calls from the engine thread.
	mu         sync.Mutex
	idleAlarm  xsync.Alarm
	resetAlarm xsync.Alarm
}

// Open initializes the sync extension, finds the IDLETIME counter, and
// starts the event pump. The connection stays owned by the caller.
func Open(conn *xgb.Conn) (*Watcher, error) {
	if err := xsync.Init(conn); err != nil {
		return nil, fmt.Errorf("sync extension: %w", err)
	}
	if _, err := xsync.Initialize(conn, 3, 1).Reply(); err != nil {
		return nil, fmt.Errorf("sync initialize: %w", err)
	}

	counters, err := xsync.ListSystemCounters(conn).Reply()
	if err != nil {
		return nil, fmt.Errorf("list system counters: %w", err)
	}

	w := &Watcher{conn: conn, events: make(chan Event, 4)}
	for _, c := range counters.Counters {
		if c.Name == "IDLETIME" {
			w.counter = c.Counter
			break
		}
	}
	if w.counter == 0 {
		return nil, ErrNoIdleCounter
	}

	go w.pump()
	return w, nil
}

// Events delivers watch firings to the event loop.
func (w *Watcher) Events() <-chan Event { return w.events }

// ArmIdle replaces any live watch with a one-shot alarm that fires once
// the idle counter has been at or above timeout.
func (w *Watcher) ArmIdle(timeout time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyAlarmsLocked()

	alarm, err := w.createAlarm(xsync.TesttypePositiveComparison, timeout.Milliseconds())
	if err != nil {
		return fmt.Errorf("arm idle watch: %w", err)
	}
	w.idleAlarm = alarm
	log.Debug().Int64("ms", timeout.Milliseconds()).Msg("idle watch armed")
	return nil
}

// ArmReset replaces any live watch with a one-shot alarm that fires the
// moment the idle counter drops below sinceMs, i.e. on the next user
// input. Pass a negative sinceMs to use the counter's current value.
func (w *Watcher) ArmReset(sinceMs int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyAlarmsLocked()

	if sinceMs < 0 {
		reply, err := xsync.QueryCounter(w.conn, w.counter).Reply()
		if err != nil {
			return fmt.Errorf("query idle counter: %w", err)
		}
		sinceMs = int64FromValue(reply.CounterValue)
	}

	alarm, err := w.createAlarm(xsync.TesttypeNegativeComparison, sinceMs-1)
	if err != nil {
		return fmt.Errorf("arm reset watch: %w", err)
	}
	w.resetAlarm = alarm
	log.Debug().Int64("since_ms", sinceMs).Msg("reset watch armed")
	return nil
}

// Close tears down any live alarms. The pump exits when the caller
// closes the X connection.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyAlarmsLocked()
	return nil
}

func (w *Watcher) destroyAlarmsLocked() {
	if w.idleAlarm != 0 {
		xsync.DestroyAlarm(w.conn, w.idleAlarm)
		w.idleAlarm = 0
	}
	if w.resetAlarm != 0 {
		xsync.DestroyAlarm(w.conn, w.resetAlarm)
		w.resetAlarm = 0
	}
}

// createAlarm builds a one-shot absolute-comparison alarm on the idle
// counter. The 64-bit wait value is passed as hi/lo words in the
// ChangeAlarm value list, in ascending mask-bit order.
func (w *Watcher) createAlarm(test byte, valueMs int64) (xsync.Alarm, error) {
	alarm, err := xsync.NewAlarmId(w.conn)
	if err != nil {
		return 0, err
	}

	mask := uint32(xsync.CaCounter | xsync.CaValueType | xsync.CaValue |
		xsync.CaTestType | xsync.CaDelta)
	values := []uint32{
		uint32(w.counter),
		xsync.ValuetypeAbsolute,
		uint32(uint64(valueMs) >> 32), // value hi
		uint32(uint64(valueMs)),       // value lo
		uint32(test),
		0, // delta hi
		0, // delta lo
	}

	if err := xsync.CreateAlarmChecked(w.conn, alarm, mask, values).Check(); err != nil {
		return 0, err
	}
	return alarm, nil
}

// pump converts XSync alarm notifications into Events. Notifications
// from alarms that have since been destroyed are dropped.
func (w *Watcher) pump() {
	for {
		ev, err := w.conn.WaitForEvent()
		if ev == nil && err == nil {
			// connection closed
			close(w.events)
			return
		}
		if err != nil {
			log.Debug().Err(err).Msg("X error event")
			continue
		}

		alarmEv, ok := ev.(xsync.AlarmNotifyEvent)
		if !ok {
			continue
		}

		w.mu.Lock()
		var kind Kind
		live := false
		switch {
		case w.idleAlarm != 0 && alarmEv.Alarm == w.idleAlarm:
			kind = IdleReached
			live = true
		case w.resetAlarm != 0 && alarmEv.Alarm == w.resetAlarm:
			kind = ActivityResumed
			live = true
		}
		w.mu.Unlock()
		if !live {
			continue
		}

		w.events <- Event{Kind: kind, IdleMs: int64FromValue(alarmEv.CounterValue)}
	}
}

func int64FromValue(v xsync.Int64) int64 {
	return int64(v.Hi)<<32 | int64(v.Lo)
}
