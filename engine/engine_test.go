package engine

import (
	"testing"
	"time"

	"github.com/taigrr/dimd/ambient"
	"github.com/taigrr/dimd/backlight"
	"github.com/taigrr/dimd/idle"
)

type fakeWatcher struct {
	events    chan idle.Event
	idleArms  int
	resetArms int
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan idle.Event, 4)}
}

func (w *fakeWatcher) ArmIdle(time.Duration) error { w.idleArms++; return nil }
func (w *fakeWatcher) ArmReset(int64) error        { w.resetArms++; return nil }
func (w *fakeWatcher) Events() <-chan idle.Event   { return w.events }

type fakeSensor struct {
	lux float64
}

func (s *fakeSensor) Lux() (float64, error) { return s.lux, nil }
func (s *fakeSensor) Close() error          { return nil }

func testEngine(cfg Config, screen, keyboard backlight.Control, sensor ambient.Sensor) (*Engine, *fakeWatcher) {
	w := newFakeWatcher()
	return New(cfg, screen, keyboard, sensor, w, NewController()), w
}

func TestDimCapturesRememberedAndRestores(t *testing.T) {
	cfg := validConfig()
	screen := &fakeControl{level: 75}
	e, w := testEngine(cfg, screen, nil, nil)

	if err := e.dim(Unset); err != nil {
		t.Fatal(err)
	}
	if !e.dimmed {
		t.Fatal("engine should be dimmed")
	}
	if e.rememberedScreen != 75 {
		t.Errorf("remembered %v, want 75", e.rememberedScreen)
	}
	if w.resetArms != 1 {
		t.Errorf("reset watch armed %d times, want 1", w.resetArms)
	}
	if len(screen.writes) != cfg.DimSteps {
		t.Fatalf("got %d dim writes, want %d", len(screen.writes), cfg.DimSteps)
	}
	if screen.level != float64(cfg.DimPercent) {
		t.Errorf("dimmed to %v, want %d", screen.level, cfg.DimPercent)
	}

	if err := e.brighten(); err != nil {
		t.Fatal(err)
	}
	if e.dimmed {
		t.Fatal("engine should be bright again")
	}
	if screen.level != 75 {
		t.Errorf("restored to %v, want 75", screen.level)
	}
	if w.idleArms != 1 {
		t.Errorf("idle watch armed %d times, want 1", w.idleArms)
	}
}

func TestForceDimWhileDimmedIsNoOp(t *testing.T) {
	cfg := validConfig()
	screen := &fakeControl{level: 75}
	e, _ := testEngine(cfg, screen, nil, nil)

	if err := e.dim(Unset); err != nil {
		t.Fatal(err)
	}
	writes := len(screen.writes)

	exit, err := e.handleRequest(RequestDim)
	if err != nil || exit {
		t.Fatalf("handleRequest = %v, %v", exit, err)
	}
	if len(screen.writes) != writes {
		t.Errorf("force-dim while dimmed issued %d extra writes", len(screen.writes)-writes)
	}
}

func TestForceBrightenWhileBrightIsNoOp(t *testing.T) {
	cfg := validConfig()
	screen := &fakeControl{level: 75}
	e, _ := testEngine(cfg, screen, nil, nil)

	exit, err := e.handleRequest(RequestBrighten)
	if err != nil || exit {
		t.Fatalf("handleRequest = %v, %v", exit, err)
	}
	if len(screen.writes) != 0 {
		t.Errorf("force-brighten while bright issued %d writes", len(screen.writes))
	}
}

func TestDimBelowTargetSkipsScreen(t *testing.T) {
	cfg := validConfig()
	screen := &fakeControl{level: 5} // already darker than the dim target
	e, _ := testEngine(cfg, screen, nil, nil)

	if err := e.dim(Unset); err != nil {
		t.Fatal(err)
	}
	if len(screen.writes) != 0 {
		t.Errorf("dimming below target issued %d writes", len(screen.writes))
	}
	if !e.dimmed {
		t.Error("engine should still enter the dimmed state")
	}
	if e.rememberedScreen != 5 {
		t.Errorf("remembered %v, want 5", e.rememberedScreen)
	}
}

func TestInterruptedDimBrightensImmediately(t *testing.T) {
	cfg := validConfig()
	e, w := testEngine(cfg, nil, nil, nil)
	screen := &fakeControl{level: 80}
	screen.onSet = func(n int) {
		if n == 3 {
			w.events <- idle.Event{Kind: idle.ActivityResumed}
		}
	}
	e.step.screen = screen

	if err := e.dim(Unset); err != nil {
		t.Fatal(err)
	}
	if e.dimmed {
		t.Fatal("engine should be bright after interrupted dim")
	}
	if screen.level != 80 {
		t.Errorf("restored to %v, want 80", screen.level)
	}
	if w.idleArms != 1 {
		t.Errorf("idle watch armed %d times after wake, want 1", w.idleArms)
	}
}

func TestExitWhileDimmedRestoresThenExits(t *testing.T) {
	cfg := validConfig()
	cfg.BrightenSteps = 5
	screen := &fakeControl{level: 75}
	e, _ := testEngine(cfg, screen, nil, nil)

	if err := e.dim(Unset); err != nil {
		t.Fatal(err)
	}
	dimWrites := len(screen.writes)

	exit, err := e.handleRequest(RequestExit)
	if err != nil {
		t.Fatal(err)
	}
	if !exit {
		t.Fatal("exit request must stop the loop")
	}

	restore := screen.writes[dimWrites:]
	if len(restore) != 5 {
		t.Fatalf("got %d restore writes, want 5", len(restore))
	}
	for i := 1; i < len(restore); i++ {
		if restore[i] <= restore[i-1] {
			t.Errorf("restore write %d not increasing: %v then %v", i, restore[i-1], restore[i])
		}
	}
	if got := restore[len(restore)-1]; got != 75 {
		t.Errorf("final restore write %v, want exactly 75", got)
	}
}

func TestExitWhileBrightWritesNothing(t *testing.T) {
	cfg := validConfig()
	screen := &fakeControl{level: 75}
	e, _ := testEngine(cfg, screen, nil, nil)

	exit, err := e.handleRequest(RequestExit)
	if err != nil || !exit {
		t.Fatalf("handleRequest = %v, %v", exit, err)
	}
	if len(screen.writes) != 0 {
		t.Errorf("exit while bright issued %d writes", len(screen.writes))
	}
}

func TestAmbientFirstSampleOnlySeeds(t *testing.T) {
	cfg := validConfig()
	cfg.UseAmbientLight = true
	screen := &fakeControl{level: 60}
	sensor := &fakeSensor{lux: 100}
	e, _ := testEngine(cfg, screen, nil, sensor)

	if err := e.evaluateAmbient(); err != nil {
		t.Fatal(err)
	}
	if len(screen.writes) != 0 {
		t.Errorf("first sample issued %d writes", len(screen.writes))
	}
	if e.lastLux != 100 {
		t.Errorf("lastLux %v, want 100", e.lastLux)
	}
}

func TestAmbientHysteresisDebouncesJitter(t *testing.T) {
	cfg := validConfig()
	cfg.UseAmbientLight = true
	screen := &fakeControl{level: 60}
	sensor := &fakeSensor{lux: 100}
	e, _ := testEngine(cfg, screen, nil, sensor)

	if err := e.evaluateAmbient(); err != nil { // seed
		t.Fatal(err)
	}
	sensor.lux = 105
	if err := e.evaluateAmbient(); err != nil {
		t.Fatal(err)
	}
	if len(screen.writes) != 0 {
		t.Errorf("reading within hysteresis issued %d writes", len(screen.writes))
	}
	if e.lastLux != 105 {
		t.Errorf("lastLux %v, want 105 (updated despite debounce)", e.lastLux)
	}
}

func TestAmbientSceneChangeStepsAndAdoptsBaseline(t *testing.T) {
	cfg := validConfig()
	cfg.UseAmbientLight = true
	screen := &fakeControl{level: 60}
	sensor := &fakeSensor{lux: 400} // normal indoors
	e, _ := testEngine(cfg, screen, nil, sensor)

	if err := e.evaluateAmbient(); err != nil { // seed
		t.Fatal(err)
	}
	sensor.lux = 5500 // dim outdoors: screen 80
	if err := e.evaluateAmbient(); err != nil {
		t.Fatal(err)
	}
	if screen.level != 80 {
		t.Errorf("screen at %v after scene change, want 80", screen.level)
	}
	if e.rememberedScreen != 80 {
		t.Errorf("remembered %v, want the adopted scene target 80", e.rememberedScreen)
	}
}

func TestBrightenRestoresAmbientSceneNotStaleValue(t *testing.T) {
	cfg := validConfig()
	cfg.UseAmbientLight = true
	screen := &fakeControl{level: 60}
	sensor := &fakeSensor{lux: 400}
	e, _ := testEngine(cfg, screen, nil, sensor)

	if err := e.dim(Unset); err != nil {
		t.Fatal(err)
	}
	sensor.lux = 5500 // light changed while dimmed
	if err := e.brighten(); err != nil {
		t.Fatal(err)
	}
	if screen.level != 80 {
		t.Errorf("woke to %v, want the scene target 80, not the stale 60", screen.level)
	}
}

func TestRunExitsOnRequest(t *testing.T) {
	cfg := validConfig()
	screen := &fakeControl{level: 75}
	e, w := testEngine(cfg, screen, nil, nil)

	done := make(chan error, 1)
	go func() { done <- e.Run() }()

	e.ctrl.Raise(RequestExit)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after exit request")
	}
	if w.idleArms != 1 {
		t.Errorf("idle watch armed %d times at startup, want 1", w.idleArms)
	}
}

func TestExitBeatsIdleEventInSameWakeup(t *testing.T) {
	cfg := validConfig()
	screen := &fakeControl{level: 75}
	e, w := testEngine(cfg, screen, nil, nil)

	w.events <- idle.Event{Kind: idle.IdleReached, IdleMs: 120000}
	e.ctrl.Raise(RequestExit)

	done := make(chan error, 1)
	go func() { done <- e.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if len(screen.writes) != 0 {
		t.Errorf("exit lost to the idle event: %d writes issued", len(screen.writes))
	}
}
