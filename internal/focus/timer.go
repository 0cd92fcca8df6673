// Package focus runs the focus countdown timer and due-date reminders. Both
// schedule their callbacks on a Clock so tests can drive them by hand.
package focus

import (
	"context"
	"sync"
	"time"

	"github.com/vthunder/techpm/internal/logging"
	"github.com/vthunder/techpm/internal/notify"
	"github.com/vthunder/techpm/internal/tracker"
)

// CompleteMessage is sent when a countdown reaches zero
const CompleteMessage = "Focus complete! Nicely done."

// Phase is Idle or Running
type Phase string

const (
	Idle    Phase = "idle"
	Running Phase = "running"
)

// Preset is a countdown length in minutes
type Preset int

const (
	Preset25 Preset = 25
	Preset50 Preset = 50
	Preset90 Preset = 90
)

// Presets lists the selectable presets
var Presets = []Preset{Preset25, Preset50, Preset90}

// Seconds converts the preset to a countdown length
func (p Preset) Seconds() int { return int(p) * 60 }

// Valid reports whether p is one of Presets
func (p Preset) Valid() bool {
	for _, v := range Presets {
		if p == v {
			return true
		}
	}
	return false
}

// State is a snapshot of the timer
type State struct {
	Phase     Phase `json:"phase"`
	Remaining int   `json:"remainingSeconds"`
}

// Timer is a single countdown. While running it ticks once per second on
// its clock; reaching zero stops it and sends CompleteMessage once.
type Timer struct {
	clock    Clock
	notifier notify.Capability

	// opMu serializes transitions together with their change callbacks
	opMu sync.Mutex

	mu        sync.Mutex
	phase     Phase
	remaining int
	gen       uint64 // bumped whenever the pending tick is replaced or dropped
	cancel    func()
	listeners []func(State)
	onDone    []func()
}

// NewTimer returns an idle timer set to seconds
func NewTimer(clock Clock, notifier notify.Capability, seconds int) *Timer {
	if clock == nil {
		clock = SystemClock{}
	}
	if seconds < 0 {
		seconds = 0
	}
	return &Timer{clock: clock, notifier: notifier, phase: Idle, remaining: seconds}
}

// OnChange registers fn to receive the state after every transition and tick
func (t *Timer) OnChange(fn func(State)) {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// OnComplete registers fn to run after each countdown reaches zero and the
// completion notification has been attempted
func (t *Timer) OnComplete(fn func()) {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	t.onDone = append(t.onDone, fn)
}

// State returns the current phase and remaining seconds
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

func (t *Timer) stateLocked() State {
	return State{Phase: t.phase, Remaining: t.remaining}
}

// apply runs fn under the state lock, publishes the resulting state and,
// when fn reports completion, notifies outside all locks.
func (t *Timer) apply(fn func() (changed, completed bool, err error)) error {
	t.opMu.Lock()

	t.mu.Lock()
	changed, completed, err := fn()
	st := t.stateLocked()
	t.mu.Unlock()

	if err == nil && changed {
		for _, l := range t.listeners {
			l(st)
		}
	}
	done := t.onDone
	t.opMu.Unlock()

	if completed {
		t.notifyComplete()
		for _, fn := range done {
			fn()
		}
	}
	return err
}

// Start moves Idle to Running. It fails when nothing remains and is a no-op
// while already running.
func (t *Timer) Start() error {
	return t.apply(func() (bool, bool, error) {
		if t.phase == Running {
			return false, false, nil
		}
		if t.remaining <= 0 {
			return false, false, tracker.Validationf("timer.start", "no time remaining; reset or pick a preset")
		}
		t.phase = Running
		t.scheduleLocked()
		logging.Debug("focus", "started with %ds", t.remaining)
		return true, false, nil
	})
}

// Pause moves Running to Idle keeping the remaining time
func (t *Timer) Pause() {
	_ = t.apply(func() (bool, bool, error) {
		if t.phase != Running {
			return false, false, nil
		}
		t.stopLocked()
		return true, false, nil
	})
}

// Reset stops any countdown and sets the remaining time to seconds
func (t *Timer) Reset(seconds int) error {
	return t.apply(func() (bool, bool, error) {
		if seconds < 0 {
			return false, false, tracker.Validationf("timer.reset", "duration must not be negative")
		}
		t.stopLocked()
		t.remaining = seconds
		return true, false, nil
	})
}

// SelectPreset stops the timer and sets the remaining time to the preset
func (t *Timer) SelectPreset(p Preset) error {
	if !p.Valid() {
		return tracker.Validationf("timer.preset", "unknown preset %d; choose 25, 50 or 90", p)
	}
	return t.Reset(p.Seconds())
}

// Tick advances a running countdown by one second. It does nothing while idle.
func (t *Timer) Tick() {
	_ = t.apply(func() (bool, bool, error) {
		changed, completed := t.tickLocked()
		return changed, completed, nil
	})
}

func (t *Timer) tickLocked() (changed, completed bool) {
	if t.phase != Running {
		return false, false
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining == 0 {
		t.stopLocked()
		return true, true
	}
	return true, false
}

// fire is the scheduled per-second callback. A callback from a generation
// that has since been cancelled is dropped.
func (t *Timer) fire(gen uint64) {
	_ = t.apply(func() (bool, bool, error) {
		if gen != t.gen || t.phase != Running {
			return false, false, nil
		}
		changed, completed := t.tickLocked()
		if t.phase == Running {
			t.scheduleLocked()
		}
		return changed, completed, nil
	})
}

func (t *Timer) scheduleLocked() {
	t.gen++
	gen := t.gen
	t.cancel = t.clock.AfterFunc(time.Second, func() { t.fire(gen) })
}

func (t *Timer) stopLocked() {
	t.phase = Idle
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *Timer) notifyComplete() {
	ctx := context.Background()
	if !notify.Authorized(ctx, t.notifier) {
		logging.Info("focus", "focus complete (notifications unavailable)")
		return
	}
	if err := t.notifier.Notify(ctx, CompleteMessage); err != nil {
		logging.Warn("focus", "completion notification failed: %v", err)
	}
}
