// Package window turns tracing on and off according to the configured
// start delay and duration.
package window

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// TimerState is the lifecycle of a single-shot timer.
type TimerState uint8

const (
	// TimerAbsent means no timer of that kind exists.
	TimerAbsent TimerState = iota
	TimerArmed
	TimerRunning
	TimerFired
	TimerStopped
)

func (s TimerState) String() string {
	switch s {
	case TimerAbsent:
		return "absent"
	case TimerArmed:
		return "armed"
	case TimerRunning:
		return "running"
	case TimerFired:
		return "fired"
	case TimerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Timer fires its finish handler once, interval after Start.
type Timer struct {
	clk      clock.Clock
	interval time.Duration

	mu       sync.Mutex
	state    TimerState
	t        *clock.Timer
	onFinish func()
}

func newTimer(clk clock.Clock, interval time.Duration) *Timer {
	return &Timer{clk: clk, interval: interval, state: TimerArmed}
}

// SetFinishHandler replaces the handler run when the timer fires.
func (t *Timer) SetFinishHandler(fn func()) {
	t.mu.Lock()
	t.onFinish = fn
	t.mu.Unlock()
}

// Start runs the timer. Only an armed timer can be started.
func (t *Timer) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerArmed {
		return false
	}
	t.state = TimerRunning
	t.t = t.clk.AfterFunc(t.interval, t.fire)
	return true
}

// Stop cancels a running timer. A handler already running is not waited
// for.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
	if t.state != TimerFired {
		t.state = TimerStopped
	}
}

func (t *Timer) fire() {
	t.mu.Lock()
	if t.state != TimerRunning {
		t.mu.Unlock()
		return
	}
	t.state = TimerFired
	fn := t.onFinish
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// State returns the current state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Interval returns the configured interval.
func (t *Timer) Interval() time.Duration { return t.interval }
