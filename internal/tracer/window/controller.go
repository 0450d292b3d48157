package window

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/phuslu/log"

	"hsa_tracer/internal/logger"
)

// Kind selects one of the two window timers.
type Kind uint8

const (
	DelayTimer Kind = iota
	DurationTimer
)

func (k Kind) String() string {
	switch k {
	case DelayTimer:
		return "delay"
	case DurationTimer:
		return "duration"
	default:
		return "unknown"
	}
}

// Tracing is what the controller switches. Timer handlers call it with
// the controller lock held, so it must not call back into the controller.
type Tracing interface {
	ResumeTracing()
	StopTracing()
}

// Controller owns the delay and duration timers. When the delay fires
// tracing resumes and, if a duration is configured, the duration timer
// starts. When the duration fires tracing stops.
type Controller struct {
	clk    clock.Clock
	target Tracing
	log    log.Logger

	mu              sync.Mutex
	delayEnabled    bool
	delay           time.Duration
	durationEnabled bool
	duration        time.Duration
	timers          [2]*Timer
	closed          bool
}

// NewController returns a controller with both timers disabled.
func NewController(clk clock.Clock, target Tracing) *Controller {
	return &Controller{
		clk:    clk,
		target: target,
		log:    logger.NewLoggerWithContext("profiling-window"),
	}
}

// EnableDelayStart configures the delay before tracing starts.
func (c *Controller) EnableDelayStart(enable bool, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delayEnabled = enable
	if !enable {
		d = 0
	}
	c.delay = d
}

// EnableDuration configures how long tracing lasts once started.
func (c *Controller) EnableDuration(enable bool, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.durationEnabled = enable
	if !enable {
		d = 0
	}
	c.duration = d
}

// IsDelayEnabled returns the delay and whether it is enabled.
func (c *Controller) IsDelayEnabled() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay, c.delayEnabled
}

// IsDurationEnabled returns the duration and whether it is enabled.
func (c *Controller) IsDurationEnabled() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration, c.durationEnabled
}

// CreateTimer creates the timer of the given kind. It does nothing if the
// timer already exists or interval is not positive. Creating a timer
// enables its kind with that interval.
func (c *Controller) CreateTimer(kind Kind, interval time.Duration) bool {
	if kind > DurationTimer || interval <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.timers[kind] != nil {
		return false
	}
	c.timers[kind] = newTimer(c.clk, interval)
	switch kind {
	case DelayTimer:
		c.delayEnabled, c.delay = true, interval
	case DurationTimer:
		c.durationEnabled, c.duration = true, interval
	}
	return true
}

// SetTimerFinishHandler sets the handler of an existing timer.
func (c *Controller) SetTimerFinishHandler(kind Kind, fn func()) bool {
	t := c.timer(kind)
	if t == nil {
		return false
	}
	t.SetFinishHandler(fn)
	return true
}

// StartTimer starts an existing, armed timer.
func (c *Controller) StartTimer(kind Kind) bool {
	t := c.timer(kind)
	if t == nil {
		return false
	}
	if !t.Start() {
		return false
	}
	c.log.Debug().Str("timer", kind.String()).Dur("interval", t.Interval()).Msg("Profiling timer started")
	return true
}

// State returns the state of the timer of the given kind.
func (c *Controller) State(kind Kind) TimerState {
	t := c.timer(kind)
	if t == nil {
		return TimerAbsent
	}
	return t.State()
}

func (c *Controller) timer(kind Kind) *Timer {
	if kind > DurationTimer {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.timers[kind]
}

// Start applies the configured window. With a delay, tracing is stopped
// until the delay fires. Without one, or when the delay timer cannot be
// armed, the duration timer starts now.
func (c *Controller) Start() {
	delay, delayOn := c.IsDelayEnabled()
	duration, durationOn := c.IsDurationEnabled()

	if delayOn && c.CreateTimer(DelayTimer, delay) {
		c.target.StopTracing()
		c.SetTimerFinishHandler(DelayTimer, c.onDelayFinished)
		c.StartTimer(DelayTimer)
		c.log.Info().Dur("delay", delay).Msg("Tracing paused until start delay elapses")
		return
	}
	if delayOn {
		c.log.Warn().Dur("delay", delay).Msg("Start delay ignored, tracing starts now")
	}
	if durationOn {
		c.startDuration(duration)
	}
}

func (c *Controller) startDuration(d time.Duration) {
	c.CreateTimer(DurationTimer, d)
	c.SetTimerFinishHandler(DurationTimer, c.onDurationFinished)
	c.StartTimer(DurationTimer)
}

// act runs fn under the controller lock unless the controller is closed,
// so Close cannot begin while fn switches tracing.
func (c *Controller) act(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	fn()
	return true
}

func (c *Controller) onDelayFinished() {
	if !c.act(c.target.ResumeTracing) {
		return
	}
	c.log.Info().Msg("Start delay elapsed, tracing resumed")

	if d, ok := c.IsDurationEnabled(); ok {
		c.startDuration(d)
	}
}

func (c *Controller) onDurationFinished() {
	if !c.act(c.target.StopTracing) {
		return
	}
	c.log.Info().Msg("Profiling duration elapsed, tracing stopped")
}

// Close stops and releases both timers. Handlers that fire afterwards do
// nothing.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for i, t := range c.timers {
		if t != nil {
			t.Stop()
			c.timers[i] = nil
		}
	}
}
