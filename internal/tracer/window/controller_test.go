package window

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracing struct {
	on      atomic.Bool
	resumes atomic.Int32
	stops   atomic.Int32
}

func (f *fakeTracing) ResumeTracing() { f.resumes.Add(1); f.on.Store(true) }
func (f *fakeTracing) StopTracing()   { f.stops.Add(1); f.on.Store(false) }

const wait = time.Second
const tick = time.Millisecond

func TestDelayThenDuration(t *testing.T) {
	clk := clock.NewMock()
	tr := &fakeTracing{}
	tr.on.Store(true)

	c := NewController(clk, tr)
	defer c.Close()
	c.EnableDelayStart(true, 100*time.Millisecond)
	c.EnableDuration(true, 50*time.Millisecond)
	c.Start()

	require.False(t, tr.on.Load(), "delay must pause tracing")
	assert.Equal(t, TimerRunning, c.State(DelayTimer))
	assert.Equal(t, TimerAbsent, c.State(DurationTimer))

	clk.Add(99 * time.Millisecond)
	assert.False(t, tr.on.Load())

	clk.Add(time.Millisecond)
	require.Eventually(t, func() bool { return c.State(DurationTimer) == TimerRunning }, wait, tick)
	assert.True(t, tr.on.Load())
	assert.Equal(t, TimerFired, c.State(DelayTimer))

	// Reading the configuration must not move the window.
	for i := 0; i < 5; i++ {
		d, ok := c.IsDelayEnabled()
		assert.True(t, ok)
		assert.Equal(t, 100*time.Millisecond, d)
		d, ok = c.IsDurationEnabled()
		assert.True(t, ok)
		assert.Equal(t, 50*time.Millisecond, d)
	}

	clk.Add(49 * time.Millisecond)
	assert.True(t, tr.on.Load())

	clk.Add(time.Millisecond)
	require.Eventually(t, func() bool { return !tr.on.Load() }, wait, tick)
	assert.Equal(t, TimerFired, c.State(DurationTimer))
	assert.Equal(t, int32(1), tr.resumes.Load())
	assert.Equal(t, int32(2), tr.stops.Load())
}

func TestDurationOnly(t *testing.T) {
	clk := clock.NewMock()
	tr := &fakeTracing{}
	tr.on.Store(true)

	c := NewController(clk, tr)
	defer c.Close()
	c.EnableDuration(true, 30*time.Millisecond)
	c.Start()

	assert.True(t, tr.on.Load())
	assert.Equal(t, TimerAbsent, c.State(DelayTimer))
	assert.Equal(t, TimerRunning, c.State(DurationTimer))

	clk.Add(30 * time.Millisecond)
	require.Eventually(t, func() bool { return !tr.on.Load() }, wait, tick)
	assert.Equal(t, int32(0), tr.resumes.Load())
}

func TestDelayOnlyLeavesTracingOn(t *testing.T) {
	clk := clock.NewMock()
	tr := &fakeTracing{}

	c := NewController(clk, tr)
	defer c.Close()
	c.EnableDelayStart(true, 10*time.Millisecond)
	c.Start()

	clk.Add(10 * time.Millisecond)
	require.Eventually(t, func() bool { return tr.on.Load() }, wait, tick)

	clk.Add(time.Hour)
	assert.True(t, tr.on.Load())
	assert.Equal(t, TimerAbsent, c.State(DurationTimer))
}

func TestNoWindowConfigured(t *testing.T) {
	clk := clock.NewMock()
	tr := &fakeTracing{}
	tr.on.Store(true)

	c := NewController(clk, tr)
	c.Start()
	assert.Equal(t, TimerAbsent, c.State(DelayTimer))
	assert.Equal(t, TimerAbsent, c.State(DurationTimer))
	assert.True(t, tr.on.Load())
	assert.Equal(t, int32(0), tr.stops.Load())
}

func TestCreateTimerIsIdempotent(t *testing.T) {
	c := NewController(clock.NewMock(), &fakeTracing{})
	defer c.Close()

	assert.False(t, c.CreateTimer(DelayTimer, 0))
	assert.Equal(t, TimerAbsent, c.State(DelayTimer))

	assert.True(t, c.CreateTimer(DelayTimer, 20*time.Millisecond))
	assert.False(t, c.CreateTimer(DelayTimer, 40*time.Millisecond))
	d, ok := c.IsDelayEnabled()
	assert.True(t, ok)
	assert.Equal(t, 20*time.Millisecond, d)
	assert.Equal(t, TimerArmed, c.State(DelayTimer))

	assert.True(t, c.StartTimer(DelayTimer))
	assert.False(t, c.StartTimer(DelayTimer))
	assert.False(t, c.StartTimer(DurationTimer))
	assert.False(t, c.SetTimerFinishHandler(DurationTimer, func() {}))
}

func TestDisableClearsInterval(t *testing.T) {
	c := NewController(clock.NewMock(), &fakeTracing{})
	c.EnableDelayStart(false, time.Second)
	d, ok := c.IsDelayEnabled()
	assert.False(t, ok)
	assert.Zero(t, d)
}

func TestCloseStopsPendingTimers(t *testing.T) {
	clk := clock.NewMock()
	tr := &fakeTracing{}

	c := NewController(clk, tr)
	c.EnableDelayStart(true, 10*time.Millisecond)
	c.EnableDuration(true, 10*time.Millisecond)
	c.Start()
	c.Close()

	assert.Equal(t, TimerAbsent, c.State(DelayTimer))
	assert.False(t, c.CreateTimer(DurationTimer, time.Second))

	clk.Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, tr.on.Load())
	assert.Equal(t, int32(0), tr.resumes.Load())
	c.Close()
}

func TestHandlerAfterCloseDoesNothing(t *testing.T) {
	tr := &fakeTracing{}
	c := NewController(clock.NewMock(), tr)
	c.Close()

	c.onDelayFinished()
	c.onDurationFinished()
	assert.Equal(t, int32(0), tr.resumes.Load())
	assert.Equal(t, int32(0), tr.stops.Load())
}

func TestTimerStateMachine(t *testing.T) {
	clk := clock.NewMock()
	var fired atomic.Int32
	tm := newTimer(clk, 5*time.Millisecond)
	tm.SetFinishHandler(func() { fired.Add(1) })

	assert.Equal(t, TimerArmed, tm.State())
	require.True(t, tm.Start())
	assert.Equal(t, TimerRunning, tm.State())

	clk.Add(5 * time.Millisecond)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, wait, tick)
	assert.Equal(t, TimerFired, tm.State())
	tm.fire()
	assert.Equal(t, int32(1), fired.Load())

	tm.Stop()
	assert.Equal(t, TimerFired, tm.State())

	stopped := newTimer(clk, time.Millisecond)
	stopped.Start()
	stopped.Stop()
	stopped.fire()
	assert.Equal(t, TimerStopped, stopped.State())
}

func TestZeroDelayStartsTracingNow(t *testing.T) {
	clk := clock.NewMock()
	tr := &fakeTracing{}
	tr.on.Store(true)

	c := NewController(clk, tr)
	defer c.Close()
	c.EnableDelayStart(true, 0)
	c.EnableDuration(true, 50*time.Millisecond)
	c.Start()

	assert.True(t, tr.on.Load(), "a zero delay must not pause tracing")
	assert.Equal(t, int32(0), tr.stops.Load())
	assert.Equal(t, TimerAbsent, c.State(DelayTimer))
	assert.Equal(t, TimerRunning, c.State(DurationTimer))

	clk.Add(50 * time.Millisecond)
	require.Eventually(t, func() bool { return !tr.on.Load() }, wait, tick)
}

func TestNegativeDelayWithoutDuration(t *testing.T) {
	clk := clock.NewMock()
	tr := &fakeTracing{}
	tr.on.Store(true)

	c := NewController(clk, tr)
	defer c.Close()
	c.EnableDelayStart(true, -time.Second)
	c.Start()

	clk.Add(time.Hour)
	assert.True(t, tr.on.Load())
	assert.Equal(t, TimerAbsent, c.State(DelayTimer))
}

type blockingTracing struct {
	fakeTracing
	entered chan struct{}
	release chan struct{}
}

func (b *blockingTracing) ResumeTracing() {
	close(b.entered)
	<-b.release
	b.fakeTracing.ResumeTracing()
}

func TestCloseWaitsForRunningHandler(t *testing.T) {
	tr := &blockingTracing{entered: make(chan struct{}), release: make(chan struct{})}
	c := NewController(clock.NewMock(), tr)
	c.EnableDuration(true, time.Second)

	go c.onDelayFinished()
	<-tr.entered

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	isClosed := func() bool {
		select {
		case <-closed:
			return true
		default:
			return false
		}
	}
	assert.Never(t, isClosed, 20*time.Millisecond, tick)

	close(tr.release)
	require.Eventually(t, isClosed, wait, tick)

	c.mu.Lock()
	duration := c.timers[DurationTimer]
	c.mu.Unlock()
	assert.Nil(t, duration, "no timer may be created once Close has run")

	c.onDelayFinished()
	assert.Equal(t, int32(1), tr.resumes.Load())
}
