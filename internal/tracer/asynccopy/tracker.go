// Package asynccopy times asynchronous memory copies by substituting the
// application's completion signal and watching the replacement.
//
// Lock order: signalMapMu and asyncTimeStampsMu are never held together.
// Runtime calls (timing queries, signal stores, handler registration) and
// pool calls happen with neither lock held.
package asynccopy

import (
	"sync"
	"sync/atomic"

	"hsa_tracer/internal/hsa"
	"hsa_tracer/internal/logger"
	"hsa_tracer/internal/osutil"
)

// AsyncCopyInfo is one observed copy. Start and End are both 0 when the
// copy failed.
type AsyncCopyInfo struct {
	ThreadID    uint64
	Signal      hsa.Signal
	Start       uint64
	End         uint64
	AsyncCopyID uint64
}

// Failed reports whether the copy completed with an error value.
func (i AsyncCopyInfo) Failed() bool { return i.Start == 0 && i.End == 0 }

// Stats is a snapshot of the tracker counters.
type Stats struct {
	Registered uint64
	Completed  uint64
	Failed     uint64
	Dropped    uint64
	InFlight   int
	Ready      int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithThreadID overrides how the creating thread is identified.
func WithThreadID(fn func() uint64) Option {
	return func(t *Tracker) { t.threadID = fn }
}

// WithTransferTimeDisabled turns the tracker into a no-op. The
// interception layer checks Enabled before substituting signals.
func WithTransferTimeDisabled(disabled bool) Option {
	return func(t *Tracker) { t.disabled = disabled }
}

// Tracker owns the replacement to original signal map and the list of
// finished copies waiting for a flush.
type Tracker struct {
	rt       hsa.Runtime
	pool     hsa.SignalPool
	threadID func() uint64
	disabled bool
	log      *logger.SampledLogger

	signalMapMu sync.Mutex
	signalMap   map[uint64]hsa.Signal

	asyncTimeStampsMu sync.Mutex
	ready             []AsyncCopyInfo

	registered atomic.Uint64
	completed  atomic.Uint64
	failed     atomic.Uint64
	dropped    atomic.Uint64
}

// NewTracker returns a tracker that talks to rt and returns replacement
// signals to pool.
func NewTracker(rt hsa.Runtime, pool hsa.SignalPool, opts ...Option) *Tracker {
	t := &Tracker{
		rt:        rt,
		pool:      pool,
		threadID:  osutil.ThreadID,
		signalMap: make(map[uint64]hsa.Signal),
		log:       logger.NewSampledLoggerCtx("async-copy"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Enabled reports whether copies should be substituted and timed.
func (t *Tracker) Enabled() bool { return !t.disabled }

// AddReplacementSignal remembers that replacement stands in for original.
func (t *Tracker) AddReplacementSignal(original, replacement hsa.Signal) {
	if t.disabled {
		return
	}
	t.signalMapMu.Lock()
	prev, dup := t.signalMap[replacement.Handle]
	t.signalMap[replacement.Handle] = original
	t.signalMapMu.Unlock()

	if dup {
		t.log.SampledWarn("replacement-reused").
			Uint64("replacement", replacement.Handle).
			Uint64("previous", prev.Handle).
			Uint64("original", original.Handle).
			Msg("Replacement signal already mapped")
	}
}

// OriginalSignal returns the application signal replacement stands in for.
func (t *Tracker) OriginalSignal(replacement hsa.Signal) (hsa.Signal, bool) {
	t.signalMapMu.Lock()
	defer t.signalMapMu.Unlock()
	s, ok := t.signalMap[replacement.Handle]
	return s, ok
}

// RemoveReplacementSignal forgets a replacement whose copy was never
// issued or never armed. The caller owns the replacement again.
func (t *Tracker) RemoveReplacementSignal(replacement hsa.Signal) (hsa.Signal, bool) {
	return t.takeOriginal(replacement)
}

func (t *Tracker) takeOriginal(replacement hsa.Signal) (hsa.Signal, bool) {
	t.signalMapMu.Lock()
	defer t.signalMapMu.Unlock()
	s, ok := t.signalMap[replacement.Handle]
	if ok {
		delete(t.signalMap, replacement.Handle)
	}
	return s, ok
}

// AddCompletionSignal arms a one-shot handler on replacement that fires
// when the copy decrements it. It reports whether the handler was
// registered.
func (t *Tracker) AddCompletionSignal(replacement hsa.Signal, asyncCopyID uint64) bool {
	if t.disabled {
		return false
	}
	value := t.rt.SignalLoad(replacement)
	info := &AsyncCopyInfo{
		ThreadID:    t.threadID(),
		Signal:      replacement,
		AsyncCopyID: asyncCopyID,
	}

	t.registered.Add(1)
	if status := t.rt.SignalAsyncHandler(replacement, hsa.ConditionLT, value, t.onCompletion, info); !status.OK() {
		t.registered.Add(^uint64(0))
		t.dropped.Add(1)
		t.log.SampledError("register-handler").
			Uint64("signal", replacement.Handle).
			Uint64("async_copy_id", asyncCopyID).
			Str("status", status.String()).
			Msg("Error returned from signal async handler registration")
		return false
	}
	return true
}

// onCompletion runs on a runtime thread. It never asks to keep monitoring.
func (t *Tracker) onCompletion(value int64, arg any) bool {
	info, ok := arg.(*AsyncCopyInfo)
	if !ok || info == nil {
		t.dropped.Add(1)
		t.log.SampledError("nil-arg").Msg("Async signal handler called with a null user arg")
		return false
	}
	replacement := info.Signal

	if value < 0 {
		original, found := t.takeOriginal(replacement)
		if !found {
			t.lostIdentity(info)
			return false
		}
		t.rt.SignalStore(original, value)
		info.Signal = original
		info.Start, info.End = 0, 0
		t.failed.Add(1)
		t.appendReady(*info)
		return false
	}

	ct, status := t.rt.QueryAsyncCopyTime(replacement)

	original, found := t.takeOriginal(replacement)
	if !found {
		t.lostIdentity(info)
		return false
	}
	t.rt.SignalStore(original, value)
	t.pool.ReleaseSignal(replacement)
	info.Signal = original

	if !status.OK() {
		t.dropped.Add(1)
		t.log.SampledError("copy-time-query").
			Uint64("signal", replacement.Handle).
			Uint64("async_copy_id", info.AsyncCopyID).
			Str("status", status.String()).
			Msg("Error returned from async copy time query")
		return false
	}

	info.Start, info.End = ct.Start, ct.End
	t.completed.Add(1)
	t.appendReady(*info)
	return false
}

func (t *Tracker) lostIdentity(info *AsyncCopyInfo) {
	t.dropped.Add(1)
	t.log.SampledError("lost-identity").
		Uint64("signal", info.Signal.Handle).
		Uint64("async_copy_id", info.AsyncCopyID).
		Msg("Unable to find original async copy signal")
}

func (t *Tracker) appendReady(info AsyncCopyInfo) {
	t.asyncTimeStampsMu.Lock()
	t.ready = append(t.ready, info)
	t.asyncTimeStampsMu.Unlock()
}

// Drain hands over every finished copy in completion order. The caller
// owns the returned slice.
func (t *Tracker) Drain() []AsyncCopyInfo {
	t.asyncTimeStampsMu.Lock()
	out := t.ready
	t.ready = nil
	t.asyncTimeStampsMu.Unlock()
	return out
}

// Requeue puts records back at the head of the ready list, ahead of
// anything that completed since they were drained.
func (t *Tracker) Requeue(records []AsyncCopyInfo) {
	if len(records) == 0 {
		return
	}
	t.asyncTimeStampsMu.Lock()
	t.ready = append(records[:len(records):len(records)], t.ready...)
	t.asyncTimeStampsMu.Unlock()
}

// Stats returns the current counters.
func (t *Tracker) Stats() Stats {
	t.signalMapMu.Lock()
	inFlight := len(t.signalMap)
	t.signalMapMu.Unlock()

	t.asyncTimeStampsMu.Lock()
	ready := len(t.ready)
	t.asyncTimeStampsMu.Unlock()

	return Stats{
		Registered: t.registered.Load(),
		Completed:  t.completed.Load(),
		Failed:     t.failed.Load(),
		Dropped:    t.dropped.Load(),
		InFlight:   inFlight,
		Ready:      ready,
	}
}
