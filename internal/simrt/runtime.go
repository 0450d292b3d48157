// Package simrt is an in-process stand-in for the GPU runtime. It keeps
// signal values, fires async signal handlers on their own goroutines and
// hands out replacement signals from a pool. The CLI drives it to produce
// synthetic traces and the tracer tests use it as their runtime.
package simrt

import (
	"sync"
	"sync/atomic"

	"hsa_tracer/internal/hsa"
)

type registration struct {
	signal  hsa.Signal
	cond    hsa.Condition
	compare int64
	handler hsa.AsyncHandler
	arg     any
}

// Runtime implements hsa.Runtime.
type Runtime struct {
	mu        sync.Mutex
	values    map[uint64]int64
	copyTimes map[uint64]hsa.AsyncCopyTime
	queryErr  map[uint64]hsa.Status
	waiting   []*registration

	nextHandle atomic.Uint64
	inflight   sync.WaitGroup

	// RegisterStatus, when not success, is returned by SignalAsyncHandler
	// without registering anything.
	RegisterStatus hsa.Status

	queries  atomic.Uint64
	handlers atomic.Uint64
}

// New returns an empty runtime. Signal handles start at 0x1000.
func New() *Runtime {
	r := &Runtime{
		values:    make(map[uint64]int64),
		copyTimes: make(map[uint64]hsa.AsyncCopyTime),
		queryErr:  make(map[uint64]hsa.Status),
	}
	r.nextHandle.Store(0x1000 - 0x10)
	return r
}

// NewSignal creates a signal holding initial.
func (r *Runtime) NewSignal(initial int64) hsa.Signal {
	s := hsa.Signal{Handle: r.nextHandle.Add(0x10)}
	r.mu.Lock()
	r.values[s.Handle] = initial
	r.mu.Unlock()
	return s
}

func (r *Runtime) SignalLoad(s hsa.Signal) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[s.Handle]
}

// SignalStore sets the value and fires every handler whose condition is
// now satisfied.
func (r *Runtime) SignalStore(s hsa.Signal, value int64) {
	r.mu.Lock()
	r.values[s.Handle] = value
	var fire []*registration
	kept := r.waiting[:0]
	for _, reg := range r.waiting {
		if reg.signal == s && reg.cond.Satisfied(value, reg.compare) {
			fire = append(fire, reg)
			continue
		}
		kept = append(kept, reg)
	}
	r.waiting = kept
	r.mu.Unlock()

	for _, reg := range fire {
		r.dispatch(reg, value)
	}
}

func (r *Runtime) SignalAsyncHandler(s hsa.Signal, cond hsa.Condition, value int64, handler hsa.AsyncHandler, arg any) hsa.Status {
	if !r.RegisterStatus.OK() {
		return r.RegisterStatus
	}
	if handler == nil {
		return hsa.StatusInvalidArgument
	}
	reg := &registration{signal: s, cond: cond, compare: value, handler: handler, arg: arg}

	r.mu.Lock()
	current, ok := r.values[s.Handle]
	if !ok {
		r.mu.Unlock()
		return hsa.StatusInvalidSignal
	}
	if cond.Satisfied(current, value) {
		r.mu.Unlock()
		r.dispatch(reg, current)
		return hsa.StatusSuccess
	}
	r.waiting = append(r.waiting, reg)
	r.mu.Unlock()
	return hsa.StatusSuccess
}

func (r *Runtime) dispatch(reg *registration, value int64) {
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		r.handlers.Add(1)
		if reg.handler(value, reg.arg) {
			r.mu.Lock()
			r.waiting = append(r.waiting, reg)
			r.mu.Unlock()
		}
	}()
}

func (r *Runtime) QueryAsyncCopyTime(s hsa.Signal) (hsa.AsyncCopyTime, hsa.Status) {
	r.queries.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.queryErr[s.Handle]; ok {
		return hsa.AsyncCopyTime{}, st
	}
	t, ok := r.copyTimes[s.Handle]
	if !ok {
		return hsa.AsyncCopyTime{}, hsa.StatusInvalidSignal
	}
	return t, hsa.StatusSuccess
}

// CompleteCopy records the device timing for the copy signalled by s and
// then decrements s to value, as the device does when the copy finishes.
func (r *Runtime) CompleteCopy(s hsa.Signal, t hsa.AsyncCopyTime, value int64) {
	r.mu.Lock()
	r.copyTimes[s.Handle] = t
	delete(r.queryErr, s.Handle)
	r.mu.Unlock()
	r.SignalStore(s, value)
}

// FailQuery makes the next timing queries on s return status.
func (r *Runtime) FailQuery(s hsa.Signal, status hsa.Status) {
	r.mu.Lock()
	r.queryErr[s.Handle] = status
	r.mu.Unlock()
}

// Wait blocks until every dispatched handler has returned.
func (r *Runtime) Wait() { r.inflight.Wait() }

// Pending returns the number of registered handlers not yet fired.
func (r *Runtime) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiting)
}

// Queries returns how many timing queries were made.
func (r *Runtime) Queries() uint64 { return r.queries.Load() }

// HandlersRun returns how many handler invocations were dispatched.
func (r *Runtime) HandlersRun() uint64 { return r.handlers.Load() }
