package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"hsa_tracer/internal/hsa"
	"hsa_tracer/internal/logger"
	"hsa_tracer/internal/maps"
	"hsa_tracer/internal/osutil"
	"hsa_tracer/internal/simrt"
	"hsa_tracer/internal/tracer/packets"
	"hsa_tracer/internal/tracer/session"
)

var kernelNames = []string{
	"vector_add",
	"gemm_f32_64x64",
	"reduce_sum",
	"",
}

// workload plays the part of an application plus its interception layer:
// it issues calls against the simulated runtime and reports them to the
// session the way wrapped entry points would.
type workload struct {
	m    *session.Manager
	rt   *simrt.Runtime
	pool *simrt.Pool
	log  log.Logger
	base time.Time

	callID   atomic.Uint64
	copyID   atomic.Uint64
	packetID atomic.Uint64
	ctxID    atomic.Uint64

	// Profiler contexts still waiting for the device, by packet id.
	inflight maps.ConcurrentMap[uint64, *packets.ProfilerContext]
	devices  sync.WaitGroup
}

func newWorkload(m *session.Manager, rt *simrt.Runtime, pool *simrt.Pool) *workload {
	return &workload{
		m:        m,
		rt:       rt,
		pool:     pool,
		log:      logger.NewLoggerWithContext("workload"),
		base:     time.Now(),
		inflight: maps.NewConcurrentMap[uint64, *packets.ProfilerContext](),
	}
}

func (w *workload) now() uint64 {
	return uint64(time.Since(w.base).Nanoseconds()) + 1
}

// intercept runs fn as the body of an API call of kind and records it.
func (w *workload) intercept(kind hsa.CallKind, args string, fn func() hsa.Status) hsa.Status {
	if !w.m.ShouldIntercept(kind) {
		return fn()
	}
	start := w.now()
	status := fn()
	w.m.AddAPIInfoEntry(hsa.APIRecord{
		ID:       w.callID.Add(1),
		Kind:     kind,
		ThreadID: osutil.ThreadID(),
		Start:    start,
		End:      w.now(),
		Args:     args,
		Return:   status.String(),
	})
	return status
}

// run executes iterations call bursts on each of threads goroutines and
// waits for every async copy and dispatch to complete.
func (w *workload) run(ctx context.Context, iterations, threads int) error {
	if threads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", threads)
	}
	g, ctx := errgroup.WithContext(ctx)
	for t := 0; t < threads; t++ {
		g.Go(func() error {
			th := newAppThread(w, uint64(t))
			for i := 0; i < iterations; i++ {
				if ctx.Err() != nil {
					return nil
				}
				th.burst()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	w.settle()
	return nil
}

// runUntil issues one burst per interval until ctx is done.
func (w *workload) runUntil(ctx context.Context, interval time.Duration) {
	th := newAppThread(w, 0)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.settle()
			return
		case <-ticker.C:
			th.burst()
			w.completeDispatches()
		}
	}
}

// settle finishes outstanding dispatches and waits for copy handlers.
func (w *workload) settle() {
	w.completeDispatches()
	w.devices.Wait()
	w.rt.Wait()
	w.log.Debug().Int("pending_handlers", w.rt.Pending()).Msg("Workload settled")
}

// completeDispatches reports timing for every in-flight dispatch and lets
// the session pick them up.
func (w *workload) completeDispatches() {
	w.inflight.Range(func(id uint64, pc *packets.ProfilerContext) bool {
		if pc, ok := w.inflight.LoadAndDelete(id); ok {
			end := w.now()
			pc.Complete(end-500, end)
		}
		return true
	})
	if n := w.m.MarkProfilerDataReady(nil); n > 0 {
		w.log.Trace().Int("packets", n).Msg("Profiler data ready")
	}
}

type appThread struct {
	w     *workload
	rng   *rand.Rand
	queue hsa.QueueHandle
}

func newAppThread(w *workload, seed uint64) *appThread {
	return &appThread{w: w, rng: rand.New(rand.NewPCG(seed, uint64(time.Now().UnixNano())))}
}

func (a *appThread) burst() {
	w := a.w
	if a.queue == 0 {
		h := hsa.QueueHandle(0x7f0000000000 + a.rng.Uint64N(1<<32)<<8)
		w.intercept(hsa.CallQueueCreate, fmt.Sprintf("queue=0x%x", uintptr(h)), func() hsa.Status {
			w.m.AddQueue(h)
			return hsa.StatusSuccess
		})
		a.queue = h
	}

	sig := w.rt.NewSignal(1)
	w.intercept(hsa.CallSignalLoadRelaxed, sig.String(), func() hsa.Status {
		w.rt.SignalLoad(sig)
		return hsa.StatusSuccess
	})

	switch a.rng.IntN(3) {
	case 0:
		a.asyncCopy()
	case 1:
		a.dispatch()
	default:
		w.intercept(hsa.CallSignalStoreRelaxed, sig.String(), func() hsa.Status {
			w.rt.SignalStore(sig, 0)
			return hsa.StatusSuccess
		})
	}
}

// asyncCopy issues a copy the way the wrapped entry point does: the
// caller's signal is swapped for a pool signal the tracer can time.
func (a *appThread) asyncCopy() {
	w := a.w
	original := w.rt.NewSignal(1)
	w.intercept(hsa.CallAmdMemoryAsyncCopy, original.String(), func() hsa.Status {
		completion := original
		if w.m.TransferTimeEnabled() {
			replacement, err := w.pool.AcquireSignal()
			if err != nil {
				w.log.Warn().Err(err).Msg("No replacement signal, copy not timed")
			} else {
				w.m.AddReplacementAsyncCopySignal(original, replacement)
				if w.m.AddAsyncCopyCompletionSignal(replacement, w.copyID.Add(1)) {
					completion = replacement
				} else {
					w.m.RemoveReplacementAsyncCopySignal(replacement)
					w.pool.ReleaseSignal(replacement)
				}
			}
		}

		start := w.now()
		t := hsa.AsyncCopyTime{Start: start, End: start + 1000 + a.rng.Uint64N(4000)}
		w.devices.Add(1)
		go func() {
			defer w.devices.Done()
			w.rt.CompleteCopy(completion, t, 0)
		}()
		return hsa.StatusSuccess
	})
}

func (a *appThread) dispatch() {
	w := a.w
	qid, ok := w.m.QueueID(a.queue)
	if !ok {
		return
	}
	id := w.packetID.Add(1)
	p := &packets.AqlPacket{
		Kind:          hsa.PacketKernelDispatch,
		CorrelationID: w.callID.Load(),
		QueueID:       qid,
		PacketID:      id,
		Agent:         hsa.AgentHandle(0x1),
		KernelObject:  0x7f1000000000 + id<<12,
		KernelName:    kernelNames[a.rng.IntN(len(kernelNames))],
	}
	if a.rng.IntN(4) == 0 {
		p.Kind = hsa.PacketBarrierAnd
		p.Start = w.now()
		p.End = p.Start + 100
		p.Ready = true
		w.m.AddAqlPacketEntry(p)
		return
	}
	pc := packets.NewProfilerContext(hsa.ContextHandle(w.ctxID.Add(1)))
	p.Profiler = pc
	if w.m.AddAqlPacketEntry(p) {
		w.inflight.Store(id, pc)
	}
}
