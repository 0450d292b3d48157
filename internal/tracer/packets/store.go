package packets

import (
	"fmt"
	"sync"
	"sync/atomic"

	"hsa_tracer/internal/hsa"
	"hsa_tracer/internal/logger"
	"hsa_tracer/internal/output"
)

// Gate tells the store whether new packets may be recorded.
type Gate interface {
	CapReached() bool
	IsTracing() bool
}

// EndTimeRecorder receives the end timestamp of dispatches dropped by the
// call cap.
type EndTimeRecorder interface {
	Record(end uint64)
}

// Stats is a snapshot of the store counters.
type Stats struct {
	Submitted uint64
	Rejected  uint64
	Flushed   uint64
	Pending   int
}

// Store is the list of packets waiting to be written.
type Store struct {
	gate     Gate
	maxTime  EndTimeRecorder
	profiler hsa.ProfilerModule
	log      *logger.SampledLogger

	mu      sync.Mutex
	packets []*AqlPacket

	submitted atomic.Uint64
	rejected  atomic.Uint64
	flushed   atomic.Uint64
}

// NewStore returns an empty store. profiler may be nil when no profiler
// module is in use.
func NewStore(gate Gate, maxTime EndTimeRecorder, profiler hsa.ProfilerModule) *Store {
	return &Store{
		gate:     gate,
		maxTime:  maxTime,
		profiler: profiler,
		log:      logger.NewSampledLoggerCtx("packet-store"),
	}
}

// Submit takes ownership of p. It reports whether p was kept.
func (s *Store) Submit(p *AqlPacket) bool {
	if p == nil {
		return false
	}
	capReached := s.gate.CapReached()
	if capReached || !s.gate.IsTracing() {
		if capReached && p.IsKernelDispatch() && s.maxTime != nil {
			s.maxTime.Record(p.End)
		}
		s.rejected.Add(1)
		return false
	}

	s.mu.Lock()
	s.packets = append(s.packets, p)
	s.mu.Unlock()
	s.submitted.Add(1)
	return true
}

// MarkReady completes profiler-timed packets matching pred whose timing
// has been reported. A nil pred matches every packet. Contexts are closed
// outside the store lock.
func (s *Store) MarkReady(pred func(*AqlPacket) bool) int {
	var done []*ProfilerContext

	s.mu.Lock()
	for _, p := range s.packets {
		if p.Profiler == nil || (pred != nil && !pred(p)) {
			continue
		}
		rec := p.Profiler.Record()
		if rec == nil {
			continue
		}
		p.Start, p.End = rec.Begin, rec.End
		p.Ready = true
		done = append(done, p.Profiler)
		p.Profiler = nil
	}
	s.mu.Unlock()

	if s.profiler != nil && s.profiler.IsModuleLoaded() {
		for _, ctx := range done {
			if status := s.profiler.CloseContext(ctx.Handle); !status.OK() {
				s.log.SampledError("close-context").
					Uint64("context", uint64(ctx.Handle)).
					Str("status", status.String()).
					Msg("Error returned from profiler context close")
			}
		}
	}
	return len(done)
}

// Flush writes every ready packet to w, flushes w and keeps the rest for
// the next flush. If writing or flushing fails every ready packet is put
// back, so a record may be written twice but is never lost.
func (s *Store) Flush(w *output.RecordWriter) (int, error) {
	s.mu.Lock()
	var ready []*AqlPacket
	pending := s.packets[:0]
	for _, p := range s.packets {
		if p.Ready {
			ready = append(ready, p)
		} else {
			pending = append(pending, p)
		}
	}
	clear(s.packets[len(pending):])
	s.packets = pending
	s.mu.Unlock()

	if len(ready) == 0 {
		return 0, nil
	}
	for _, p := range ready {
		if err := p.WriteRecord(w); err != nil {
			s.requeue(ready)
			return 0, fmt.Errorf("write packet %d: %w", p.PacketID, err)
		}
	}
	// Packets are only released once the writer has handed them to the sink.
	if err := w.Flush(); err != nil {
		s.requeue(ready)
		return 0, fmt.Errorf("flush %d packets: %w", len(ready), err)
	}
	s.flushed.Add(uint64(len(ready)))
	return len(ready), nil
}

func (s *Store) requeue(packets []*AqlPacket) {
	s.mu.Lock()
	s.packets = append(packets[:len(packets):len(packets)], s.packets...)
	s.mu.Unlock()
}

// Pending returns the packets currently held, in submission order.
func (s *Store) Pending() []*AqlPacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*AqlPacket, len(s.packets))
	copy(out, s.packets)
	return out
}

// Stats returns the current counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	n := len(s.packets)
	s.mu.Unlock()
	return Stats{
		Submitted: s.submitted.Load(),
		Rejected:  s.rejected.Load(),
		Flushed:   s.flushed.Load(),
		Pending:   n,
	}
}
