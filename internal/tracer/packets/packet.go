// Package packets buffers AQL packet records until their timestamps are
// known and flushes the ready ones.
package packets

import (
	"sync/atomic"

	"hsa_tracer/internal/hsa"
	"hsa_tracer/internal/output"
)

// DispatchTimes is the out-of-band timing the profiler module reports for
// one dispatch.
type DispatchTimes struct {
	Begin uint64
	End   uint64
}

// ProfilerContext links a dispatch to the profiler module context that
// will report its timing.
type ProfilerContext struct {
	Handle hsa.ContextHandle
	record atomic.Pointer[DispatchTimes]
}

// NewProfilerContext wraps a profiler context handle.
func NewProfilerContext(h hsa.ContextHandle) *ProfilerContext {
	return &ProfilerContext{Handle: h}
}

// Complete stores the reported timing. It may be called from any
// goroutine.
func (c *ProfilerContext) Complete(begin, end uint64) {
	c.record.Store(&DispatchTimes{Begin: begin, End: end})
}

// Record returns the reported timing, nil until Complete is called.
func (c *ProfilerContext) Record() *DispatchTimes {
	return c.record.Load()
}

// AqlPacket is one submitted command packet.
type AqlPacket struct {
	Kind          hsa.PacketKind
	Ready         bool
	Start         uint64
	End           uint64
	CorrelationID uint64
	QueueID       uint64
	PacketID      uint64

	// Kernel dispatch only.
	Agent        hsa.AgentHandle
	KernelObject uint64
	KernelName   string

	// Profiler is set for dispatches timed by the profiler module. The
	// packet owns it until MarkReady closes it.
	Profiler *ProfilerContext
}

// IsKernelDispatch reports whether the packet launches a kernel.
func (p *AqlPacket) IsKernelDispatch() bool {
	return p.Kind == hsa.PacketKernelDispatch
}

// Fields returns the record columns: kind, start, end, correlation id,
// queue id and packet id, followed for kernel dispatches by agent, kernel
// object and kernel name.
func (p *AqlPacket) Fields() []any {
	fields := []any{p.Kind.String(), p.Start, p.End, p.CorrelationID, p.QueueID, p.PacketID}
	if p.IsKernelDispatch() {
		name := p.KernelName
		if name == "" {
			name = "<unknown>"
		}
		fields = append(fields, uint64(p.Agent), p.KernelObject, name)
	}
	return fields
}

// WriteRecord writes the packet as one record.
func (p *AqlPacket) WriteRecord(w *output.RecordWriter) error {
	return w.WriteRecord(p.Fields()...)
}
