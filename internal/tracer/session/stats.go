package session

import (
	"hsa_tracer/internal/output"
	"hsa_tracer/internal/tracer/admission"
	"hsa_tracer/internal/tracer/asynccopy"
	"hsa_tracer/internal/tracer/packets"
)

// Stats is a point-in-time view of the session counters.
type Stats struct {
	Tracing        bool
	Admitted       uint64
	Filtered       uint64
	Capped         uint64
	Disabled       uint64
	Traced         uint64
	MaxCallEndTime uint64
	BufferedAPI    int
	QueuesCreated  uint64
	QueuesMapped   int
	Copies         asynccopy.Stats
	Packets        packets.Stats
	FlushedBytes   map[output.FileKind]uint64
	FlushErrors    uint64
}

// Stats returns the current counters.
func (m *Manager) Stats() Stats {
	m.apiMu.Lock()
	buffered := len(m.apiRecords)
	m.apiMu.Unlock()

	flushed := make(map[output.FileKind]uint64, len(m.flushedBytes))
	for k := range m.flushedBytes {
		flushed[output.FileKind(k)] = m.flushedBytes[k].Load()
	}

	return Stats{
		Tracing:        m.IsTracing(),
		Admitted:       m.decisions[admission.Admitted].Load(),
		Filtered:       m.decisions[admission.Filtered].Load(),
		Capped:         m.decisions[admission.Capped].Load(),
		Disabled:       m.decisions[admission.Disabled].Load(),
		Traced:         m.policy.Traced(),
		MaxCallEndTime: m.policy.MaxCallTime().Value(),
		BufferedAPI:    buffered,
		QueuesCreated:  m.queues.Created(),
		QueuesMapped:   m.queues.Len(),
		Copies:         m.copies.Stats(),
		Packets:        m.packets.Stats(),
		FlushedBytes:   flushed,
		FlushErrors:    m.flushErrors.Load(),
	}
}
