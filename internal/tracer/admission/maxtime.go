package admission

import "sync/atomic"

// MaxCallTime keeps the latest end timestamp seen on calls dropped by the
// cap so the trace still has a meaningful end time.
type MaxCallTime struct {
	end atomic.Uint64
}

// Record raises the stored value to end if end is larger.
func (m *MaxCallTime) Record(end uint64) {
	for {
		cur := m.end.Load()
		if end <= cur || m.end.CompareAndSwap(cur, end) {
			return
		}
	}
}

// Value returns the largest recorded end timestamp, 0 if none.
func (m *MaxCallTime) Value() uint64 { return m.end.Load() }
