package simrt

import (
	"sync"

	"hsa_tracer/internal/hsa"
)

// Profiler implements hsa.ProfilerModule and records closed contexts.
type Profiler struct {
	mu          sync.Mutex
	loaded      bool
	closeStatus hsa.Status
	closed      map[hsa.ContextHandle]int
}

// NewProfiler returns a profiler module reporting the given load state.
func NewProfiler(loaded bool) *Profiler {
	return &Profiler{loaded: loaded, closed: make(map[hsa.ContextHandle]int)}
}

func (p *Profiler) IsModuleLoaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func (p *Profiler) CloseContext(ctx hsa.ContextHandle) hsa.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed[ctx]++
	return p.closeStatus
}

// FailClose makes CloseContext return status from now on.
func (p *Profiler) FailClose(status hsa.Status) {
	p.mu.Lock()
	p.closeStatus = status
	p.mu.Unlock()
}

// Closed returns how many times ctx was closed.
func (p *Profiler) Closed(ctx hsa.ContextHandle) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed[ctx]
}
