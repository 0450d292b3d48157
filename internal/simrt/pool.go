package simrt

import (
	"errors"
	"sync"

	"hsa_tracer/internal/hsa"
)

// ErrPoolExhausted is returned by AcquireSignal when the pool has a limit
// and every signal is in use.
var ErrPoolExhausted = errors.New("signal pool exhausted")

// Pool implements hsa.SignalPool over a Runtime. Acquired signals start
// at 1 so a decrement to 0 completes them.
type Pool struct {
	rt *Runtime

	mu       sync.Mutex
	idle     []hsa.Signal
	inUse    map[uint64]struct{}
	releases map[uint64]int
	limit    int
}

// NewPool returns a pool that creates signals on demand. limit 0 means no
// limit on signals in use.
func NewPool(rt *Runtime, limit int) *Pool {
	return &Pool{
		rt:       rt,
		inUse:    make(map[uint64]struct{}),
		releases: make(map[uint64]int),
		limit:    limit,
	}
}

func (p *Pool) AcquireSignal() (hsa.Signal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limit > 0 && len(p.inUse) >= p.limit {
		return hsa.Signal{}, ErrPoolExhausted
	}
	var s hsa.Signal
	if n := len(p.idle); n > 0 {
		s = p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.rt.SignalStore(s, 1)
	} else {
		s = p.rt.NewSignal(1)
	}
	p.inUse[s.Handle] = struct{}{}
	return s, nil
}

// ReleaseSignal returns s to the idle list. Releasing a signal that is not
// in use is counted but otherwise ignored.
func (p *Pool) ReleaseSignal(s hsa.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases[s.Handle]++
	if _, ok := p.inUse[s.Handle]; !ok {
		return
	}
	delete(p.inUse, s.Handle)
	p.idle = append(p.idle, s)
}

// Releases returns how many times s was released.
func (p *Pool) Releases(s hsa.Signal) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releases[s.Handle]
}

// InUse returns the number of acquired, unreleased signals.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}
