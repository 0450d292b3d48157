// Package queues assigns stable numeric ids to runtime command queues.
package queues

import (
	"sync"

	"hsa_tracer/internal/hsa"
	"hsa_tracer/internal/logger"

	"github.com/phuslu/log"
)

// Registry maps queue handles to ids in creation order.
type Registry struct {
	mu      sync.Mutex
	ids     map[hsa.QueueHandle]uint64
	created uint64
	log     log.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ids: make(map[hsa.QueueHandle]uint64),
		log: logger.NewLoggerWithContext("queue-registry"),
	}
}

// Register assigns the next id to h. A handle the runtime recycled is
// remapped to the new id. The zero handle is ignored.
func (r *Registry) Register(h hsa.QueueHandle) (uint64, bool) {
	if h == 0 {
		return 0, false
	}

	r.mu.Lock()
	id := r.created
	_, dup := r.ids[h]
	r.ids[h] = id
	r.created++
	r.mu.Unlock()

	if dup {
		r.log.Warn().Uint64("queue", uint64(h)).Uint64("id", id).Msg("Queue added to map more than once")
	}
	return id, true
}

// Lookup returns the id assigned to h.
func (r *Registry) Lookup(h hsa.QueueHandle) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[h]
	return id, ok
}

// Len returns the number of mapped handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// Created returns how many registrations have been made, duplicates
// included.
func (r *Registry) Created() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}
