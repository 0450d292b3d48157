package maps

import (
	"sync"
)

const numShards = 64 // must be a power of 2

type shard[K Integer, V any] struct {
	sync.RWMutex
	m map[K]V
}

// ShardedMap partitions integer keys over numShards RWMutex-guarded maps.
// Signal handles are addresses, so the low bits are usually well spread.
type ShardedMap[K Integer, V any] struct {
	shards [numShards]shard[K, V]
}

// NewShardedMap creates a new ShardedMap.
func NewShardedMap[K Integer, V any]() ConcurrentMap[K, V] {
	m := &ShardedMap[K, V]{}
	for i := 0; i < numShards; i++ {
		m.shards[i].m = make(map[K]V)
	}
	return m
}

func (m *ShardedMap[K, V]) getShard(key K) *shard[K, V] {
	return &m.shards[uint64(key)&(numShards-1)]
}

func (m *ShardedMap[K, V]) Load(key K) (V, bool) {
	s := m.getShard(key)
	s.RLock()
	defer s.RUnlock()
	val, exists := s.m[key]
	return val, exists
}

func (m *ShardedMap[K, V]) Store(key K, value V) {
	s := m.getShard(key)
	s.Lock()
	s.m[key] = value
	s.Unlock()
}

func (m *ShardedMap[K, V]) Delete(key K) {
	s := m.getShard(key)
	s.Lock()
	delete(s.m, key)
	s.Unlock()
}

func (m *ShardedMap[K, V]) LoadAndDelete(key K) (V, bool) {
	s := m.getShard(key)
	s.Lock()
	defer s.Unlock()
	val, exists := s.m[key]
	if exists {
		delete(s.m, key)
	}
	return val, exists
}

func (m *ShardedMap[K, V]) LoadOrStore(key K, valueFactory func() V) (V, bool) {
	s := m.getShard(key)
	s.RLock()
	val, exists := s.m[key]
	s.RUnlock()
	if exists {
		return val, true
	}

	s.Lock()
	defer s.Unlock()
	// Double-check, another goroutine may have stored it meanwhile.
	if val, exists := s.m[key]; exists {
		return val, true
	}
	val = valueFactory()
	s.m[key] = val
	return val, false
}

func (m *ShardedMap[K, V]) Update(key K, updateFunc func(value V, exists bool) (newValue V, keep bool)) {
	s := m.getShard(key)
	s.Lock()
	defer s.Unlock()
	oldVal, exists := s.m[key]
	newVal, keep := updateFunc(oldVal, exists)
	if keep {
		s.m[key] = newVal
	} else if exists {
		delete(s.m, key)
	}
}

// Range copies each shard before calling f, so f may write to the map.
func (m *ShardedMap[K, V]) Range(f func(key K, value V) bool) {
	for i := 0; i < numShards; i++ {
		s := &m.shards[i]
		s.RLock()
		keys := make([]K, 0, len(s.m))
		values := make([]V, 0, len(s.m))
		for k, v := range s.m {
			keys = append(keys, k)
			values = append(values, v)
		}
		s.RUnlock()

		for j := range keys {
			if !f(keys[j], values[j]) {
				return
			}
		}
	}
}

func (m *ShardedMap[K, V]) Len() int {
	n := 0
	for i := 0; i < numShards; i++ {
		s := &m.shards[i]
		s.RLock()
		n += len(s.m)
		s.RUnlock()
	}
	return n
}
