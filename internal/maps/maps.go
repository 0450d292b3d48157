package maps

// mapImplementation controls the default concurrent map used by the tracer.
// Valid options: "xsync", "sharded", "cornelk", "sync".
const mapImplementation = "xsync"

// Integer is a constraint that permits any integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// ConcurrentMap is a thread-safe map keyed by an integer type (call kinds,
// signal handles, thread ids). Implementations are interchangeable so the
// hot-path lookups in the admission policy can be tuned without touching it.
type ConcurrentMap[K Integer, V any] interface {
	Load(key K) (V, bool)
	Store(key K, value V)
	Delete(key K)
	LoadAndDelete(key K) (V, bool)
	// LoadOrStore returns the existing value, or stores and returns the value
	// built by valueFactory. loaded is true when the value already existed.
	LoadOrStore(key K, valueFactory func() V) (value V, loaded bool)
	Update(key K, updateFunc func(value V, exists bool) (newValue V, keep bool))
	Range(f func(key K, value V) bool)
	Len() int
}

// NewConcurrentMap returns the default implementation selected by
// mapImplementation.
func NewConcurrentMap[K Integer, V any]() ConcurrentMap[K, V] {
	switch mapImplementation {
	case "xsync":
		return NewXSyncMap[K, V]()
	case "sharded":
		return NewShardedMap[K, V]()
	case "cornelk":
		return NewCornelkMap[K, V]()
	case "sync":
		return NewStdSyncMap[K, V]()
	default:
		return NewXSyncMap[K, V]()
	}
}

// Set is a concurrent set of integer keys built on ConcurrentMap.
type Set[K Integer] struct {
	m ConcurrentMap[K, struct{}]
}

// NewSet returns an empty set backed by the default map implementation.
func NewSet[K Integer](keys ...K) *Set[K] {
	s := &Set[K]{m: NewConcurrentMap[K, struct{}]()}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts k. It reports whether k was newly added.
func (s *Set[K]) Add(k K) bool {
	_, loaded := s.m.LoadOrStore(k, func() struct{} { return struct{}{} })
	return !loaded
}

// Remove deletes k.
func (s *Set[K]) Remove(k K) { s.m.Delete(k) }

// Contains reports whether k is in the set.
func (s *Set[K]) Contains(k K) bool {
	_, ok := s.m.Load(k)
	return ok
}

// Len returns the number of keys.
func (s *Set[K]) Len() int { return s.m.Len() }

// Keys returns a snapshot of the keys in unspecified order.
func (s *Set[K]) Keys() []K {
	keys := make([]K, 0, s.m.Len())
	s.m.Range(func(k K, _ struct{}) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}
