package maps

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
)

const (
	keySpace = 1024
)

func implementations[V any]() []struct {
	name string
	m    ConcurrentMap[uint64, V]
} {
	return []struct {
		name string
		m    ConcurrentMap[uint64, V]
	}{
		{"SyncMap", NewStdSyncMap[uint64, V]()},
		{"ShardedMap", NewShardedMap[uint64, V]()},
		{"CornelkHashMap", NewCornelkMap[uint64, V]()},
		{"XSyncMapV4", NewXSyncMap[uint64, V]()},
	}
}

// TestConcurrentMapContract checks the behaviour every implementation must share.
func TestConcurrentMapContract(t *testing.T) {
	for _, impl := range implementations[int]() {
		t.Run(impl.name, func(t *testing.T) {
			m := impl.m

			if _, ok := m.Load(1); ok {
				t.Fatal("Expected empty map")
			}

			m.Store(1, 10)
			if v, ok := m.Load(1); !ok || v != 10 {
				t.Errorf("Expected 10, got %d (found=%v)", v, ok)
			}

			v, loaded := m.LoadOrStore(1, func() int { return 99 })
			if !loaded || v != 10 {
				t.Errorf("Expected existing value 10, got %d (loaded=%v)", v, loaded)
			}
			v, loaded = m.LoadOrStore(2, func() int { return 20 })
			if loaded || v != 20 {
				t.Errorf("Expected stored value 20, got %d (loaded=%v)", v, loaded)
			}
			if m.Len() != 2 {
				t.Errorf("Expected 2 entries, got %d", m.Len())
			}

			m.Update(2, func(old int, exists bool) (int, bool) { return old + 1, true })
			if v, _ := m.Load(2); v != 21 {
				t.Errorf("Expected 21 after update, got %d", v)
			}
			m.Update(2, func(int, bool) (int, bool) { return 0, false })
			if _, ok := m.Load(2); ok {
				t.Error("Expected key 2 removed by update")
			}

			if v, ok := m.LoadAndDelete(1); !ok || v != 10 {
				t.Errorf("Expected LoadAndDelete to return 10, got %d (found=%v)", v, ok)
			}
			if m.Len() != 0 {
				t.Errorf("Expected empty map, got %d entries", m.Len())
			}
		})
	}
}

func TestSet(t *testing.T) {
	s := NewSet[uint16](1, 2, 3)
	if !s.Contains(2) || s.Contains(4) {
		t.Fatal("Unexpected set membership")
	}
	if s.Add(2) {
		t.Error("Expected duplicate add to report false")
	}
	if !s.Add(4) {
		t.Error("Expected new add to report true")
	}
	s.Remove(1)
	if s.Len() != 3 || len(s.Keys()) != 3 {
		t.Errorf("Expected 3 keys, got %d", s.Len())
	}
}

func TestShardedMapConcurrentLoadOrStore(t *testing.T) {
	m := NewShardedMap[uint64, *atomic.Int64]()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c, _ := m.LoadOrStore(uint64(i%16), func() *atomic.Int64 { return new(atomic.Int64) })
				c.Add(1)
			}
		}()
	}
	wg.Wait()

	var total int64
	m.Range(func(_ uint64, c *atomic.Int64) bool {
		total += c.Load()
		return true
	})
	if total != 8000 {
		t.Errorf("Expected 8000 increments, got %d", total)
	}
}

// runSignalMapBenchmark simulates the replacement-signal map: one insert and
// one LoadAndDelete per async copy.
func runSignalMapBenchmark(b *testing.B, bm ConcurrentMap[uint64, uint64], writers int) {
	var next atomic.Uint64
	b.ResetTimer()
	b.SetParallelism(writers)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			h := next.Add(1)
			bm.Store(h, h^0xff)
			_, _ = bm.LoadAndDelete(h)
		}
	})
}

// runFilterLookupBenchmark simulates the admission hot path: read-only
// membership checks on a small key set.
func runFilterLookupBenchmark(b *testing.B, bm ConcurrentMap[uint64, struct{}], writers int) {
	for i := 0; i < 16; i++ {
		bm.Store(uint64(i*3), struct{}{})
	}
	b.ResetTimer()
	b.SetParallelism(writers)
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			_, _ = bm.Load(r.Uint64() % keySpace)
		}
	})
}

func BenchmarkMaps(b *testing.B) {
	workloads := []struct {
		name    string
		threads int
	}{
		{"1_Thread", 1},
		{"4_Threads", 4},
	}

	b.Run("Pattern_SignalMap", func(b *testing.B) {
		for _, wl := range workloads {
			b.Run(wl.name, func(b *testing.B) {
				for _, mt := range implementations[uint64]() {
					b.Run(mt.name, func(b *testing.B) {
						runSignalMapBenchmark(b, mt.m, wl.threads)
					})
				}
			})
		}
	})

	b.Run("Pattern_FilterLookup", func(b *testing.B) {
		for _, wl := range workloads {
			b.Run(wl.name, func(b *testing.B) {
				for _, mt := range implementations[struct{}]() {
					b.Run(mt.name, func(b *testing.B) {
						runFilterLookupBenchmark(b, mt.m, wl.threads)
					})
				}
			})
		}
	})
}
