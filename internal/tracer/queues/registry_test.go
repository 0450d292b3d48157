package queues

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsa_tracer/internal/hsa"
)

func TestRegisterAssignsIncreasingIDs(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 5; i++ {
		id, ok := r.Register(hsa.QueueHandle(0x100 + i))
		require.True(t, ok)
		assert.Equal(t, uint64(i), id)
	}
	id, ok := r.Lookup(0x103)
	require.True(t, ok)
	assert.Equal(t, uint64(3), id)

	_, ok = r.Lookup(0x999)
	assert.False(t, ok)
}

func TestRegisterDuplicateOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Register(0x10)
	r.Register(0x20)

	id, ok := r.Register(0x10)
	require.True(t, ok)
	assert.Equal(t, uint64(2), id)

	got, _ := r.Lookup(0x10)
	assert.Equal(t, uint64(2), got)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, uint64(3), r.Created())
}

func TestRegisterIgnoresZeroHandle(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Register(0)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), r.Created())
	assert.Equal(t, 0, r.Len())
}

// Random sequences with repeats: first registrations get strictly
// increasing unique ids and the counter never goes back.
func TestRegisterRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 50; round++ {
		r := NewRegistry()
		seen := make(map[hsa.QueueHandle]uint64)
		var lastFirst int64 = -1
		var lastCreated uint64

		for i := 0; i < 200; i++ {
			h := hsa.QueueHandle(1 + rng.Intn(40))
			id, ok := r.Register(h)
			require.True(t, ok)
			if _, dup := seen[h]; !dup {
				require.Greater(t, int64(id), lastFirst)
				lastFirst = int64(id)
			}
			seen[h] = id
			require.GreaterOrEqual(t, r.Created(), lastCreated+1)
			lastCreated = r.Created()
		}

		ids := make(map[uint64]bool)
		for h, want := range seen {
			got, ok := r.Lookup(h)
			require.True(t, ok)
			require.Equal(t, want, got)
			require.False(t, ids[got], "id %d assigned twice", got)
			ids[got] = true
		}
	}
}

func TestRegisterConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Register(hsa.QueueHandle(g*1000 + i + 1))
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 800, r.Len())
	assert.Equal(t, uint64(800), r.Created())
}
