package admission

import (
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsa_tracer/internal/hsa"
)

func TestMustInterceptIgnoresFilter(t *testing.T) {
	p := NewPolicy(0)
	for _, k := range DefaultMustIntercept {
		require.True(t, p.AddToFilter(k.String()))
	}
	require.True(t, p.AddToFilter("hsa_queue_destroy"))

	for _, k := range DefaultMustIntercept {
		assert.True(t, p.IsInFilterList(k))
		assert.True(t, p.ShouldIntercept(k), "%s", k)
		assert.Equal(t, Admitted, p.Evaluate(k, true), "%s", k)
	}
	assert.False(t, p.ShouldIntercept(hsa.CallQueueDestroy))
	assert.Equal(t, Filtered, p.Evaluate(hsa.CallQueueDestroy, true))
}

func TestAddToFilterUnknownName(t *testing.T) {
	p := NewPolicy(0)
	assert.False(t, p.AddToFilter("hsa_made_up"))
	assert.Empty(t, p.FilteredAPIs())
}

func TestEvaluateOrder(t *testing.T) {
	p := NewPolicy(2)
	assert.Equal(t, Disabled, p.Evaluate(hsa.CallMemoryCopy, false))
	assert.Equal(t, Admitted, p.Evaluate(hsa.CallMemoryCopy, true))

	p.RecordAdmitted()
	p.RecordAdmitted()
	require.True(t, p.CapReached())

	assert.Equal(t, Capped, p.Evaluate(hsa.CallMemoryCopy, true))
	assert.Equal(t, Capped, p.Evaluate(hsa.CallQueueCreate, true))
	assert.Equal(t, Capped, p.Evaluate(hsa.CallMemoryCopy, false))
}

func TestZeroCapIsUnlimited(t *testing.T) {
	p := NewPolicy(0)
	for i := 0; i < 1000; i++ {
		p.RecordAdmitted()
	}
	assert.False(t, p.CapReached())
	assert.Equal(t, uint64(1000), p.Traced())
}

func TestCapUnderConcurrency(t *testing.T) {
	const maxCalls = 100
	p := NewPolicy(maxCalls)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if p.Evaluate(hsa.CallSignalLoadRelaxed, true) == Admitted {
					p.RecordAdmitted()
				}
			}
		}()
	}
	wg.Wait()

	assert.True(t, p.CapReached())
	assert.GreaterOrEqual(t, p.Traced(), uint64(maxCalls))
	assert.LessOrEqual(t, p.Traced(), uint64(maxCalls+8))
}

func TestMaxCallTimeKeepsLargest(t *testing.T) {
	var m MaxCallTime
	m.Record(50)
	m.Record(20)
	m.Record(70)
	assert.Equal(t, uint64(70), m.Value())

	var wg sync.WaitGroup
	for i := uint64(1); i <= 64; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			m.Record(v * 10)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, uint64(640), m.Value())
}

func TestLoadFilterFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/filter.txt", []byte(`
# noisy signal calls
hsa_signal_load_relaxed
  hsa_signal_store_relaxed
hsa_not_real

hsa_queue_create
`), 0644))

	p := NewPolicy(0)
	n, err := p.LoadFilterFile(fs, "/etc/filter.txt")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, p.IsInFilterList(hsa.CallSignalLoadRelaxed))
	assert.True(t, p.IsInFilterList(hsa.CallSignalStoreRelaxed))
	assert.True(t, p.ShouldIntercept(hsa.CallQueueCreate))
	assert.ElementsMatch(t, []string{"hsa_signal_load_relaxed", "hsa_signal_store_relaxed", "hsa_queue_create"}, p.FilteredAPIs())

	_, err = p.LoadFilterFile(fs, "/missing")
	assert.Error(t, err)
}
