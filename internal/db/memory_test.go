package db

import (
	"sync"
	"testing"

	"github.com/amirphl/chart-exerciser/internal/candle"
	"github.com/amirphl/chart-exerciser/internal/tfutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatBars(start int64, n int) []candle.Bar {
	bars := make([]candle.Bar, n)
	for i := range bars {
		p := 10 + float64(i)
		bars[i] = candle.Bar{Time: start + int64(i)*300, Open: p, High: p + 1, Low: p - 1, Close: p + 0.25}
	}
	return bars
}

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemory()
	require.NoError(t, store.Put("AAA", flatBars(0, 289)))
	require.NoError(t, store.Put("BBB", flatBars(86400, 12)))
	return store
}

func TestMemoryStore_Put(t *testing.T) {
	store := NewMemory()

	t.Run("Rejects unordered bars", func(t *testing.T) {
		bars := flatBars(0, 3)
		bars[1].Time = bars[2].Time
		assert.Error(t, store.Put("BAD", bars))
		assert.Empty(t, store.Symbols())
	})

	t.Run("Symbols sorted", func(t *testing.T) {
		require.NoError(t, store.Put("ZZZ", flatBars(0, 1)))
		require.NoError(t, store.Put("AAA", flatBars(0, 1)))
		assert.Equal(t, []string{"AAA", "ZZZ"}, store.Symbols())
	})
}

func TestMemoryStore_GetSeries(t *testing.T) {
	store := newTestStore(t)

	t.Run("Base timeframe", func(t *testing.T) {
		s, err := store.GetSeries("AAA", tfutils.M5)
		require.NoError(t, err)
		base, err := store.Base("AAA")
		require.NoError(t, err)
		assert.Same(t, base, s)
		assert.Equal(t, 0, store.CachedSeries())
	})

	t.Run("Unknown ticker", func(t *testing.T) {
		_, err := store.GetSeries("NOPE", tfutils.M5)
		assert.ErrorIs(t, err, ErrUnknownTicker)
		_, err = store.Base("NOPE")
		assert.ErrorIs(t, err, ErrUnknownTicker)
	})

	t.Run("M1 is not upsampled", func(t *testing.T) {
		_, err := store.GetSeries("AAA", tfutils.M1)
		assert.ErrorIs(t, err, tfutils.ErrUnsupportedTimeframe)
	})

	t.Run("Unrecognized timeframe", func(t *testing.T) {
		_, err := store.GetSeries("AAA", "D1")
		assert.ErrorIs(t, err, tfutils.ErrUnsupportedTimeframe)
	})

	t.Run("H1 computed once and cached", func(t *testing.T) {
		first, err := store.GetSeries("AAA", tfutils.H1)
		require.NoError(t, err)
		assert.Equal(t, tfutils.H1, first.Timeframe())
		assert.Equal(t, 25, first.Len())
		assert.Equal(t, 1, store.CachedSeries())

		second, err := store.GetSeries("AAA", tfutils.H1)
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, 1, store.CachedSeries())
	})
}

func TestMemoryStore_ConcurrentLazyInsert(t *testing.T) {
	store := newTestStore(t)

	const workers = 64
	results := make([]*candle.Series, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := store.GetSeries("BBB", tfutils.H1)
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range results {
		assert.Same(t, results[0], s)
	}
	assert.Equal(t, 1, store.CachedSeries())
	assert.Equal(t, 1, results[0].Len())
}
