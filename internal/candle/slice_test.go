package candle

import (
	"testing"

	"github.com/amirphl/chart-exerciser/internal/tfutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilWindowBars(t *testing.T) {
	assert.Equal(t, 552, UntilWindowBars(tfutils.M5))
	assert.Equal(t, 46, UntilWindowBars(tfutils.H1))
	assert.Equal(t, 2760, UntilWindowBars(tfutils.M1))
	assert.Equal(t, 0, UntilWindowBars("bogus"))
}

func TestBarsUntil(t *testing.T) {
	s := mustSeries(t, tfutils.M5, flatBars(0, 100))

	t.Run("Window bounded and ascending", func(t *testing.T) {
		out := BarsUntil(s, 50*300, 10, 0)
		require.Len(t, out, 10)
		assert.Equal(t, int64(41*300), out[0].Time)
		assert.Equal(t, int64(50*300), out[9].Time)
		for i := 1; i < len(out); i++ {
			assert.Less(t, out[i-1].Time, out[i].Time)
		}
	})

	t.Run("Aligns end forward", func(t *testing.T) {
		out := BarsUntil(s, 50*300-1, 5, 0)
		require.Len(t, out, 5)
		assert.Equal(t, int64(50*300), out[4].Time)
	})

	t.Run("Window clipped at series start", func(t *testing.T) {
		out := BarsUntil(s, 3*300, 552, 0)
		require.Len(t, out, 4)
		assert.Equal(t, int64(0), out[0].Time)
	})

	t.Run("Prefetch extends past anchor", func(t *testing.T) {
		out := BarsUntil(s, 50*300, 10, PrefetchBars)
		require.Len(t, out, 10+PrefetchBars)
		assert.Equal(t, int64((50+PrefetchBars)*300), out[len(out)-1].Time)
	})

	t.Run("Prefetch capped at series end", func(t *testing.T) {
		out := BarsUntil(s, 95*300, 10, PrefetchBars)
		require.Len(t, out, 14)
		assert.Equal(t, int64(99*300), out[len(out)-1].Time)
	})

	t.Run("After last bar is empty", func(t *testing.T) {
		out := BarsUntil(s, 100*300, 10, PrefetchBars)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})

	t.Run("No gap synthesis", func(t *testing.T) {
		gappy := gappySeries(t)
		out := BarsUntil(gappy, 3900, 552, 0)
		assert.Len(t, out, gappy.Len())
	})
}

func TestBarsAfter(t *testing.T) {
	s := mustSeries(t, tfutils.M5, flatBars(0, 100))

	t.Run("Strictly after anchor", func(t *testing.T) {
		out := BarsAfter(s, 10*300, PrefetchBars)
		require.Len(t, out, PrefetchBars)
		assert.Equal(t, int64(11*300), out[0].Time)
	})

	t.Run("Pads back between bars", func(t *testing.T) {
		out := BarsAfter(s, 10*300+150, 2)
		require.Len(t, out, 2)
		assert.Equal(t, int64(11*300), out[0].Time)
	})

	t.Run("Capped at series end", func(t *testing.T) {
		out := BarsAfter(s, 95*300, PrefetchBars)
		assert.Len(t, out, 4)
	})

	t.Run("Last bar yields empty", func(t *testing.T) {
		out := BarsAfter(s, 99*300, PrefetchBars)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})

	t.Run("Before first bar yields empty", func(t *testing.T) {
		out := BarsAfter(s, -1, PrefetchBars)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})
}
