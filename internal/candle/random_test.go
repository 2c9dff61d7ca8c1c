package candle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomTime(t *testing.T) {
	const day = int64(86400)
	r := NewRandomTimer(42)

	t.Run("Wide range keeps one day margin", func(t *testing.T) {
		minTime, maxTime := int64(1_600_000_200), int64(1_600_000_200)+10*day
		for i := 0; i < 2000; i++ {
			ts := r.RandomTime(minTime, maxTime)
			assert.GreaterOrEqual(t, ts, minTime+day)
			assert.LessOrEqual(t, ts, maxTime-day)
			assert.Zero(t, (ts-minTime)%300)
		}
	})

	t.Run("Exactly two days still margined", func(t *testing.T) {
		minTime, maxTime := int64(0), 2*day
		for i := 0; i < 50; i++ {
			assert.Equal(t, day, r.RandomTime(minTime, maxTime))
		}
	})

	t.Run("Short range has no margin", func(t *testing.T) {
		minTime, maxTime := int64(0), day
		seen := map[int64]bool{}
		for i := 0; i < 20000; i++ {
			ts := r.RandomTime(minTime, maxTime)
			assert.GreaterOrEqual(t, ts, minTime)
			assert.LessOrEqual(t, ts, maxTime)
			seen[ts] = true
		}
		assert.True(t, seen[0], "the first bucket should be reachable without a margin")
	})

	t.Run("Single point range", func(t *testing.T) {
		assert.Equal(t, int64(600), r.RandomTime(600, 600))
	})

	t.Run("Deterministic for a seed", func(t *testing.T) {
		a, b := NewRandomTimer(7), NewRandomTimer(7)
		for i := 0; i < 20; i++ {
			assert.Equal(t, a.RandomTime(0, 30*day), b.RandomTime(0, 30*day))
		}
	})
}
