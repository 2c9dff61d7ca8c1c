package candle

import (
	"math/rand"
	"sync"
	"time"

	"github.com/amirphl/chart-exerciser/internal/tfutils"
)

const randomMargin = int64(24 * 60 * 60)

// randomStep keeps random anchors on the base timeframe grid.
var randomStep = tfutils.GetTimeframeSeconds(tfutils.Base)

// RandomTimer picks start times for a fresh chart view. It is safe for
// concurrent use.
type RandomTimer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomTimer seeds the generator; seed 0 uses the wall clock.
func NewRandomTimer(seed int64) *RandomTimer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomTimer{rnd: rand.New(rand.NewSource(seed))}
}

// RandomTime draws a time in [minTime, maxTime] on a 5-minute grid from
// minTime. One day is kept clear of each edge when the range spans at least
// two days. The result need not hit an existing bar.
func (r *RandomTimer) RandomTime(minTime, maxTime int64) int64 {
	margin := randomMargin
	if maxTime-minTime < 2*randomMargin {
		margin = 0
	}
	start := minTime + margin
	end := maxTime - margin

	steps := (end - start + randomStep - 1) / randomStep
	if steps <= 0 {
		return start
	}

	r.mu.Lock()
	k := r.rnd.Int63n(steps)
	r.mu.Unlock()
	return start + k*randomStep
}
