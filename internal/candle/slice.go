package candle

import (
	"time"

	"github.com/amirphl/chart-exerciser/internal/tfutils"
)

// PrefetchBars is how far past the anchor a window is extended, two hours of M5 bars.
const PrefetchBars = 24

// UntilWindowBars is the default look-back window for the timeframe: the
// bar count of 2*23 hours, floor(2*23*60/5) = 552 at M5.
func UntilWindowBars(tf tfutils.Timeframe) int {
	width := tfutils.GetTimeframeDuration(tf)
	if width <= 0 {
		return 0
	}
	return int(2 * 23 * time.Hour / width)
}

// BarsUntil returns up to windowBars bars ending at the bar endTime aligns
// forward to, plus up to prefetchBars bars after it. An empty slice is
// returned when nothing exists at or after endTime.
func BarsUntil(s *Series, endTime int64, windowBars, prefetchBars int) []Bar {
	i, err := s.BackfillIndex(endTime)
	if err != nil {
		return []Bar{}
	}
	end := i + 1
	start := max(0, end-max(windowBars, 0))
	if prefetchBars > 0 {
		end = min(end+prefetchBars, s.Len())
	}
	return s.Slice(start, end)
}

// BarsAfter returns up to windowBars bars strictly after the bar startTime
// pads back to. An empty slice is returned when startTime precedes the series.
func BarsAfter(s *Series, startTime int64, windowBars int) []Bar {
	i, err := s.AlignPad(startTime)
	if err != nil {
		return []Bar{}
	}
	start := i + 1
	end := min(start+max(windowBars, 0), s.Len())
	return s.Slice(start, end)
}
