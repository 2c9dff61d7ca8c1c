// Package candle
package candle

import (
	"errors"
	"fmt"

	"github.com/amirphl/chart-exerciser/internal/tfutils"
)

// Bar is one OHLC record. Time is UTC epoch seconds.
type Bar struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Series is an ordered run of bars for one ticker at one timeframe.
// Timestamps are strictly increasing; gaps are allowed. A Series is never
// mutated after construction.
type Series struct {
	timeframe tfutils.Timeframe
	bars      []Bar
}

// NewSeries copies bars into a new Series after checking their ordering.
func NewSeries(timeframe tfutils.Timeframe, bars []Bar) (*Series, error) {
	if !tfutils.IsValidTimeframe(timeframe) {
		return nil, fmt.Errorf("invalid timeframe %q: %w", timeframe, tfutils.ErrUnsupportedTimeframe)
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].Time <= bars[i-1].Time {
			return nil, fmt.Errorf("bar at index %d has time %d, not after previous %d", i, bars[i].Time, bars[i-1].Time)
		}
	}
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	return &Series{timeframe: timeframe, bars: cp}, nil
}

// Timeframe returns the bucket width of the series.
func (s *Series) Timeframe() tfutils.Timeframe { return s.timeframe }

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.bars) }

// At returns the bar at index i.
func (s *Series) At(i int) Bar { return s.bars[i] }

// Bars returns a copy of all bars.
func (s *Series) Bars() []Bar { return s.Slice(0, len(s.bars)) }

// Slice returns a copy of the bars in [start, end).
func (s *Series) Slice(start, end int) []Bar {
	out := make([]Bar, end-start)
	copy(out, s.bars[start:end])
	return out
}

// Range returns the first and last bar times. ok is false for an empty series.
func (s *Series) Range() (minTime, maxTime int64, ok bool) {
	if len(s.bars) == 0 {
		return 0, 0, false
	}
	return s.bars[0].Time, s.bars[len(s.bars)-1].Time, true
}

// ErrInvalidBucket is returned for a non-positive resample width.
var ErrInvalidBucket = errors.New("bucket width must be positive")

// Resample aggregates s into epoch-aligned buckets of the target timeframe.
func Resample(s *Series, timeframe tfutils.Timeframe) (*Series, error) {
	minutes := tfutils.TimeframeMinutes(timeframe)
	if minutes <= 0 {
		return nil, fmt.Errorf("invalid timeframe %q: %w", timeframe, tfutils.ErrUnsupportedTimeframe)
	}
	bars, err := ResampleBars(s.bars, minutes)
	if err != nil {
		return nil, err
	}
	return &Series{timeframe: timeframe, bars: bars}, nil
}

// ResampleBars aggregates time-ordered bars into buckets of bucketMinutes.
// Bucket boundary = floor(time / width) * width. For each non-empty bucket
// open is the first open, high the max high, low the min low and close the
// last close. Empty buckets produce no bar.
func ResampleBars(bars []Bar, bucketMinutes int) ([]Bar, error) {
	if bucketMinutes <= 0 {
		return nil, ErrInvalidBucket
	}
	width := int64(bucketMinutes) * 60

	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		bucket := floorDiv(b.Time, width) * width
		if n := len(out); n > 0 && out[n-1].Time == bucket {
			agg := &out[n-1]
			if b.High > agg.High {
				agg.High = b.High
			}
			if b.Low < agg.Low {
				agg.Low = b.Low
			}
			agg.Close = b.Close
			continue
		}
		if n := len(out); n > 0 && bucket < out[n-1].Time {
			return nil, fmt.Errorf("bar at time %d is out of order", b.Time)
		}
		out = append(out, Bar{Time: bucket, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close})
	}
	return out, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
