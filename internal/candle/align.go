package candle

import (
	"errors"
	"sort"
)

var (
	// ErrNoDataAtOrAfter means the time is past the last bar.
	ErrNoDataAtOrAfter = errors.New("no data at or after time")
	// ErrNoDataAtOrBefore means the time precedes the first bar.
	ErrNoDataAtOrBefore = errors.New("no data at or before time")
)

// BackfillIndex returns the index of the first bar with time >= t.
func (s *Series) BackfillIndex(t int64) (int, error) {
	i := sort.Search(len(s.bars), func(i int) bool { return s.bars[i].Time >= t })
	if i == len(s.bars) {
		return 0, ErrNoDataAtOrAfter
	}
	return i, nil
}

// AlignBackfill rounds t forward to the next available bar.
func (s *Series) AlignBackfill(t int64) (Bar, error) {
	i, err := s.BackfillIndex(t)
	if err != nil {
		return Bar{}, err
	}
	return s.bars[i], nil
}

// AlignPad returns the index of the last bar with time <= t.
func (s *Series) AlignPad(t int64) (int, error) {
	i := sort.Search(len(s.bars), func(i int) bool { return s.bars[i].Time > t }) - 1
	if i < 0 {
		return 0, ErrNoDataAtOrBefore
	}
	return i, nil
}
