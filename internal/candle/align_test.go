package candle

import (
	"testing"

	"github.com/amirphl/chart-exerciser/internal/tfutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gappySeries has bars at 0, 300, 600 and, after a gap, 3600, 3900.
func gappySeries(t *testing.T) *Series {
	bars := append(flatBars(0, 3), flatBars(3600, 2)...)
	return mustSeries(t, tfutils.M5, bars)
}

func TestAlignBackfill(t *testing.T) {
	s := gappySeries(t)

	tests := []struct {
		name    string
		t       int64
		want    int64
		wantErr error
	}{
		{"Exact match", 300, 300, nil},
		{"Between bars", 301, 600, nil},
		{"Inside gap", 1200, 3600, nil},
		{"Before first", -500, 0, nil},
		{"Last bar", 3900, 3900, nil},
		{"After last", 3901, 0, ErrNoDataAtOrAfter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar, err := s.AlignBackfill(tt.t)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, bar.Time)
		})
	}
}

func TestAlignPad(t *testing.T) {
	s := gappySeries(t)

	tests := []struct {
		name    string
		t       int64
		want    int
		wantErr error
	}{
		{"Exact match", 600, 2, nil},
		{"Between bars", 599, 1, nil},
		{"Inside gap", 2000, 2, nil},
		{"After last", 99999, 4, nil},
		{"First bar", 0, 0, nil},
		{"Before first", -1, 0, ErrNoDataAtOrBefore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := s.AlignPad(tt.t)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, idx)
		})
	}
}

func TestAlignEmptySeries(t *testing.T) {
	s := mustSeries(t, tfutils.M5, nil)
	_, err := s.AlignBackfill(0)
	assert.ErrorIs(t, err, ErrNoDataAtOrAfter)
	_, err = s.AlignPad(0)
	assert.ErrorIs(t, err, ErrNoDataAtOrBefore)
}
