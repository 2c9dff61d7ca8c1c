package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amirphl/chart-exerciser/internal/candle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBarTime(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1600000200", 1600000200, false},
		{"1970-01-01 00:05:00", 300, false},
		{"1970-01-01 01:00", 3600, false},
		{"1970.01.01 00:10", 600, false},
		{"1970-01-01T00:15:00Z", 900, false},
		{" 1970-01-01 00:05:00 ", 300, false},
		{"yesterday", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBarTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadBarsCSV(t *testing.T) {
	t.Run("With and without volume", func(t *testing.T) {
		in := "1970-01-01 00:00:00,1,2,0.5,1.5,100\n1970-01-01 00:01:00,1.5,3,1,2.5\n\n"
		bars, err := ReadBarsCSV(strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, []candle.Bar{
			{Time: 0, Open: 1, High: 2, Low: 0.5, Close: 1.5},
			{Time: 60, Open: 1.5, High: 3, Low: 1, Close: 2.5},
		}, bars)
	})

	t.Run("Too few fields", func(t *testing.T) {
		_, err := ReadBarsCSV(strings.NewReader("1970-01-01 00:00:00,1,2\n"))
		assert.Error(t, err)
	})

	t.Run("Non-finite prices are skipped", func(t *testing.T) {
		in := "0,1,1,1,1\n300,NaN,1,1,1\n600,1,Inf,1,1\n900,1,1,-Inf,1\n1200,2,2,2,2\n"
		bars, err := ReadBarsCSV(strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, []candle.Bar{
			{Time: 0, Open: 1, High: 1, Low: 1, Close: 1},
			{Time: 1200, Open: 2, High: 2, Low: 2, Close: 2},
		}, bars)
	})

	t.Run("Bad price", func(t *testing.T) {
		_, err := ReadBarsCSV(strings.NewReader("0,1,x,0.5,1.5\n"))
		assert.Error(t, err)
	})
}

func TestCSVSource_Load(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	// One-minute rows, out of order and with a duplicate minute.
	write("EURUSD.txt", strings.Join([]string{
		"1970-01-01 00:06:00,5,6,4,5.5,1",
		"1970-01-01 00:00:00,1,2,0.5,1.5,1",
		"1970-01-01 00:01:00,1.5,3,1,2.5,1",
		"1970-01-01 00:01:00,1.5,3,1,2.5,1",
	}, "\n"))
	write("BROKEN.txt", "not,a,bar\n")
	write("notes.md", "ignored")

	src := NewCSVSource(dir)
	symbols, err := src.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BROKEN", "EURUSD"}, symbols)

	store := NewMemory()
	n, err := Load(context.Background(), store, src)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"EURUSD"}, store.Symbols())

	base, err := store.Base("EURUSD")
	require.NoError(t, err)
	assert.Equal(t, []candle.Bar{
		{Time: 0, Open: 1, High: 3, Low: 0.5, Close: 2.5},
		{Time: 300, Open: 5, High: 6, Low: 4, Close: 5.5},
	}, base.Bars())
}

func TestCSVSource_MissingFile(t *testing.T) {
	_, err := NewCSVSource(t.TempDir()).LoadBars(context.Background(), "NOPE")
	assert.Error(t, err)
}
