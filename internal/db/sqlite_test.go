package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSource(t *testing.T) {
	ctx := context.Background()
	src, err := OpenSQLite(filepath.Join(t.TempDir(), "bars.db"))
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, src.SaveBars(ctx, "BBB", flatBars(600, 3)))
	require.NoError(t, src.SaveBars(ctx, "AAA", flatBars(0, 5)))

	symbols, err := src.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, symbols)

	bars, err := src.LoadBars(ctx, "BBB")
	require.NoError(t, err)
	assert.Equal(t, flatBars(600, 3), bars)

	t.Run("Upsert replaces rows", func(t *testing.T) {
		changed := flatBars(600, 1)
		changed[0].Close = 99
		require.NoError(t, src.SaveBars(ctx, "BBB", changed))

		bars, err := src.LoadBars(ctx, "BBB")
		require.NoError(t, err)
		require.Len(t, bars, 3)
		assert.Equal(t, 99.0, bars[0].Close)
	})

	t.Run("Feeds the store", func(t *testing.T) {
		store := NewMemory()
		n, err := Load(ctx, store, src)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		base, err := store.Base("AAA")
		require.NoError(t, err)
		assert.Equal(t, 5, base.Len())
	})
}
