// Package db
package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/amirphl/chart-exerciser/internal/candle"
	"github.com/amirphl/chart-exerciser/internal/tfutils"
	"github.com/amirphl/chart-exerciser/internal/utils"
)

var ErrUnknownTicker = errors.New("unknown ticker")

// Source supplies raw price history. Bars may be at any resolution up to
// the base timeframe and need not be ordered.
type Source interface {
	Symbols(ctx context.Context) ([]string, error)
	LoadBars(ctx context.Context, symbol string) ([]candle.Bar, error)
}

// Load reads every symbol of src into store at the base timeframe. A symbol
// that fails to load is logged and skipped. It returns the number of
// symbols loaded.
func Load(ctx context.Context, store *MemoryStore, src Source) (int, error) {
	logger := utils.GetLogger("loader")

	symbols, err := src.Symbols(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list symbols: %w", err)
	}

	loaded := 0
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}

		raw, err := src.LoadBars(ctx, symbol)
		if err != nil {
			logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to load price data")
			continue
		}
		bars, err := NormalizeBars(raw)
		if err != nil {
			logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to resample price data")
			continue
		}
		if len(bars) == 0 {
			logger.Warn().Str("symbol", symbol).Msg("No price data, skipping")
			continue
		}
		if err := store.Put(symbol, bars); err != nil {
			logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to store price data")
			continue
		}

		logger.Info().Str("symbol", symbol).Int("bars", len(bars)).Msg("Loaded price data")
		loaded++
	}
	return loaded, nil
}

// NormalizeBars orders raw bars by time and aggregates them to the base
// timeframe, merging duplicates.
func NormalizeBars(raw []candle.Bar) ([]candle.Bar, error) {
	sorted := make([]candle.Bar, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})
	return candle.ResampleBars(sorted, tfutils.TimeframeMinutes(tfutils.Base))
}

// BarSaver persists base bars, e.g. SQLiteSource or PostgresSource.
type BarSaver interface {
	SaveBars(ctx context.Context, symbol string, bars []candle.Bar) error
}

// Snapshot writes every base series of store to dst, so a slow import can
// be served from a local database next time.
func Snapshot(ctx context.Context, store *MemoryStore, dst BarSaver) error {
	for _, symbol := range store.Symbols() {
		base, err := store.Base(symbol)
		if err != nil {
			return err
		}
		if err := dst.SaveBars(ctx, symbol, base.Bars()); err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", symbol, err)
		}
	}
	return nil
}
