package db

import (
	"fmt"
	"sort"
	"sync"

	"github.com/amirphl/chart-exerciser/internal/candle"
	"github.com/amirphl/chart-exerciser/internal/tfutils"
)

type entry struct {
	base *candle.Series

	mu      sync.RWMutex
	derived map[tfutils.Timeframe]*candle.Series
}

// MemoryStore holds, per ticker, the base series and a lazily filled cache
// of derived timeframes. After loading, the cache is its only mutable part.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
	}
}

// Put installs the base series for symbol. It is meant for the load phase.
func (m *MemoryStore) Put(symbol string, bars []candle.Bar) error {
	base, err := candle.NewSeries(tfutils.Base, bars)
	if err != nil {
		return fmt.Errorf("invalid base series for %s: %w", symbol, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[symbol] = &entry{
		base:    base,
		derived: make(map[tfutils.Timeframe]*candle.Series),
	}
	return nil
}

// Symbols returns the loaded tickers in sorted order.
func (m *MemoryStore) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entries))
	for symbol := range m.entries {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryStore) lookup(symbol string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownTicker)
	}
	return e, nil
}

// Base returns the base timeframe series of symbol.
func (m *MemoryStore) Base(symbol string) (*candle.Series, error) {
	e, err := m.lookup(symbol)
	if err != nil {
		return nil, err
	}
	return e.base, nil
}

// GetSeries returns symbol's series at timeframe, resampling from the base
// series and caching the result on first use. Concurrent first calls may
// each compute a result but only the first one installed is ever returned.
func (m *MemoryStore) GetSeries(symbol string, timeframe tfutils.Timeframe) (*candle.Series, error) {
	if !tfutils.IsValidTimeframe(timeframe) || !tfutils.IsDerivable(timeframe) {
		return nil, fmt.Errorf("%s from %s: %w", timeframe, tfutils.Base, tfutils.ErrUnsupportedTimeframe)
	}

	e, err := m.lookup(symbol)
	if err != nil {
		return nil, err
	}
	if timeframe == tfutils.Base {
		return e.base, nil
	}

	e.mu.RLock()
	cached, ok := e.derived[timeframe]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	computed, err := candle.Resample(e.base, timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to resample %s to %s: %w", symbol, timeframe, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.derived[timeframe]; ok {
		return existing, nil
	}
	e.derived[timeframe] = computed
	return computed, nil
}

// CachedSeries returns the number of derived series currently cached.
func (m *MemoryStore) CachedSeries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		e.mu.RLock()
		n += len(e.derived)
		e.mu.RUnlock()
	}
	return n
}
