// Package market
package market

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/amirphl/chart-exerciser/internal/db"
	"gopkg.in/yaml.v3"
)

// TickerMeta is the opaque display metadata of one ticker.
type TickerMeta map[string]any

// TickerInfo is a catalog entry: display metadata plus the time range of the
// ticker's base series.
type TickerInfo struct {
	Symbol  string
	Meta    TickerMeta
	MinDate int64
	MaxDate int64
}

// MarshalJSON flattens the metadata and adds minDate and maxDate.
func (t TickerInfo) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Meta)+2)
	for k, v := range t.Meta {
		out[k] = v
	}
	out["minDate"] = t.MinDate
	out["maxDate"] = t.MaxDate
	return json.Marshal(out)
}

// Catalog maps ticker symbols to their info. It is immutable once built.
type Catalog struct {
	tickers map[string]TickerInfo
	symbols []string
}

// NewCatalog builds a catalog entry for every ticker in store. Metadata is
// optional per ticker; metadata for tickers without price data is dropped.
func NewCatalog(store *db.MemoryStore, meta map[string]TickerMeta) (*Catalog, error) {
	c := &Catalog{tickers: make(map[string]TickerInfo)}
	for _, symbol := range store.Symbols() {
		base, err := store.Base(symbol)
		if err != nil {
			return nil, err
		}
		minDate, maxDate, ok := base.Range()
		if !ok {
			continue
		}
		c.tickers[symbol] = TickerInfo{
			Symbol:  symbol,
			Meta:    meta[symbol],
			MinDate: minDate,
			MaxDate: maxDate,
		}
		c.symbols = append(c.symbols, symbol)
	}
	sort.Strings(c.symbols)
	return c, nil
}

// Get returns the entry for symbol.
func (c *Catalog) Get(symbol string) (TickerInfo, bool) {
	info, ok := c.tickers[symbol]
	return info, ok
}

// Symbols returns the catalogued symbols in sorted order.
func (c *Catalog) Symbols() []string {
	out := make([]string, len(c.symbols))
	copy(out, c.symbols)
	return out
}

// IsWithinRange reports whether min_time <= t <= max_time for symbol.
func (c *Catalog) IsWithinRange(symbol string, t int64) bool {
	info, ok := c.tickers[symbol]
	if !ok {
		return false
	}
	return info.MinDate <= t && t <= info.MaxDate
}

// MarshalJSON encodes the catalog as symbol -> info.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.tickers)
}

// LoadTickerMeta reads the metadata side file, JSON or YAML by extension.
// An empty path yields no metadata.
func LoadTickerMeta(path string) (map[string]TickerMeta, error) {
	if path == "" {
		return map[string]TickerMeta{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ticker info: %w", err)
	}

	meta := make(map[string]TickerMeta)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &meta)
	default:
		err = json.Unmarshal(data, &meta)
	}
	if err != nil {
		return nil, fmt.Errorf("parse ticker info %s: %w", path, err)
	}
	return meta, nil
}
