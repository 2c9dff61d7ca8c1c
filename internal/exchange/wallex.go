// Package exchange
package exchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/chart-exerciser/internal/candle"
	"github.com/amirphl/chart-exerciser/internal/utils"
	wallex "github.com/wallexchange/wallex-go"
)

// candleClient is the part of the Wallex client used for history import.
type candleClient interface {
	Candles(symbol, resolution string, from, to time.Time) ([]*wallex.Candle, error)
}

// WallexSource imports candle history from Wallex once at startup.
type WallexSource struct {
	client     candleClient
	symbols    []string
	resolution string
	from       time.Time
	to         time.Time

	attempts int
	delay    time.Duration
}

// NewWallexSource fetches 5 minute candles for symbols in [from, to].
func NewWallexSource(apiKey string, symbols []string, from, to time.Time) *WallexSource {
	return newWallexSource(wallex.New(wallex.ClientOptions{APIKey: apiKey}), symbols, from, to)
}

func newWallexSource(client candleClient, symbols []string, from, to time.Time) *WallexSource {
	return &WallexSource{
		client:     client,
		symbols:    symbols,
		resolution: NormalizedTimeframe("5m"),
		from:       from,
		to:         to,
		attempts:   3,
		delay:      2 * time.Second,
	}
}

func (w *WallexSource) Symbols(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(w.symbols))
	for _, s := range w.symbols {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// retry wraps a function with retry logic for transient errors, using exponential backoff and error logging.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	logger := utils.GetLogger("exchange")
	backoff := delay
	for i := 1; i <= attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		logger.Warn().Err(err).Int("attempt", i).Int("attempts", attempts).Dur("backoff", backoff).Msg("Wallex retry attempt failed")
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		// Exponential backoff, but cap at 5 minutes
		if backoff < 5*time.Minute {
			backoff *= 2
			if backoff > 5*time.Minute {
				backoff = 5 * time.Minute
			}
		}
	}
	return errors.New("all retry attempts failed")
}

func (w *WallexSource) LoadBars(ctx context.Context, symbol string) ([]candle.Bar, error) {
	var wallexCandles []*wallex.Candle
	err := retry(ctx, w.attempts, w.delay, func() error {
		var err error
		wallexCandles, err = w.client.Candles(NormalizeSymbol(symbol), w.resolution, w.from, w.to)
		if err != nil {
			return fmt.Errorf("fetching candles: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("FetchCandles %s failed: %w", symbol, err)
	}
	return ToBars(wallexCandles), nil
}

func isFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ToBars converts Wallex candles, dropping entries with unparsable or
// non-finite prices.
func ToBars(wallexCandles []*wallex.Candle) []candle.Bar {
	bars := make([]candle.Bar, 0, len(wallexCandles))
	for _, wc := range wallexCandles {
		if wc == nil {
			continue
		}
		open, err1 := strconv.ParseFloat(string(wc.Open), 64)
		high, err2 := strconv.ParseFloat(string(wc.High), 64)
		low, err3 := strconv.ParseFloat(string(wc.Low), 64)
		close, err4 := strconv.ParseFloat(string(wc.Close), 64)
		if err := errors.Join(err1, err2, err3, err4); err != nil {
			continue
		}
		if !isFinite(open, high, low, close) {
			continue
		}

		bars = append(bars, candle.Bar{
			Time:  wc.Timestamp.UTC().Truncate(time.Minute).Unix(),
			Open:  open,
			High:  high,
			Low:   low,
			Close: close,
		})
	}
	return bars
}

// NormalizeSymbol converts e.g. btc-usdt to BTCUSDT for Wallex API
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}

// NormalizedTimeframe converts e.g. 5m to the resolution Wallex expects
func NormalizedTimeframe(timeframe string) string {
	return strings.TrimSuffix(timeframe, "m")
}
