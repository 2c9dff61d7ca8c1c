package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirphl/chart-exerciser/internal/candle"
	"github.com/amirphl/chart-exerciser/internal/db/conf"
	_ "github.com/lib/pq"
)

// PostgresSource reads history from the candles table.
type PostgresSource struct {
	db        *sql.DB
	timeframe string
}

// NewPostgresSource reads rows stored under timeframe (e.g. "5m", "1m").
func NewPostgresSource(c conf.Config, timeframe string) *PostgresSource {
	return &PostgresSource{db: c.DB, timeframe: timeframe}
}

func (p *PostgresSource) Symbols(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT symbol
		FROM candles
		WHERE timeframe=$1
		ORDER BY symbol ASC`, p.timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbol rows: %w", err)
	}
	return symbols, nil
}

func (p *PostgresSource) LoadBars(ctx context.Context, symbol string) ([]candle.Bar, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close
		FROM candles
		WHERE symbol=$1 AND timeframe=$2
		ORDER BY timestamp ASC`, symbol, p.timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []candle.Bar
	for rows.Next() {
		var (
			ts time.Time
			b  candle.Bar
		)
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		b.Time = ts.UTC().Unix()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candle rows: %w", err)
	}
	return bars, nil
}

// SaveBars upserts bars for symbol, mainly for seeding and tests.
func (p *PostgresSource) SaveBars(ctx context.Context, symbol string, bars []candle.Bar) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 'import')
		ON CONFLICT (symbol, timeframe, timestamp, source) DO UPDATE SET
			open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low, close=EXCLUDED.close`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, p.timeframe, time.Unix(b.Time, 0).UTC(), b.Open, b.High, b.Low, b.Close); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, err)
			}
			return fmt.Errorf("failed to save bar at index %d for %s: %w", i, symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}
