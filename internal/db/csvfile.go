package db

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/chart-exerciser/internal/candle"
)

// CSVSource reads <SYMBOL>.txt files from a directory. Rows are
// time,open,high,low,close[,volume] without a header; volume is ignored.
type CSVSource struct {
	Dir string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

func (s *CSVSource) Symbols(ctx context.Context) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.Dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.Dir, err)
	}
	sort.Strings(files)

	symbols := make([]string, 0, len(files))
	for _, f := range files {
		symbols = append(symbols, strings.TrimSuffix(filepath.Base(f), filepath.Ext(f)))
	}
	return symbols, nil
}

func (s *CSVSource) LoadBars(ctx context.Context, symbol string) ([]candle.Bar, error) {
	path := filepath.Join(s.Dir, symbol+".txt")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	bars, err := ReadBarsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadBarsCSV parses headerless time,open,high,low,close rows.
func ReadBarsCSV(r io.Reader) ([]candle.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var bars []candle.Bar
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < 5 {
			return nil, fmt.Errorf("line %d: expected at least 5 fields, got %d", line, len(record))
		}

		ts, err := ParseBarTime(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var prices [4]float64
		for i := range prices {
			prices[i], err = strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", line, i+2, err)
			}
		}
		if !finite(prices[:]...) {
			continue
		}

		bars = append(bars, candle.Bar{
			Time:  ts,
			Open:  prices[0],
			High:  prices[1],
			Low:   prices[2],
			Close: prices[3],
		})
	}
	return bars, nil
}

var barTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseBarTime accepts epoch seconds or one of the common date-time layouts,
// interpreted as UTC.
func ParseBarTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	for _, layout := range barTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized time %q", s)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
