package tfutils

import (
	"errors"
	"time"
)

// Timeframe identifies a bar bucket width, e.g. "M5".
type Timeframe string

const (
	M1 Timeframe = "M1"
	M5 Timeframe = "M5"
	H1 Timeframe = "H1"
)

// Base is the timeframe raw history is loaded at.
const Base = M5

var ErrUnsupportedTimeframe = errors.New("unsupported timeframe")

// ParseTimeframe parses a timeframe id (e.g., "M5", "H1")
func ParseTimeframe(s string) (Timeframe, error) {
	for _, tf := range GetSupportedTimeframes() {
		if string(tf) == s {
			return tf, nil
		}
	}
	return "", ErrUnsupportedTimeframe
}

// TimeframeMinutes returns the bucket width in minutes, 0 for unknown ids
func TimeframeMinutes(tf Timeframe) int {
	switch tf {
	case M1:
		return 1
	case M5:
		return 5
	case H1:
		return 60
	default:
		return 0
	}
}

// GetTimeframeDuration returns the duration for a given timeframe
func GetTimeframeDuration(tf Timeframe) time.Duration {
	return time.Duration(TimeframeMinutes(tf)) * time.Minute
}

// GetTimeframeSeconds returns the bucket width in seconds
func GetTimeframeSeconds(tf Timeframe) int64 {
	return int64(TimeframeMinutes(tf)) * 60
}

// GetSupportedTimeframes returns all recognized timeframes
func GetSupportedTimeframes() []Timeframe {
	return []Timeframe{M1, M5, H1}
}

// IsValidTimeframe checks if a timeframe is recognized
func IsValidTimeframe(tf Timeframe) bool {
	return TimeframeMinutes(tf) > 0
}

// IsDerivable reports whether tf can be built from the base timeframe by
// aggregation. Finer timeframes than the base can never be derived.
func IsDerivable(tf Timeframe) bool {
	m := TimeframeMinutes(tf)
	b := TimeframeMinutes(Base)
	return m >= b && m%b == 0
}
