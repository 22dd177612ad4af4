package bar

import "fmt"

// Bar is an immutable, closed-candle OHLCV aggregate. TimestampCloseMs is
// the UTC millisecond timestamp of the bar's close, aligned to an integer
// multiple of its timeframe's duration. All timestamp arithmetic across the
// module is integer milliseconds; floating point is never used for time.
type Bar struct {
	TimestampCloseMs int64
	Open             float64
	High             float64
	Low              float64
	Close            float64
	Volume           float64
}

// Validate checks the invariants spec.md §3 requires of a single bar:
// low <= min(open,close) <= max(open,close) <= high.
func (b Bar) Validate() error {
	lo := b.Open
	if b.Close < lo {
		lo = b.Close
	}
	hi := b.Open
	if b.Close > hi {
		hi = b.Close
	}
	if !(b.Low <= lo && lo <= hi && hi <= b.High) {
		return fmt.Errorf("bar: invariant violated at ts=%d: low=%v high=%v open=%v close=%v",
			b.TimestampCloseMs, b.Low, b.High, b.Open, b.Close)
	}
	return nil
}

// ValidateSeries checks strictly increasing timestamps, expected duration
// between consecutive bars, and the per-bar OHLC invariant across a
// contiguous run of bars for timeframe tf. It does not check for gaps
// against an external required range; that is the preflight gate's job.
func ValidateSeries(bars []Bar, tf Timeframe) error {
	d := DurationMs(tf)
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		prev := bars[i-1]
		if b.TimestampCloseMs <= prev.TimestampCloseMs {
			return fmt.Errorf("bar: non-monotonic timestamps at index %d (%d <= %d)", i, b.TimestampCloseMs, prev.TimestampCloseMs)
		}
		if b.TimestampCloseMs-prev.TimestampCloseMs != d {
			return fmt.Errorf("bar: gap at index %d: expected duration %d, got %d", i, d, b.TimestampCloseMs-prev.TimestampCloseMs)
		}
	}
	return nil
}

// PriceField names a single OHLCV component, used by indicator/structure
// specs to declare their source field.
type PriceField string

const (
	FieldOpen   PriceField = "open"
	FieldHigh   PriceField = "high"
	FieldLow    PriceField = "low"
	FieldClose  PriceField = "close"
	FieldVolume PriceField = "volume"
)

// Value extracts the named field from the bar.
func (b Bar) Value(f PriceField) float64 {
	switch f {
	case FieldOpen:
		return b.Open
	case FieldHigh:
		return b.High
	case FieldLow:
		return b.Low
	case FieldVolume:
		return b.Volume
	default:
		return b.Close
	}
}
