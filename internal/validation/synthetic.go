// Package validation implements the validation harness of spec.md §4.12:
// math-parity and structure-smoke audits over deterministic seeded bar
// series and a real-data math-parity pass, plus the supplemental walk-forward and Monte Carlo reporting features
// the donor's own BacktestConfig.Validation block carries (see
// SPEC_FULL.md's "Supplemental features" section). It ships no fixed set
// of validation plays: the indicator specs and structure cases audited
// come from the caller (structure smoke defaults to one swing case), and
// no risk or liquidation path is audited here. Every generator here
// is seeded explicitly with math/rand — never the global source — so a
// validation run reproduces byte-for-byte across processes, matching
// the determinism contract the rest of this module honors.
package validation

import (
	"math"
	"math/rand"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

// SyntheticSeries generates a deterministic seeded 1m bar sequence for
// the "math parity" and "structure smoke" audits (spec.md §4.12). The
// walk is a seeded random walk around basePrice with bounded per-bar
// volatility, closed-form and fully reproducible for a given seed.
func SyntheticSeries(n int, seed int64, basePrice, volatility float64, startMs, stepMs int64) []bar.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]bar.Bar, 0, n)
	px := basePrice
	ts := startMs
	for i := 0; i < n; i++ {
		o := px
		delta := (rng.Float64()*2 - 1) * volatility
		c := o + delta
		h := math.Max(o, c) + rng.Float64()*volatility*0.5
		l := math.Min(o, c) - rng.Float64()*volatility*0.5
		bars = append(bars, bar.Bar{
			TimestampCloseMs: ts,
			Open:             o,
			High:             h,
			Low:              l,
			Close:            c,
			Volume:           100 + rng.Float64()*10,
		})
		px = c
		ts += stepMs
	}
	return bars
}

// ZigZagSeries generates a deterministic sawtooth sequence of amplitude
// swings — exercising the swing-pivot detector's high/low confirmation
// with a known, hand-checkable pivot sequence rather than random noise
// (spec.md §4.12's "canned inputs" for the structure smoke audit).
func ZigZagSeries(legs, barsPerLeg int, basePrice, amplitude float64, startMs, stepMs int64) []bar.Bar {
	bars := make([]bar.Bar, 0, legs*barsPerLeg)
	px := basePrice
	ts := startMs
	up := true
	for leg := 0; leg < legs; leg++ {
		step := amplitude / float64(barsPerLeg)
		if !up {
			step = -step
		}
		for i := 0; i < barsPerLeg; i++ {
			// Flat bars (open = high = low = close): a bar spanning
			// [prev close, close] would give the two bars around each turn
			// equal highs/lows, and a swing pivot needs a strict extreme.
			c := px + step
			bars = append(bars, bar.Bar{TimestampCloseMs: ts, Open: c, High: c, Low: c, Close: c, Volume: 100})
			px = c
			ts += stepMs
		}
		up = !up
	}
	return bars
}
