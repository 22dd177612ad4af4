// Monte Carlo trade resampling (SPEC_FULL.md's supplemental-features
// section): bootstrap resampling of a finished run's realized trade
// sequence to estimate a return/drawdown distribution. Consolidates the
// donor's two implementations — internal/backtester/montecarlo.go
// (simple, percentile-only) and internal/montecarlo/simulator.go
// (richer Distribution/confidence-interval machinery, parallel workers,
// parameter sensitivity) — into one: this package keeps the first's
// tight percentile/ruin-probability core, since that is all
// SPEC_FULL.md's reporting-only scope calls for, but switches its RNG to
// an always-explicit seed (never time.Now().UnixNano(), which the donor
// used as its default) so a validation run is reproducible. The richer
// Distribution/ParameterSensitivity/worker-pool-parallel machinery in
// internal/montecarlo/simulator.go has no caller under SPEC_FULL.md's
// scope (this module never tunes strategy parameters) and is dropped —
// see DESIGN.md.
package validation

import (
	"math"
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/pkg/types"
)

// MonteCarloConfig configures a resampling run. Seed must be supplied by
// the caller (e.g. derived from the Play hash and run window) so results
// reproduce across processes — there is no time-based fallback.
type MonteCarloConfig struct {
	Iterations int
	Seed       int64
	// RuinFraction is the fraction of starting equity below which a
	// simulated path counts as ruin (donor's montecarlo.go uses 0.5).
	RuinFraction float64
}

// DefaultMonteCarloConfig mirrors the donor's montecarlo.go defaults
// (1000 iterations, 50% ruin threshold), with an explicit required seed.
func DefaultMonteCarloConfig(seed int64) MonteCarloConfig {
	return MonteCarloConfig{Iterations: 1000, Seed: seed, RuinFraction: 0.5}
}

// MonteCarloResult is one resampling run's distribution summary.
type MonteCarloResult struct {
	Iterations      int               `json:"iterations"`
	MedianReturn    decimal.Decimal   `json:"median_return"`
	P5Return        decimal.Decimal   `json:"p5_return"`
	P95Return       decimal.Decimal   `json:"p95_return"`
	ProbabilityRuin decimal.Decimal   `json:"probability_ruin"`
	MaxDrawdownP95  decimal.Decimal   `json:"max_drawdown_p95"`
}

// RunMonteCarlo resamples trades' net PnL (as a fraction of
// initialEquity per trade) with replacement, cfg.Iterations times, and
// summarizes the resulting return/drawdown distribution.
func RunMonteCarlo(trades []types.Trade, initialEquity decimal.Decimal, cfg MonteCarloConfig) MonteCarloResult {
	if len(trades) == 0 || initialEquity.IsZero() {
		return MonteCarloResult{Iterations: 0}
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1000
	}
	if cfg.RuinFraction <= 0 {
		cfg.RuinFraction = 0.5
	}

	initial, _ := initialEquity.Float64()
	returns := make([]float64, len(trades))
	for i, t := range trades {
		pnl, _ := t.NetPnL.Float64()
		returns[i] = pnl / initial
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	simReturns := make([]float64, cfg.Iterations)
	maxDrawdowns := make([]float64, cfg.Iterations)
	ruinCount := 0

	for i := 0; i < cfg.Iterations; i++ {
		resampled := bootstrapResample(returns, rng)
		totalReturn, maxDD, ruined := simulatePath(resampled, cfg.RuinFraction)
		simReturns[i] = totalReturn
		maxDrawdowns[i] = maxDD
		if ruined {
			ruinCount++
		}
	}

	sort.Float64s(simReturns)
	sort.Float64s(maxDrawdowns)

	return MonteCarloResult{
		Iterations:      cfg.Iterations,
		MedianReturn:    decimal.NewFromFloat(percentile(simReturns, 50)),
		P5Return:        decimal.NewFromFloat(percentile(simReturns, 5)),
		P95Return:       decimal.NewFromFloat(percentile(simReturns, 95)),
		ProbabilityRuin: decimal.NewFromFloat(float64(ruinCount) / float64(cfg.Iterations)),
		MaxDrawdownP95:  decimal.NewFromFloat(percentile(maxDrawdowns, 95)),
	}
}

// bootstrapResample draws len(returns) samples with replacement, the
// donor's "bootstrap sampling" approach, using the caller's seeded rng.
func bootstrapResample(returns []float64, rng *rand.Rand) []float64 {
	n := len(returns)
	out := make([]float64, n)
	for i := range out {
		out[i] = returns[rng.Intn(n)]
	}
	return out
}

// simulatePath walks one resampled return sequence starting at equity
// 1.0, tracking peak-to-trough drawdown and flagging ruin once equity
// falls to or below ruinFraction of the start.
func simulatePath(returns []float64, ruinFraction float64) (totalReturn, maxDrawdown float64, ruined bool) {
	equity := 1.0
	peak := equity
	maxDD := 0.0

	for _, r := range returns {
		equity += r
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
		if equity <= ruinFraction {
			return equity - 1.0, maxDD, true
		}
	}
	return equity - 1.0, maxDD, false
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper {
		return sorted[lower]
	}
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
