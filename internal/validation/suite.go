// Validation suite (spec.md §4.12): the top-level entry point tying the
// closed set of deterministic audits together — math parity, structure
// smoke, a real-data verification pass, plus the supplemental
// walk-forward and Monte Carlo reports — into one Report. Grounded on the
// donor's BacktestConfig.Validation block (internal/backtester/engine.go),
// which runs its own fixed battery of checks before a backtest is
// considered trustworthy; this package generalizes that into a reusable
// Suite over this module's Play/Engine types.
package validation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/atlas-quant/tradecore/internal/barsource"
	"github.com/atlas-quant/tradecore/internal/play"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// Config selects which audits a Suite runs and with what parameters. All
// fields are optional; a zero-value Config runs only the structure smoke
// audit (DefaultSwingCase). Math parity runs on synthetic bars whenever
// FeatureSpecs is non-empty; neither needs caller-supplied bar data.
type Config struct {
	FeatureSpecs []types.FeatureSpec
	SyntheticBars int // math parity series length; defaults to 500

	StructureCases []StructureSmokeCase // defaults to []StructureSmokeCase{DefaultSwingCase()}

	// RealData, when non-nil, runs the real-data verification audit: the
	// suite's math-parity check re-runs against an actual historical
	// window instead of synthetic bars, confirming the audited indicators
	// don't diverge on real market data's edge cases
	// (gaps, flat bars, thin volume) that a synthetic walk rarely produces.
	RealData *RealDataConfig

	WalkForward *WalkForwardInput
	MonteCarlo  *MonteCarloInput
}

// RealDataConfig points the real-data audit at a historical window.
type RealDataConfig struct {
	Source        barsource.BarSource
	Symbol        string
	Timeframe     string
	StartMs       int64
	EndMs         int64
}

// WalkForwardInput supplies what RunWalkForward needs beyond a Config.
type WalkForwardInput struct {
	Loaded        *play.Loaded
	Source        barsource.BarSource
	Symbol        string
	WindowStartMs int64
	WindowEndMs   int64
	WalkForwardConfig
}

// MonteCarloInput supplies what RunMonteCarlo needs beyond a Config.
type MonteCarloInput struct {
	Trades        []types.Trade
	InitialEquity decimal.Decimal
	MonteCarloConfig
}

// Report is the suite's combined outcome across every audit that ran.
type Report struct {
	MathParity      *MathParityReport      `json:"math_parity,omitempty"`
	StructureSmoke  *StructureSmokeReport  `json:"structure_smoke,omitempty"`
	RealDataParity  *MathParityReport      `json:"real_data_parity,omitempty"`
	WalkForward     *WalkForwardResult     `json:"walk_forward,omitempty"`
	MonteCarlo      *MonteCarloResult      `json:"monte_carlo,omitempty"`
	Pass            bool                   `json:"pass"`
}

// Run executes every audit cfg names and aggregates Pass across all of
// them (an audit that never ran — Trades/WalkForward unset — doesn't
// count against the aggregate).
// Run executes every audit cfg names. Audits are independent of each
// other's failures — a math-parity error doesn't prevent the
// structure-smoke or walk-forward audits from running — so Run collects
// every audit's error with multierr rather than aborting at the first
// one, giving a caller the complete picture of what's wrong with a Play
// in one pass instead of a fix-one-rerun-repeat loop.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	rep := &Report{Pass: true}
	var errs error

	if len(cfg.FeatureSpecs) > 0 {
		n := cfg.SyntheticBars
		if n <= 0 {
			n = 500
		}
		bars := SyntheticSeries(n, 1, 100, 1.5, 0, 60_000)
		mp, err := RunMathParity(cfg.FeatureSpecs, bars)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("validation: suite math parity: %w", err))
		} else {
			rep.MathParity = mp
			rep.Pass = rep.Pass && mp.Pass
		}
	}

	cases := cfg.StructureCases
	if cases == nil {
		cases = []StructureSmokeCase{DefaultSwingCase()}
	}
	if len(cases) > 0 {
		ss, err := RunStructureSmoke(cases)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("validation: suite structure smoke: %w", err))
		} else {
			rep.StructureSmoke = ss
			rep.Pass = rep.Pass && ss.Pass
		}
	}

	if cfg.RealData != nil && len(cfg.FeatureSpecs) > 0 {
		rd := cfg.RealData
		bars, err := rd.Source.Fetch(ctx, rd.Symbol, tfOrDefault(rd.Timeframe), rd.StartMs, rd.EndMs)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("validation: suite real-data fetch: %w", err))
		} else if mp, err := RunMathParity(cfg.FeatureSpecs, bars); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("validation: suite real-data parity: %w", err))
		} else {
			rep.RealDataParity = mp
			rep.Pass = rep.Pass && mp.Pass
		}
	}

	if cfg.WalkForward != nil {
		wf := cfg.WalkForward
		result, err := RunWalkForward(ctx, wf.Loaded, wf.Source, wf.Symbol, wf.WindowStartMs, wf.WindowEndMs, wf.WalkForwardConfig)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("validation: suite walk-forward: %w", err))
		} else {
			rep.WalkForward = result
		}
	}

	if cfg.MonteCarlo != nil {
		mc := cfg.MonteCarlo
		result := RunMonteCarlo(mc.Trades, mc.InitialEquity, mc.MonteCarloConfig)
		rep.MonteCarlo = &result
	}

	if errs != nil {
		rep.Pass = false
		return rep, errs
	}
	return rep, nil
}

func tfOrDefault(tf string) bar.Timeframe {
	if tf == "" {
		return bar.TF1m
	}
	return bar.Timeframe(tf)
}
