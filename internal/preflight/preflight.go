// Package preflight implements the preflight gate (spec.md §4.8): before
// a run starts, verify every required (symbol, timeframe) pair has
// sufficient, gap-free, monotonic BarSource coverage for the play's
// warmup+delay requirements, and that every exec-role close maps onto an
// existing 1m bar. Strongly grounded on donor's internal/data/quality.go
// (DataQualityValidator's checkMissingData/checkPriceAnomalies/
// checkOHLCConsistency/checkDuplicates pattern) — the single best
// grounding match in the whole corpus — reworked from a post-hoc
// data-quality score into a pass/fail gate run before the engine starts,
// against millisecond-timestamp bar.Bar instead of time.Time OHLCV.
package preflight

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/atlas-quant/tradecore/internal/barsource"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// FailureKind is a typed preflight failure (spec.md §4.8 Outputs).
type FailureKind string

const (
	FailureMissingData       FailureKind = "MissingData"
	FailureGap               FailureKind = "Gap"
	FailureNonMonotonic      FailureKind = "NonMonotonic"
	FailureMappingInfeasible FailureKind = "MappingInfeasible"
)

// Failure is the first typed problem preflight found.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Symbol  string      `json:"symbol"`
	TF      bar.Timeframe `json:"tf"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("preflight: %s %s %s: %s", f.Kind, f.Symbol, f.TF, f.Message)
}

// PairCoverage records one (symbol, tf) pair's verified range.
type PairCoverage struct {
	TF              bar.Timeframe `json:"tf"`
	RequiredStartMs int64         `json:"required_start_ms"`
	MinTsMs         int64         `json:"min_ts_ms"`
	MaxTsMs         int64         `json:"max_ts_ms"`
	BarCount        int           `json:"bar_count"`
}

// Report is the preflight gate's output (spec.md §4.8 Outputs).
type Report struct {
	Symbol                  string                         `json:"symbol"`
	WindowStartMs           int64                          `json:"window_start_ms"`
	WindowEndMs             int64                          `json:"window_end_ms"`
	WarmupBarsByRole        map[types.Role]int              `json:"warmup_bars_by_role"`
	DelayBarsByRole         map[types.Role]int              `json:"delay_bars_by_role"`
	CoverageByTF            map[bar.Timeframe]PairCoverage  `json:"coverage_by_tf"`
	ExecTo1mMappingFeasible bool                            `json:"exec_to_1m_mapping_feasible"`
	Pass                    bool                            `json:"pass"`
	Failure                 *Failure                        `json:"failure,omitempty"`
}

// gapThresholdMultiple tolerates minor jitter before a missing interval is
// reported as a Gap rather than silently accepted, mirroring the donor's
// "allow 50% variance, flag at 3x" checkMissingData heuristic, simplified
// to a fixed multiple since every timeframe here has a fixed, known
// duration (no need to infer an expected interval from the data itself).
const gapThresholdMultiple = 2

// Options configures one preflight run (spec.md §4.8 step 1/5).
type Options struct {
	SafetyBars      int  // extra bars of cushion beyond computed warmup, default 10
	AutoSync        bool // attempt BarSource.Fill on MissingData/Gap
	MaxHealAttempts int
}

// DefaultOptions matches spec.md §4.8's suggested safety buffer.
func DefaultOptions() Options {
	return Options{SafetyBars: 10, AutoSync: false, MaxHealAttempts: 3}
}

// Run executes the gate for one symbol/window against a loaded Play.
func Run(ctx context.Context, src barsource.BarSource, p types.Play, symbol string, windowStartMs, windowEndMs int64, opts Options, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("preflight").With(zap.String("symbol", symbol), zap.String("play_id", p.ID))

	requiredStartByRole := make(map[types.Role]int64, len(types.Roles))
	// Every role's bars are rolled up from 1m data by
	// featurestate.MultiTFState (spec.md §4.4/§4.10), never fetched
	// directly at the role's own timeframe — so the only (symbol, tf)
	// pair the engine actually needs from the BarSource is 1m. This
	// narrows spec.md §4.8 step 2's "for each required (symbol, tf) pair"
	// to the single mandatory 1m pair, whose required depth must cover
	// the widest of the three roles' warmup requirements converted to an
	// absolute timestamp (a documented simplification of the literal
	// per-role-tf-pair reading, consistent with this engine's rollup
	// architecture — see DESIGN.md).
	min1mRequired := windowStartMs
	for _, role := range types.Roles {
		tf := p.TFMapping.TF(role)
		required := windowStartMs - int64(p.WarmupBarsByRole[role]+opts.SafetyBars)*bar.DurationMs(tf)
		requiredStartByRole[role] = required
		if required < min1mRequired {
			min1mRequired = required
		}
	}
	requiredStartByTF := map[bar.Timeframe]int64{bar.TF1m: min1mRequired}

	rep := &Report{
		Symbol:           symbol,
		WindowStartMs:    windowStartMs,
		WindowEndMs:      windowEndMs,
		WarmupBarsByRole: p.WarmupBarsByRole,
		DelayBarsByRole:  p.DelayBarsByRole,
		CoverageByTF:     make(map[bar.Timeframe]PairCoverage),
	}

	attempts := 0
	for {
		cov, oneMinBars, fail := checkAllPairs(ctx, src, symbol, requiredStartByTF, windowEndMs)
		rep.CoverageByTF = cov
		if fail == nil {
			rep.ExecTo1mMappingFeasible = checkMapping(p, oneMinBars, windowStartMs, windowEndMs)
			if !rep.ExecTo1mMappingFeasible {
				fail = &Failure{Kind: FailureMappingInfeasible, Symbol: symbol, TF: p.TFMapping.TF(p.ExecRole),
					Message: "an exec-role close does not map onto an existing 1m bar"}
			}
		}
		if fail == nil {
			rep.Pass = true
			rep.Failure = nil
			logger.Info("preflight passed")
			return rep, nil
		}
		healable := fail.Kind == FailureMissingData || fail.Kind == FailureGap
		filler, canFill := src.(barsource.Filler)
		if !opts.AutoSync || !canFill || !healable || attempts >= opts.MaxHealAttempts {
			rep.Pass = false
			rep.Failure = fail
			logger.Warn("preflight failed", zap.String("kind", string(fail.Kind)), zap.String("message", fail.Message))
			return rep, nil
		}
		attempts++
		required := requiredStartByTF[fail.TF]
		logger.Info("attempting auto_sync heal", zap.Int("attempt", attempts), zap.String("tf", string(fail.TF)))
		if _, err := filler.Fill(ctx, symbol, fail.TF, required, windowEndMs); err != nil {
			return nil, fmt.Errorf("preflight: auto_sync fill failed: %w", err)
		}
	}
}

func checkAllPairs(ctx context.Context, src barsource.BarSource, symbol string, requiredStartByTF map[bar.Timeframe]int64, windowEndMs int64) (map[bar.Timeframe]PairCoverage, []bar.Bar, *Failure) {
	cov := make(map[bar.Timeframe]PairCoverage, len(requiredStartByTF))
	var oneMinBars []bar.Bar
	for tf, required := range requiredStartByTF {
		minTs, maxTs, ok := src.Coverage(ctx, symbol, tf)
		if !ok || minTs > required || maxTs < windowEndMs {
			return cov, nil, &Failure{Kind: FailureMissingData, Symbol: symbol, TF: tf,
				Message: fmt.Sprintf("coverage does not bracket required range [%d, %d]", required, windowEndMs)}
		}
		bars, err := src.Fetch(ctx, symbol, tf, required, windowEndMs+1)
		if err != nil {
			return cov, nil, &Failure{Kind: FailureMissingData, Symbol: symbol, TF: tf, Message: err.Error()}
		}
		if len(bars) == 0 {
			return cov, nil, &Failure{Kind: FailureMissingData, Symbol: symbol, TF: tf, Message: "fetch returned no bars"}
		}
		if fail := validateSeries(symbol, tf, bars); fail != nil {
			return cov, nil, fail
		}
		cov[tf] = PairCoverage{TF: tf, RequiredStartMs: required, MinTsMs: bars[0].TimestampCloseMs, MaxTsMs: bars[len(bars)-1].TimestampCloseMs, BarCount: len(bars)}
		if tf == bar.TF1m {
			oneMinBars = bars
		}
	}
	return cov, oneMinBars, nil
}

// validateSeries checks strict monotonicity, absence of duplicates, and
// gap-free spacing — the donor's checkChronologicalOrder/checkDuplicates/
// checkMissingData checks, reworked against integer millisecond bar
// closes instead of time.Time.
func validateSeries(symbol string, tf bar.Timeframe, bars []bar.Bar) *Failure {
	d := bar.DurationMs(tf)
	for i := 1; i < len(bars); i++ {
		delta := bars[i].TimestampCloseMs - bars[i-1].TimestampCloseMs
		if delta <= 0 {
			return &Failure{Kind: FailureNonMonotonic, Symbol: symbol, TF: tf,
				Message: fmt.Sprintf("bar %d: timestamp %d <= previous %d", i, bars[i].TimestampCloseMs, bars[i-1].TimestampCloseMs)}
		}
		if delta > d*gapThresholdMultiple {
			return &Failure{Kind: FailureGap, Symbol: symbol, TF: tf,
				Message: fmt.Sprintf("gap of %dms between bar %d and %d (expected %dms)", delta, i-1, i, d)}
		}
	}
	return nil
}

// checkMapping validates spec.md §4.8 step 4: every exec-role close in
// the window must floor onto an existing 1m bar.
func checkMapping(p types.Play, oneMinBars []bar.Bar, windowStartMs, windowEndMs int64) bool {
	present := make(map[int64]bool, len(oneMinBars))
	for _, b := range oneMinBars {
		present[b.TimestampCloseMs] = true
	}
	execTF := p.TFMapping.TF(p.ExecRole)
	execD := bar.DurationMs(execTF)
	start := bar.CeilToClose(windowStartMs, execTF)
	for ts := start; ts <= windowEndMs; ts += execD {
		floored := bar.FloorToClose(ts, bar.TF1m)
		if !present[floored] {
			return false
		}
	}
	return true
}
