// Package feature implements the closed indicator registry (spec.md §4.2):
// one incremental state machine per indicator kind, each consuming one
// closed bar at a time and emitting NaN until its declared warmup count is
// satisfied. Internal arithmetic is float64, not decimal.Decimal, so that
// incremental output can be held to the module's numeric-parity contract
// against a vectorized reference (see DESIGN.md, pkg/utils entry).
package feature

import (
	"fmt"
	"math"

	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// Indicator is one running instance of a registered indicator kind.
type Indicator interface {
	// Update consumes the next closed bar and advances internal state.
	Update(b bar.Bar)
	// Values returns the current output keys mapped to their values. Keys
	// not yet warm hold math.NaN().
	Values() map[string]float64
	// Warmup is the number of Update calls required before outputs are
	// considered valid (spec.md §4.2).
	Warmup() int
	// Count is the number of Update calls observed so far.
	Count() int
}

// base centralizes the warmup-gating bar counter every indicator embeds.
type base struct {
	n      int
	warmup int
}

func (b *base) tick() { b.n++ }

func (b *base) Warmup() int { return b.warmup }
func (b *base) Count() int  { return b.n }

func (b *base) ready() bool { return b.n >= b.warmup }

func nanIf(warm bool, v float64) float64 {
	if !warm {
		return math.NaN()
	}
	return v
}

// ringBuffer is a fixed-capacity float64 circular buffer used by the
// windowed indicators (sma, stoch, bbands, cci, ...).
type ringBuffer struct {
	data []float64
	pos  int
	full bool
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{data: make([]float64, size)}
}

func (r *ringBuffer) push(v float64) {
	r.data[r.pos] = v
	r.pos = (r.pos + 1) % len(r.data)
	if r.pos == 0 {
		r.full = true
	}
}

func (r *ringBuffer) len() int {
	if r.full {
		return len(r.data)
	}
	return r.pos
}

func (r *ringBuffer) values() []float64 {
	n := r.len()
	out := make([]float64, n)
	if !r.full {
		copy(out, r.data[:n])
		return out
	}
	// oldest-first order starting at r.pos
	for i := 0; i < n; i++ {
		out[i] = r.data[(r.pos+i)%n]
	}
	return out
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return sum(xs) / float64(len(xs))
}

func paramInt(params map[string]float64, key string, def int) int {
	if v, ok := params[key]; ok {
		return int(v)
	}
	return def
}

func paramFloat(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

// requireIntParam returns an error if key is absent, used for parameters
// with no sane default (e.g. every MA length).
func requireIntParam(params map[string]float64, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("feature: missing required param %q", key)
	}
	return int(v), nil
}

// New constructs the Indicator for spec, dispatching on spec.Kind. Callers
// (internal/play at load time, internal/feature's own registry tests) get
// a load-time error for unknown kinds or missing/invalid params — never a
// runtime error, per spec.md §4.6's "unknown fields fail load" posture
// extended to indicator construction.
func New(spec types.FeatureSpec) (Indicator, error) {
	switch spec.Kind {
	case types.KindSMA:
		return newSMA(spec.Params)
	case types.KindEMA:
		return newEMA(spec.Params, 3)
	case types.KindWMA:
		return newWMA(spec.Params)
	case types.KindDEMA:
		return newDEMA(spec.Params)
	case types.KindTEMA:
		return newTEMA(spec.Params)
	case types.KindTRIMA:
		return newTRIMA(spec.Params)
	case types.KindKAMA:
		return newKAMA(spec.Params)
	case types.KindZLMA:
		return newZLMA(spec.Params)
	case types.KindALMA:
		return newALMA(spec.Params)
	case types.KindRSI:
		return newRSI(spec.Params)
	case types.KindATR:
		return newATR(spec.Params, false)
	case types.KindNATR:
		return newATR(spec.Params, true)
	case types.KindMACD:
		return newMACD(spec.Params)
	case types.KindBBands:
		return newBBands(spec.Params)
	case types.KindStoch:
		return newStoch(spec.Params)
	case types.KindStochRSI:
		return newStochRSI(spec.Params)
	case types.KindCCI:
		return newCCI(spec.Params)
	case types.KindWillR:
		return newWillR(spec.Params)
	case types.KindCMO:
		return newCMO(spec.Params)
	case types.KindMOM:
		return newMOM(spec.Params)
	case types.KindROC:
		return newROC(spec.Params)
	case types.KindMFI:
		return newMFI(spec.Params)
	case types.KindUO:
		return newUO(spec.Params)
	case types.KindADX:
		return newADX(spec.Params)
	case types.KindVortex:
		return newVortex(spec.Params)
	case types.KindOBV:
		return newOBV(spec.Params)
	case types.KindCMF:
		return newCMF(spec.Params)
	case types.KindVWAP:
		return newVWAP(spec.Params)
	case types.KindLinReg:
		return newLinReg(spec.Params)
	case types.KindMidprice:
		return newMidprice(spec.Params)
	case types.KindOHLC4:
		return newOHLC4(spec.Params)
	default:
		return nil, fmt.Errorf("feature: unregistered indicator kind %q", spec.Kind)
	}
}

// OutputKeys returns the full output key set for kind, qualified by id as
// spec.md §3 describes ("for multi-output, ids are suffixed, e.g.
// macd.signal"). Used by internal/play to register field paths before any
// bar has been seen.
func OutputKeys(id string, kind types.IndicatorKind) []string {
	suffixes := outputSuffixes(kind)
	if len(suffixes) == 1 && suffixes[0] == "" {
		return []string{id}
	}
	keys := make([]string, len(suffixes))
	for i, s := range suffixes {
		keys[i] = id + "." + s
	}
	return keys
}

func outputSuffixes(kind types.IndicatorKind) []string {
	switch kind {
	case types.KindMACD:
		return []string{"macd", "signal", "hist"}
	case types.KindBBands:
		return []string{"upper", "middle", "lower"}
	case types.KindStoch, types.KindStochRSI:
		return []string{"k", "d"}
	case types.KindADX:
		return []string{"adx", "plus_di", "minus_di"}
	case types.KindVortex:
		return []string{"plus_vi", "minus_vi"}
	default:
		return []string{""}
	}
}

// Warmup returns the warmup bar count for kind given params, without
// constructing an instance. Used by internal/play to compute
// warmup_bars_by_role before the engine starts.
func Warmup(kind types.IndicatorKind, params map[string]float64) (int, error) {
	ind, err := New(types.FeatureSpec{Kind: kind, Params: params})
	if err != nil {
		return 0, err
	}
	return ind.Warmup(), nil
}
