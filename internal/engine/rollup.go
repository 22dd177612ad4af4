package engine

import (
	"math"

	"github.com/atlas-quant/tradecore/internal/snapshot"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// accumulateRollup folds one closed 1m bar into the exec-role rollup
// bucket (spec.md §4.10 step 1), mirroring featurestate.roleRollup's
// OHLCV-accumulation pattern, plus sticky zone-touch detection: once a
// zone is touched intrabar anywhere within the current exec bar, it stays
// touched until the bucket is reset at the next exec-role close.
func (e *Engine) accumulateRollup(b1m bar.Bar) {
	if e.rollup.Bars == 0 {
		e.rollup.Open = b1m.Open
	}
	if b1m.High > e.rollup.High {
		e.rollup.High = b1m.High
	}
	if b1m.Low < e.rollup.Low {
		e.rollup.Low = b1m.Low
	}
	e.rollup.Close = b1m.Close
	e.rollup.Volume += b1m.Volume
	e.rollup.Bars++

	e.markZoneTouches(b1m)
}

// markZoneTouches checks every zone-kind structure on the exec role
// against this 1m bar's range and records a sticky touch if they
// intersect. Unformed zones surface NaN bounds (internal/structure's
// nanSentinel), and any comparison against NaN evaluates false, so an
// unformed zone is simply never marked touched without special-casing it
// here.
func (e *Engine) markZoneTouches(b1m bar.Bar) {
	execRole := e.loaded.Play.ExecRole
	specs := e.loaded.Play.Structures[execRole]
	if len(specs) == 0 {
		return
	}
	state := e.loaded.MultiTF.RoleStates()[execRole]
	if state == nil {
		return
	}

	for _, spec := range specs {
		if spec.Kind != types.StructureZone {
			continue
		}
		lowerVal, ok := state.StructureField(spec.ID, "lower")
		if !ok {
			continue
		}
		upperVal, ok := state.StructureField(spec.ID, "upper")
		if !ok {
			continue
		}
		lower, ok := lowerVal.(float64)
		if !ok {
			continue
		}
		upper, ok := upperVal.(float64)
		if !ok {
			continue
		}
		if !(b1m.High >= lower && b1m.Low <= upper) {
			continue // ranges don't overlap; NaN bounds fail both comparisons
		}
		if e.rollup.ZoneTouched == nil {
			e.rollup.ZoneTouched = make(map[string]bool, len(specs))
		}
		e.rollup.ZoneTouched[spec.ID] = true
	}
}

// resetRollup clears the exec-role rollup bucket after it has been
// frozen into a SnapshotView at exec-role close, ready to accumulate the
// next exec bar's 1m bars.
func (e *Engine) resetRollup() {
	e.rollup = snapshot.RollupBucket{High: math.Inf(-1), Low: math.Inf(1)}
}
