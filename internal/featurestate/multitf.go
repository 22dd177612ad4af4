package featurestate

import (
	"math"

	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// roleRollup accumulates 1m bars into the current, not-yet-closed bar of
// a role's own timeframe.
type roleRollup struct {
	tf      bar.Timeframe
	open    float64
	high    float64
	low     float64
	close   float64
	volume  float64
	bars    int
	started bool
}

func newRoleRollup(tf bar.Timeframe) *roleRollup {
	return &roleRollup{tf: tf, high: math.Inf(-1), low: math.Inf(1)}
}

func (r *roleRollup) accumulate(b1m bar.Bar) {
	if !r.started {
		r.open = b1m.Open
		r.started = true
	}
	if b1m.High > r.high {
		r.high = b1m.High
	}
	if b1m.Low < r.low {
		r.low = b1m.Low
	}
	r.close = b1m.Close
	r.volume += b1m.Volume
	r.bars++
}

func (r *roleRollup) flush(tsCloseMs int64) bar.Bar {
	b := bar.Bar{TimestampCloseMs: tsCloseMs, Open: r.open, High: r.high, Low: r.low, Close: r.close, Volume: r.volume}
	r.started = false
	r.high, r.low, r.volume, r.bars = math.Inf(-1), math.Inf(1), 0, 0
	return b
}

// MultiTFState holds the three role TFStates and rolls incoming 1m bars
// up to each role's own timeframe, advancing a role exactly once per its
// own close (spec.md §4.4).
type MultiTFState struct {
	mapping  types.TFMapping
	execRole types.Role
	states   map[types.Role]*TFState
	rollups  map[types.Role]*roleRollup
}

// NewMultiTFState wires the three already-built TFStates together.
func NewMultiTFState(mapping types.TFMapping, execRole types.Role, states map[types.Role]*TFState) *MultiTFState {
	rollups := make(map[types.Role]*roleRollup, len(states))
	for role, st := range states {
		rollups[role] = newRoleRollup(st.tf)
	}
	return &MultiTFState{mapping: mapping, execRole: execRole, states: states, rollups: rollups}
}

// OnMinuteBar feeds one closed 1m bar into every role's rollup, flushing
// and advancing any role whose own timeframe closes on tsCloseMs. It
// returns whether the exec role's TFState advanced this call, and the
// exec-role bar it advanced with if so — the engine's hot loop (spec.md
// §4.10) uses this to know when to build a SnapshotView and evaluate
// rules; this single entry point folds together §4.10 steps 1-3.
func (m *MultiTFState) OnMinuteBar(tsCloseMs int64, b1m bar.Bar) (execClosed bool, execBar bar.Bar) {
	for role, rollup := range m.rollups {
		rollup.accumulate(b1m)
		if !bar.IsClose(tsCloseMs, rollup.tf) {
			continue
		}
		closedBar := rollup.flush(tsCloseMs)
		m.states[role].Update(closedBar)
		if role == m.execRole {
			execClosed = true
			execBar = closedBar
		}
	}
	return execClosed, execBar
}

// Role returns the TFState for role.
func (m *MultiTFState) Role(role types.Role) *TFState { return m.states[role] }

// RoleStates returns the full role->TFState map, for wiring into a
// SnapshotView (internal/snapshot).
func (m *MultiTFState) RoleStates() map[types.Role]*TFState { return m.states }
