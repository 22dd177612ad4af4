// Package structure implements the structure detector registry (spec.md
// §4.3): swing, trend, zone, rolling_window, fibonacci, derived_zone, and
// market_structure, each an O(k)-per-bar state machine independent of bar
// index. Detectors that depend on another structure (DependsOn) are wired
// together by internal/featurestate at load time, after a topological
// sort resolves the dependency order; this package never resolves names
// itself.
package structure

import (
	"fmt"
	"math"

	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// ScalarSource reads an external scalar (typically a feature's current
// value, e.g. an ATR reading) at the current bar. Supplied by
// internal/featurestate as a closure over its feature map, so this
// package never imports internal/feature directly.
type ScalarSource func() float64

// Structure is one running instance of a registered structure kind.
type Structure interface {
	// Update consumes the next closed bar at index idx (monotonically
	// increasing, zero-based within the owning TFState's role).
	Update(idx int, b bar.Bar)
	// Fields returns the current named output fields. Values are
	// float64, int, or string; callers (internal/snapshot) type-switch.
	Fields() map[string]any
	// Warmup is the minimum bar count before Fields() is meaningful.
	Warmup() int
}

// PivotKind distinguishes a swing high from a swing low.
type PivotKind string

const (
	PivotHigh PivotKind = "high"
	PivotLow  PivotKind = "low"
)

// PivotClass classifies a pivot relative to the previous pivot of the
// same kind.
type PivotClass string

const (
	ClassNone       PivotClass = "NONE"
	ClassHigherHigh PivotClass = "HH"
	ClassLowerHigh  PivotClass = "LH"
	ClassHigherLow  PivotClass = "HL"
	ClassLowerLow   PivotClass = "LL"
)

// Pivot is one confirmed swing point.
type Pivot struct {
	Idx   int
	Level float64
	Kind  PivotKind
	Class PivotClass
}

// pivotHistoryCap bounds the retained pivot history (spec.md §4.3: "most
// recent N pivots, implementation choice, ≥20").
const pivotHistoryCap = 32

// New constructs the Structure for spec. deps resolves each entry of
// spec.DependsOn to an already-constructed Structure (callers must
// topologically sort so dependencies exist before this call); atrSource
// resolves a Zone's named ATR feature dependency.
func New(spec types.StructureSpec, deps map[string]Structure, atrSource ScalarSource) (Structure, error) {
	switch spec.Kind {
	case types.StructureSwing:
		return newSwing(spec.Params)
	case types.StructureTrend:
		sw, err := requireSwingDep(spec, deps)
		if err != nil {
			return nil, err
		}
		return newTrend(sw), nil
	case types.StructureZone:
		sw, err := requireSwingDep(spec, deps)
		if err != nil {
			return nil, err
		}
		if atrSource == nil {
			return nil, fmt.Errorf("structure %q: zone requires an atr_id resolvable to a feature", spec.ID)
		}
		return newZone(spec.Params, spec.StrParams, sw, atrSource)
	case types.StructureRollingWindow:
		return newRollingWindow(spec.Params, spec.StrParams)
	case types.StructureFibonacci:
		sw, err := requireSwingDep(spec, deps)
		if err != nil {
			return nil, err
		}
		return newFibonacci(spec.StrParams, sw)
	case types.StructureDerivedZone:
		sw, err := requireSwingDep(spec, deps)
		if err != nil {
			return nil, err
		}
		return newDerivedZone(spec.Params, spec.StrParams, sw)
	case types.StructureMarketStruct:
		sw, err := requireSwingDep(spec, deps)
		if err != nil {
			return nil, err
		}
		tr, zn := optionalTrendZoneDeps(spec, deps)
		return newMarketStructure(sw, tr, zn), nil
	default:
		return nil, fmt.Errorf("structure: unregistered kind %q", spec.Kind)
	}
}

func requireSwingDep(spec types.StructureSpec, deps map[string]Structure) (*Swing, error) {
	for _, depID := range spec.DependsOn {
		if sw, ok := deps[depID].(*Swing); ok {
			return sw, nil
		}
	}
	return nil, fmt.Errorf("structure %q: requires a swing dependency in depends_on", spec.ID)
}

func optionalTrendZoneDeps(spec types.StructureSpec, deps map[string]Structure) (*Trend, *Zone) {
	var tr *Trend
	var zn *Zone
	for _, depID := range spec.DependsOn {
		if t, ok := deps[depID].(*Trend); ok {
			tr = t
		}
		if z, ok := deps[depID].(*Zone); ok {
			zn = z
		}
	}
	return tr, zn
}

func nanSentinel() float64 { return math.NaN() }
