// Package featurestate implements the multi-timeframe feature/structure
// container (spec.md §4.4): one TFState per role, topologically ordered
// at load time, and a MultiTFState that rolls 1m bars up into each role's
// own closed bars and routes them to the right TFState. Grounded on
// other_examples/8d0a78f0_evdnx-gots__multi_timeframe_confirmation.go.go's
// MultiTF pattern (two independent per-timeframe indicator suites fed
// from one bar stream), generalized from 2 fixed timeframes to the 3
// named roles spec.md declares.
package featurestate

import (
	"fmt"

	"github.com/atlas-quant/tradecore/internal/feature"
	"github.com/atlas-quant/tradecore/internal/structure"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// TFState owns every feature and structure instance for one role, each
// updated once per the role's own closed bar, in dependency order.
type TFState struct {
	role types.Role
	tf   bar.Timeframe

	features      map[string]feature.Indicator
	featureOrder  []string
	structures    map[string]structure.Structure
	structureOrder []string

	barIdx     int
	hasClosed  bool
	maxWarmup  int
}

// BuildTFState constructs a TFState for role, instantiating every feature
// and structure spec. Structures are instantiated in dependency order: a
// plain Kahn's-algorithm topological sort over DependsOn, since
// spec.md §4.4 requires cycles to fail load.
func BuildTFState(role types.Role, tf bar.Timeframe, features []types.FeatureSpec, structures []types.StructureSpec) (*TFState, error) {
	st := &TFState{
		role:       role,
		tf:         tf,
		features:   make(map[string]feature.Indicator, len(features)),
		structures: make(map[string]structure.Structure, len(structures)),
	}

	for _, spec := range features {
		ind, err := feature.New(spec)
		if err != nil {
			return nil, fmt.Errorf("featurestate: role %s feature %q: %w", role, spec.ID, err)
		}
		st.features[spec.ID] = ind
		st.featureOrder = append(st.featureOrder, spec.ID)
		if ind.Warmup() > st.maxWarmup {
			st.maxWarmup = ind.Warmup()
		}
	}

	order, err := topoSortStructures(structures)
	if err != nil {
		return nil, fmt.Errorf("featurestate: role %s: %w", role, err)
	}
	specByID := make(map[string]types.StructureSpec, len(structures))
	for _, s := range structures {
		specByID[s.ID] = s
	}
	for _, id := range order {
		spec := specByID[id]
		deps := make(map[string]structure.Structure, len(spec.DependsOn))
		for _, depID := range spec.DependsOn {
			built, ok := st.structures[depID]
			if !ok {
				return nil, fmt.Errorf("featurestate: role %s structure %q: unresolved dependency %q", role, id, depID)
			}
			deps[depID] = built
		}
		var atrSource structure.ScalarSource
		if atrID, ok := spec.StrParams["atr_id"]; ok {
			ind, ok := st.features[atrID]
			if !ok {
				return nil, fmt.Errorf("featurestate: role %s structure %q: atr_id %q is not a declared feature", role, id, atrID)
			}
			atrSource = func() float64 { return ind.Values()[""] }
		}
		built, err := structure.New(spec, deps, atrSource)
		if err != nil {
			return nil, fmt.Errorf("featurestate: role %s structure %q: %w", role, id, err)
		}
		st.structures[id] = built
		st.structureOrder = append(st.structureOrder, id)
		if built.Warmup() > st.maxWarmup {
			st.maxWarmup = built.Warmup()
		}
	}
	return st, nil
}

func topoSortStructures(specs []types.StructureSpec) ([]string, error) {
	byID := make(map[string]types.StructureSpec, len(specs))
	inDegree := make(map[string]int, len(specs))
	dependents := make(map[string][]string, len(specs))
	for _, s := range specs {
		byID[s.ID] = s
		if _, ok := inDegree[s.ID]; !ok {
			inDegree[s.ID] = 0
		}
	}
	for _, s := range specs {
		for _, dep := range s.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("structure %q depends_on unknown id %q", s.ID, dep)
			}
			inDegree[s.ID]++
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}
	var queue []string
	for _, s := range specs {
		if inDegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}
	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	if len(order) != len(specs) {
		return nil, fmt.Errorf("cyclic structure dependency graph (resolved %d of %d)", len(order), len(specs))
	}
	return order, nil
}

// Warmup returns the max warmup bar count across every feature/structure
// in this role (spec.md §4.7 warmup_bars_by_role, before delay_bars).
func (t *TFState) Warmup() int { return t.maxWarmup }

// Update advances every feature then every structure, in that order —
// structures may read a feature's current value (a Zone's named ATR
// dependency), so features must already reflect the current bar first.
func (t *TFState) Update(b bar.Bar) {
	t.barIdx++
	t.hasClosed = true
	for _, id := range t.featureOrder {
		t.features[id].Update(b)
	}
	for _, id := range t.structureOrder {
		t.structures[id].Update(t.barIdx-1, b)
	}
}

// FeatureValue returns the named output key's current value, or NaN if
// no bar has closed yet for this role (spec.md §4.4: "Feature values for
// bars strictly prior to the TFState's first closed bar return NaN").
func (t *TFState) FeatureValue(id, outputKey string) (float64, bool) {
	ind, ok := t.features[id]
	if !ok {
		return 0, false
	}
	if outputKey == "" {
		outputKey = ""
	}
	v, ok := ind.Values()[outputKey]
	return v, ok
}

// StructureField returns the named structure's named field.
func (t *TFState) StructureField(id, field string) (any, bool) {
	s, ok := t.structures[id]
	if !ok {
		return nil, false
	}
	v, ok := s.Fields()[field]
	return v, ok
}

// HasClosed reports whether at least one bar has closed for this role.
func (t *TFState) HasClosed() bool { return t.hasClosed }

// BarIndex is the number of bars this role has consumed.
func (t *TFState) BarIndex() int { return t.barIdx }
