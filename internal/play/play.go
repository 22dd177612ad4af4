// Package play loads and validates a types.Play: resolving exec_role,
// building every role's TFState, compiling every action's rule tree, and
// computing warmup_bars_by_role/delay_bars_by_role (spec.md §4.7).
// Grounded on internal/strategy/strategy.go's StrategyRegistry
// (Register/Create/List factory-registry pattern, zap-logged, mutex-
// protected), applied here to loaded Plays instead of imperative
// Strategy construction.
package play

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-quant/tradecore/internal/featurestate"
	"github.com/atlas-quant/tradecore/internal/rules"
	"github.com/atlas-quant/tradecore/internal/snapshot"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// Loaded bundles everything derived from a types.Play at load time: the
// validated Play itself (WarmupBarsByRole now populated), the per-role
// feature/structure state ready to run, and every action's compiled
// rule tree.
type Loaded struct {
	Play    types.Play
	Roles   map[types.Role]*featurestate.TFState
	MultiTF *featurestate.MultiTFState
	Actions map[string]*rules.CompiledRule
	// ActionOrder is the action tags sorted lexically: the engine's hot
	// loop (internal/engine) must evaluate actions in a fixed order for
	// determinism (spec.md §4.11), and raw.Actions is a map with no
	// natural order of its own.
	ActionOrder []string
}

// Load validates raw and compiles it into a Loaded bundle. Every failure
// mode spec.md §4.7 names is fatal here, never deferred to the engine.
func Load(raw types.Play, logger *zap.Logger) (*Loaded, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("play").With(zap.String("play_id", raw.ID))

	if err := validateExecRole(raw); err != nil {
		return nil, err
	}
	if len(raw.SymbolUniverse) == 0 {
		return nil, fmt.Errorf("play: symbol_universe must be non-empty")
	}
	if err := validateRisk(raw.Risk); err != nil {
		return nil, err
	}

	roleStates := make(map[types.Role]*featurestate.TFState, len(types.Roles))
	for _, role := range types.Roles {
		tf := raw.TFMapping.TF(role)
		st, err := featurestate.BuildTFState(role, tf, raw.Features[role], raw.Structures[role])
		if err != nil {
			return nil, fmt.Errorf("play: %w", err)
		}
		roleStates[role] = st
		logger.Debug("built role state",
			zap.String("role", string(role)),
			zap.String("tf", string(tf)),
			zap.Int("features", len(raw.Features[role])),
			zap.Int("structures", len(raw.Structures[role])))
	}

	warmup := make(map[types.Role]int, len(types.Roles))
	delay := make(map[types.Role]int, len(types.Roles))
	for _, role := range types.Roles {
		d := raw.DelayBarsByRole[role]
		if d < 0 {
			return nil, fmt.Errorf("play: delay_bars_by_role[%s] must be >= 0", role)
		}
		delay[role] = d
		warmup[role] = roleStates[role].Warmup() + d
	}
	raw.WarmupBarsByRole = warmup
	raw.DelayBarsByRole = delay

	multiTF := featurestate.NewMultiTFState(raw.TFMapping, raw.ExecRole, roleStates)

	probe := buildProbeView(raw.ExecRole, roleStates)
	compiler := rules.NewCompiler(raw.TFMapping, raw.ExecRole, probe)
	actions, err := compiler.CompileActions(raw.Actions)
	if err != nil {
		return nil, fmt.Errorf("play: %w", err)
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("play: must declare at least one action")
	}
	actionOrder := make([]string, 0, len(actions))
	for tag := range actions {
		actionOrder = append(actionOrder, tag)
	}
	sort.Strings(actionOrder)

	logger.Info("play loaded",
		zap.Int("actions", len(actions)),
		zap.Any("warmup_bars_by_role", warmup),
		zap.Any("delay_bars_by_role", delay))

	return &Loaded{Play: raw, Roles: roleStates, MultiTF: multiTF, Actions: actions, ActionOrder: actionOrder}, nil
}

func validateExecRole(raw types.Play) error {
	switch raw.ExecRole {
	case types.RoleLow, types.RoleMed, types.RoleHigh:
	default:
		return fmt.Errorf("play: exec_role %q does not resolve to a declared role", raw.ExecRole)
	}
	for _, role := range types.Roles {
		tf := raw.TFMapping.TF(role)
		if !bar.Valid(tf) {
			return fmt.Errorf("play: tf_mapping[%s] = %q is not a recognized timeframe", role, tf)
		}
	}
	return nil
}

func validateRisk(r types.RiskModel) error {
	switch r.Sizing.Model {
	case types.SizingPercentEquity, types.SizingRiskBased, types.SizingFixedNotional:
	default:
		return fmt.Errorf("play: unknown sizing model %q", r.Sizing.Model)
	}
	if r.MaxLeverage.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("play: max_leverage must be > 0")
	}
	if r.InitialEquity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("play: initial_equity must be > 0")
	}
	if r.FundingEnabled && r.FundingIntervalHrs <= 0 {
		return fmt.Errorf("play: funding_interval_hours must be > 0 when funding is enabled")
	}
	return nil
}

// buildProbeView constructs a throwaway SnapshotView wired to the real
// role states, used only to validate rule field paths at compile time
// (internal/rules never reads values from it, only Has/Get/GetString's
// existence bit).
func buildProbeView(execRole types.Role, roles map[types.Role]*featurestate.TFState) *snapshot.SnapshotView {
	return snapshot.New(0, execRole, roles, snapshot.RollupBucket{}, nil, types.Ledger{}, decimal.Zero, decimal.Zero)
}

// Registry holds loaded Plays by id, mirroring internal/strategy's
// StrategyRegistry Register/Create/List shape.
type Registry struct {
	logger *zap.Logger
	plays  map[string]*Loaded
	mu     sync.RWMutex
}

// NewRegistry creates an empty play registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger.Named("play-registry"), plays: make(map[string]*Loaded)}
}

// LoadAndRegister loads raw and stores it under raw.ID, replacing any
// previous Play with the same id.
func (r *Registry) LoadAndRegister(raw types.Play) (*Loaded, error) {
	loaded, err := Load(raw, r.logger)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.plays[raw.ID] = loaded
	r.mu.Unlock()
	return loaded, nil
}

// Get returns the loaded Play registered under id.
func (r *Registry) Get(id string) (*Loaded, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.plays[id]
	return l, ok
}

// List returns every registered Play id.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.plays))
	for id := range r.plays {
		ids = append(ids, id)
	}
	return ids
}
