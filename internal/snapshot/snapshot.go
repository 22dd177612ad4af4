// Package snapshot implements the read-only SnapshotView (spec.md §4.5):
// an immutable, dotted-path accessor over the current state of every role's
// TFState, the exec-role rollup bucket, and the exchange's position/ledger,
// built fresh at each exec-role close. New, grounded on spec.md §4.5
// directly — the donor never separates "current computed state" from
// "rule evaluation input" this way, so there is no donor shape to imitate
// here beyond the module's general struct-with-accessor-methods idiom.
package snapshot

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/internal/featurestate"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// RollupBucket is the accumulated 1m data for the exec bar currently being
// built, frozen into the snapshot at exec-role close (spec.md §4.10 step 4).
type RollupBucket struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Bars   int

	// ZoneTouched records, per zone-like structure id, whether any 1m bar
	// inside this rollup touched it intrabar — set by the engine's
	// subloop, read via "rollup.zone_touched.<id>".
	ZoneTouched map[string]bool
}

// SnapshotView is immutable for the duration of one rule evaluation: every
// accessor reads already-frozen state, never triggers a recomputation.
type SnapshotView struct {
	execBarIndex int
	execRole     types.Role
	roles        map[types.Role]*featurestate.TFState
	rollup       RollupBucket
	position     *types.Position
	ledger       types.Ledger
	markPrice    decimal.Decimal
	lastPrice    decimal.Decimal
}

// New constructs a SnapshotView. roles must contain every role the play's
// TFMapping declares; position may be nil (flat).
func New(execBarIndex int, execRole types.Role, roles map[types.Role]*featurestate.TFState, rollup RollupBucket, position *types.Position, ledger types.Ledger, markPrice, lastPrice decimal.Decimal) *SnapshotView {
	return &SnapshotView{
		execBarIndex: execBarIndex,
		execRole:     execRole,
		roles:        roles,
		rollup:       rollup,
		position:     position,
		ledger:       ledger,
		markPrice:    markPrice,
		lastPrice:    lastPrice,
	}
}

// ExecBarIndex is the exec-role bar count as of this snapshot.
func (v *SnapshotView) ExecBarIndex() int { return v.execBarIndex }

// namespace splits path into a role/section prefix and the remainder. A
// path with no recognized prefix defaults to the exec role, per spec.md
// §4.5's example accessors (`exec.rsi.value` vs bare `rsi.value`).
func (v *SnapshotView) namespace(path string) (section string, rest string) {
	head, tail, found := strings.Cut(path, ".")
	if !found {
		return "exec", path
	}
	switch head {
	case "exec", "low_tf", "med_tf", "high_tf", "position", "ledger", "rollup":
		return head, tail
	default:
		return "exec", path
	}
}

func (v *SnapshotView) roleFor(section string) types.Role {
	switch section {
	case "low_tf":
		return types.RoleLow
	case "med_tf":
		return types.RoleMed
	case "high_tf":
		return types.RoleHigh
	default: // "exec"
		return v.execRole
	}
}

// splitIDField splits "id" or "id.field.sub" into (id, field) where field
// is "" when absent — used for both feature output keys and structure
// field names, which share the same one-level-deeper grammar.
func splitIDField(rest string) (id string, field string) {
	id, field, found := strings.Cut(rest, ".")
	if !found {
		return id, ""
	}
	return id, field
}

// Get resolves path to a numeric value. ok is false for UndefinedField —
// spec.md §4.6 requires that to be caught at play-load time by
// internal/rules, not surfaced as a runtime false.
func (v *SnapshotView) Get(path string) (float64, bool) {
	section, rest := v.namespace(path)
	switch section {
	case "position":
		return v.positionFloat(rest)
	case "ledger":
		return v.ledgerFloat(rest)
	case "rollup":
		return v.rollupFloat(rest)
	default:
		return v.roleFloat(v.roleFor(section), rest)
	}
}

// GetString resolves path to a string value, for enum-valued fields such
// as `position.side`, `high_tf.trend0.direction`, `zones.zone0_state`.
func (v *SnapshotView) GetString(path string) (string, bool) {
	section, rest := v.namespace(path)
	switch section {
	case "position":
		return v.positionString(rest)
	case "ledger", "rollup":
		return "", false
	default:
		return v.roleString(v.roleFor(section), rest)
	}
}

func (v *SnapshotView) roleFloat(role types.Role, rest string) (float64, bool) {
	st, ok := v.roles[role]
	if !ok {
		return 0, false
	}
	id, field := splitIDField(rest)
	if f, ok := st.FeatureValue(id, field); ok {
		return f, true
	}
	if field == "" {
		return 0, false
	}
	raw, ok := st.StructureField(id, field)
	if !ok {
		return 0, false
	}
	return toFloat(raw)
}

func (v *SnapshotView) roleString(role types.Role, rest string) (string, bool) {
	st, ok := v.roles[role]
	if !ok {
		return "", false
	}
	id, field := splitIDField(rest)
	if field == "" {
		return "", false
	}
	raw, ok := st.StructureField(id, field)
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func toFloat(raw any) (float64, bool) {
	switch x := raw.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func (v *SnapshotView) positionFloat(field string) (float64, bool) {
	if v.position.IsFlat() {
		if field == "is_flat" {
			return 1, true
		}
		return 0, false
	}
	p := v.position
	switch field {
	case "qty_quote":
		return p.QtyQuote.InexactFloat64(), true
	case "entry_price":
		return p.EntryPrice.InexactFloat64(), true
	case "leverage":
		return p.Leverage.InexactFloat64(), true
	case "liquidation_price":
		return p.LiquidationPrice.InexactFloat64(), true
	case "unrealized_pnl":
		return p.UnrealizedPnL.InexactFloat64(), true
	case "margin_locked":
		return p.MarginLocked.InexactFloat64(), true
	case "is_flat":
		return 0, true
	default:
		return 0, false
	}
}

func (v *SnapshotView) positionString(field string) (string, bool) {
	if field != "side" {
		return "", false
	}
	if v.position.IsFlat() {
		return string(types.PositionSideFlat), true
	}
	return string(v.position.Side), true
}

func (v *SnapshotView) ledgerFloat(field string) (float64, bool) {
	switch field {
	case "wallet_balance":
		return v.ledger.WalletBalance.InexactFloat64(), true
	case "margin_locked":
		return v.ledger.MarginLocked.InexactFloat64(), true
	case "unrealized_pnl":
		return v.ledger.UnrealizedPnL.InexactFloat64(), true
	case "equity":
		return v.ledger.Equity().InexactFloat64(), true
	case "mark_price":
		return v.markPrice.InexactFloat64(), true
	case "last_price":
		return v.lastPrice.InexactFloat64(), true
	default:
		return 0, false
	}
}

func (v *SnapshotView) rollupFloat(field string) (float64, bool) {
	switch {
	case field == "open_1m" || field == "open":
		return v.rollup.Open, true
	case field == "high_1m" || field == "high" || field == "max_1m":
		return v.rollup.High, true
	case field == "low_1m" || field == "low" || field == "min_1m":
		return v.rollup.Low, true
	case field == "close_1m" || field == "close":
		return v.rollup.Close, true
	case field == "volume_1m" || field == "volume":
		return v.rollup.Volume, true
	case field == "bars_1m" || field == "bars":
		return float64(v.rollup.Bars), true
	case strings.HasPrefix(field, "zone_touched."):
		id := strings.TrimPrefix(field, "zone_touched.")
		if v.rollup.ZoneTouched[id] {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Has reports whether path resolves to either a numeric or string field.
func (v *SnapshotView) Has(path string) bool {
	if _, ok := v.Get(path); ok {
		return true
	}
	_, ok := v.GetString(path)
	return ok
}
