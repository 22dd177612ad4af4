package types

import (
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/shopspring/decimal"
)

// Role names one of the three timeframe slots a Play wires up
// (spec.md §3 Timeframe).
type Role string

const (
	RoleLow  Role = "low_tf"
	RoleMed  Role = "med_tf"
	RoleHigh Role = "high_tf"
)

// Roles is the fixed, ordered set of roles a Play always has.
var Roles = [3]Role{RoleLow, RoleMed, RoleHigh}

// TFMapping binds each role to a concrete timeframe.
type TFMapping struct {
	LowTF  bar.Timeframe
	MedTF  bar.Timeframe
	HighTF bar.Timeframe
}

// TF returns the timeframe bound to role.
func (m TFMapping) TF(role Role) bar.Timeframe {
	switch role {
	case RoleLow:
		return m.LowTF
	case RoleMed:
		return m.MedTF
	case RoleHigh:
		return m.HighTF
	default:
		return ""
	}
}

// IndicatorKind is a member of the closed indicator registry (spec.md §4.2).
type IndicatorKind string

const (
	KindSMA      IndicatorKind = "sma"
	KindEMA      IndicatorKind = "ema"
	KindWMA      IndicatorKind = "wma"
	KindDEMA     IndicatorKind = "dema"
	KindTEMA     IndicatorKind = "tema"
	KindTRIMA    IndicatorKind = "trima"
	KindKAMA     IndicatorKind = "kama"
	KindZLMA     IndicatorKind = "zlma"
	KindALMA     IndicatorKind = "alma"
	KindRSI      IndicatorKind = "rsi"
	KindATR      IndicatorKind = "atr"
	KindNATR     IndicatorKind = "natr"
	KindMACD     IndicatorKind = "macd"
	KindBBands   IndicatorKind = "bbands"
	KindStoch    IndicatorKind = "stoch"
	KindStochRSI IndicatorKind = "stochrsi"
	KindCCI      IndicatorKind = "cci"
	KindWillR    IndicatorKind = "willr"
	KindCMO      IndicatorKind = "cmo"
	KindMOM      IndicatorKind = "mom"
	KindROC      IndicatorKind = "roc"
	KindMFI      IndicatorKind = "mfi"
	KindUO       IndicatorKind = "uo"
	KindADX      IndicatorKind = "adx"
	KindVortex   IndicatorKind = "vortex"
	KindOBV      IndicatorKind = "obv"
	KindCMF      IndicatorKind = "cmf"
	KindVWAP     IndicatorKind = "vwap"
	KindLinReg   IndicatorKind = "linreg"
	KindMidprice IndicatorKind = "midprice"
	KindOHLC4    IndicatorKind = "ohlc4"
)

// FeatureSpec declares one indicator instance (spec.md §3 FeatureSpec).
type FeatureSpec struct {
	ID     string
	Kind   IndicatorKind
	Params map[string]float64
}

// StructureKind is a member of the closed structure-detector registry.
type StructureKind string

const (
	StructureSwing         StructureKind = "swing"
	StructureTrend         StructureKind = "trend"
	StructureZone          StructureKind = "zone"
	StructureRollingWindow StructureKind = "rolling_window"
	StructureFibonacci     StructureKind = "fibonacci"
	StructureDerivedZone   StructureKind = "derived_zone"
	StructureMarketStruct  StructureKind = "market_structure"
)

// StructureSpec declares one structure-detector instance with its
// dependency list (spec.md §3 StructureSpec).
type StructureSpec struct {
	ID        string
	Kind      StructureKind
	Params    map[string]float64
	StrParams map[string]string
	DependsOn []string
}

// RoleFeatures/RoleStructures bundle per-role specs.
type RoleFeatures map[Role][]FeatureSpec
type RoleStructures map[Role][]StructureSpec

// SizingModel names the position-sizing rule (spec.md §4.9 Sizing).
type SizingModel string

const (
	SizingPercentEquity SizingModel = "percent_equity"
	SizingRiskBased     SizingModel = "risk_based"
	SizingFixedNotional SizingModel = "fixed_notional"
)

// SizingRule is the Play's position-sizing configuration.
type SizingRule struct {
	Model SizingModel
	Value decimal.Decimal // interpretation depends on Model
}

// StopRule expresses a fixed percentage distance from the fill price;
// RiskModel uses it for both the stop-loss and the take-profit bracket
// attached at entry (spec.md §4.9 Stop/TP).
type StopRule struct {
	Enabled bool
	Pct     decimal.Decimal
}

// RiskModel bundles every risk-related Play setting (spec.md §3 Play).
type RiskModel struct {
	Sizing               SizingRule
	StopLoss             StopRule
	TakeProfit           StopRule
	MaxLeverage          decimal.Decimal
	InitialEquity        decimal.Decimal
	Fees                 FeeModel
	SlippageBps          decimal.Decimal
	FundingIntervalHrs   int
	FundingEnabled       bool
	DefaultFundingRate   decimal.Decimal // used only when FundingEnabled and no rate data supplied
	MaintenanceMarginPct decimal.Decimal
	MinTradeNotional     decimal.Decimal
	MaxDrawdownStopPct   decimal.Decimal // 0 disables
	EquityFloor          decimal.Decimal // 0 disables
}

// Play is the full, immutable strategy description (spec.md §3 Play).
type Play struct {
	ID             string
	SymbolUniverse []string
	TFMapping      TFMapping
	ExecRole       Role
	Features       RoleFeatures
	Structures     RoleStructures
	Actions        map[string]RuleNode // action name -> rule tree root
	Risk           RiskModel

	// Derived at load time (spec.md §4.7); never recomputed downstream.
	WarmupBarsByRole map[Role]int
	DelayBarsByRole  map[Role]int
}

// RuleNode is the logical rule-tree node shared between the Play schema
// and the compiler (internal/rules). It lives here, not in internal/rules,
// so a Play (a pkg/types value) can embed a tree without an import cycle;
// internal/rules holds the compiled, executable form built from this one.
type RuleNode struct {
	// Boolean combinator. Exactly one of All/Any/Not/Op/Temporal is set.
	All []RuleNode
	Any []RuleNode
	Not *RuleNode

	// Leaf comparison.
	Op       string // one of the canonical operator symbols, spec.md §4.6
	Left     FieldRef
	Right    FieldRef
	Bound2   FieldRef // second bound for `between`
	Literals []float64
	Strings  []string

	// Temporal wrapper (wraps Inner).
	Temporal   string // "holds_for" | "occurred_within" | "count_true" | ""
	Inner      *RuleNode
	N          int
	K          int // for count_true
	AnchorTF   Role
	DurationMs int64 // duration-form override (0 = use N as bar count)

	// Tag/Direction are only meaningful on a tree's root.
	Tag       string
	Direction Direction
}

// FieldRef is either a dotted snapshot path or an inlined numeric/string
// literal, resolved at compile time (spec.md §4.6).
type FieldRef struct {
	Path     string
	IsConst  bool
	Const    float64
	ConstStr string
}
