// Package types provides the shared domain entities for the backtest and
// live-execution core: orders, positions, the ledger, fills, trades, and
// signals (spec.md §3).
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderKind is the order type, spec.md §3 Order.
type OrderKind string

const (
	OrderKindMarket     OrderKind = "market"
	OrderKindLimit      OrderKind = "limit"
	OrderKindStopMarket OrderKind = "stop_market"
	OrderKindStopLimit  OrderKind = "stop_limit"
	OrderKindTakeProfit OrderKind = "take_profit"
)

// TimeInForce governs order lifetime semantics.
type TimeInForce string

const (
	TIFGoodTilCancel    TimeInForce = "gtc"
	TIFImmediateOrCancel TimeInForce = "ioc"
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// PositionSide is long, short, or flat.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
	PositionSideFlat  PositionSide = "flat"
)

// Direction is the signal's intended action, spec.md §3 Signal.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionExit  Direction = "exit"
)

// FillKind records why a fill happened (spec.md §3 Fill).
type FillKind string

const (
	FillKindEntry       FillKind = "entry"
	FillKindStopLoss    FillKind = "sl"
	FillKindTakeProfit  FillKind = "tp"
	FillKindLiquidation FillKind = "liquidation"
	FillKindManualClose FillKind = "manual_close"
)

// TerminalReason names a run-ending condition, spec.md §4.9/§7.
type TerminalReason string

const (
	TerminalNone        TerminalReason = ""
	TerminalLiquidated  TerminalReason = "liquidated"
	TerminalMaxDrawdown TerminalReason = "max_drawdown_stop"
	TerminalEquityFloor TerminalReason = "equity_floor_stop"
	TerminalManualStop  TerminalReason = "manual_stop"
)

// Signal is a tagged trading intent emitted by the rule evaluator at an
// exec-role bar close (spec.md §3 Signal).
type Signal struct {
	Tag            string
	Direction      Direction
	SizingOverride *decimal.Decimal
	Metadata       map[string]any
}

// Order is the engine's order representation (spec.md §3 Order).
type Order struct {
	ClientID     int64
	Symbol       string
	Side         OrderSide
	Kind         OrderKind
	QtyQuote     decimal.Decimal
	Price        decimal.Decimal // limit/take-profit price, zero if n/a
	TriggerPrice decimal.Decimal // stop trigger, zero if n/a
	ReduceOnly   bool
	TIF          TimeInForce
	LinkID       int64 // bracket linkage (0 = none)
	Status       OrderStatus
	CreatedAtMs  int64
}

// Position is the single open exposure per symbol under isolated margin
// (spec.md §3 Position).
type Position struct {
	Symbol           string
	Side             PositionSide
	QtyQuote         decimal.Decimal
	EntryPrice       decimal.Decimal
	Leverage         decimal.Decimal
	LiquidationPrice decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	MarginLocked     decimal.Decimal
	OpenedAtMs       int64
}

// IsFlat reports whether there is no open exposure.
func (p *Position) IsFlat() bool {
	return p == nil || p.Side == PositionSideFlat || p.QtyQuote.IsZero()
}

// Ledger is the account's cash/margin/PnL state (spec.md §3 Ledger).
type Ledger struct {
	WalletBalance decimal.Decimal
	MarginLocked  decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// Equity returns wallet balance plus unrealized PnL.
func (l Ledger) Equity() decimal.Decimal {
	return l.WalletBalance.Add(l.UnrealizedPnL)
}

// Fill is a realized order execution (spec.md §3 Fill).
type Fill struct {
	OrderID  int64
	Side     OrderSide
	Price    decimal.Decimal
	QtyQuote decimal.Decimal
	Fee      decimal.Decimal
	TsMs     int64
	Kind     FillKind
}

// Trade is a closed round-trip (spec.md §3 Trade). Field tags match the
// logical names spec.md §6.3 gives the emitted trades artifact.
type Trade struct {
	TradeID     int64           `json:"trade_id"`
	Symbol      string          `json:"symbol"`
	Side        OrderSide       `json:"side"`
	EntryTsMs   int64           `json:"entry_ts_ms"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitTsMs    int64           `json:"exit_ts_ms"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	SizeQuote   decimal.Decimal `json:"size_usdt"`
	Leverage    decimal.Decimal `json:"leverage"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	FeesPaid    decimal.Decimal `json:"fees_paid"`
	NetPnL      decimal.Decimal `json:"net_pnl"`
	MAE         decimal.Decimal `json:"mae"`
	MFE         decimal.Decimal `json:"mfe"`
	ExitReason  string          `json:"exit_reason"`
}

// EquityPoint is one row of the equity curve (spec.md §6.3).
type EquityPoint struct {
	TsCloseMs     int64           `json:"ts_close_ms"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Equity        decimal.Decimal `json:"equity"`
}

// FeeModel is the taker/maker fee schedule (spec.md §4.9 Fees).
type FeeModel struct {
	TakerBps decimal.Decimal `json:"taker_bps"`
	MakerBps decimal.Decimal `json:"maker_bps"`
}

// Fee computes the fee for a notional at either the taker or maker rate.
func (f FeeModel) Fee(notional decimal.Decimal, taker bool) decimal.Decimal {
	bps := f.MakerBps
	if taker {
		bps = f.TakerBps
	}
	return notional.Mul(bps).Div(decimal.NewFromInt(10_000))
}

// RunManifest is the deterministic summary of a run (spec.md §3/§6.3).
// CreatedAt is not an input to play_hash/run_id computation
// (internal/artifacts) and is purely informational: the determinism
// contract binds trade/equity artifacts and run_id, not wall-clock
// metadata recorded alongside them.
type RunManifest struct {
	PlayHash         string            `json:"play_hash"`
	PipelineVersion  string            `json:"pipeline_version"`
	RunID            string            `json:"run_id"`
	Symbol           string            `json:"symbol"`
	ExecTF           string            `json:"exec_tf"`
	WindowStartMs    int64             `json:"window_start_ms"`
	WindowEndMs      int64             `json:"window_end_ms"`
	WarmupByRole     map[string]int    `json:"warmup_by_role"`
	DelayByRole      map[string]int    `json:"delay_by_role"`
	FeeModel         FeeModel          `json:"fee_model"`
	SlippageBps      decimal.Decimal   `json:"slippage_bps"`
	Leverage         decimal.Decimal   `json:"leverage"`
	InitialEquity    decimal.Decimal   `json:"initial_equity"`
	TerminalReason   TerminalReason    `json:"terminal_stop_reason"`
	IntrabarPathRule string            `json:"intrabar_path_rule"`
	CreatedAt        time.Time         `json:"created_at"`
}
