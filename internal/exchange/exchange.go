// Package exchange implements the simulated single-symbol isolated-margin
// exchange (spec.md §4.9): ledger, position, order book, deterministic
// intrabar path walking for stop-loss/take-profit/liquidation detection,
// fee and funding accrual. Grounded on donor's internal/backtester/
// portfolio.go (Portfolio/Position cash-and-average-price shape) and
// internal/backtester/orders.go (OrderManager's pending/filled queues and
// CheckFills slippage-on-market-fill pattern), generalized from an
// unleveraged spot portfolio to a single leveraged isolated-margin
// position with bracket stop/take-profit and liquidation.
package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// bracket holds the absolute stop-loss/take-profit levels attached to the
// currently open position, computed from the fill price at entry
// (spec.md §4.9 Stop/TP). Zero means disabled.
type bracket struct {
	stopPrice decimal.Decimal
	tpPrice   decimal.Decimal
}

// openTrade accumulates the fields needed to emit a types.Trade once the
// position that opened it fully closes.
type openTrade struct {
	tradeID    int64
	entryTsMs  int64
	entryPrice decimal.Decimal
	feesPaid   decimal.Decimal
	mae        decimal.Decimal // worst adverse excursion, always <= 0
	mfe        decimal.Decimal // best favorable excursion, always >= 0
}

// Exchange is a single-symbol simulated isolated-margin exchange.
type Exchange struct {
	logger *zap.Logger
	symbol string
	risk   types.RiskModel

	ledger   types.Ledger
	position *types.Position
	bracket  bracket
	trade    *openTrade

	openOrders   map[int64]*types.Order
	orderSeq     []int64 // submission order, for deterministic fill processing
	nextClientID int64
	nextTradeID  int64

	markPrice  decimal.Decimal
	lastPrice  decimal.Decimal
	peakEquity decimal.Decimal

	nextFundingTsMs int64
	fundingPrimed   bool

	pendingTrade *types.Trade

	terminal types.TerminalReason
}

// New constructs an Exchange seeded with the play's initial equity.
func New(symbol string, risk types.RiskModel, logger *zap.Logger) *Exchange {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchange{
		logger:       logger.Named("exchange").With(zap.String("symbol", symbol)),
		symbol:       symbol,
		risk:         risk,
		ledger:       types.Ledger{WalletBalance: risk.InitialEquity},
		openOrders:   make(map[int64]*types.Order),
		nextClientID: 1,
		nextTradeID:  1,
		peakEquity:   risk.InitialEquity,
	}
}

// Ledger returns a copy of the current account ledger.
func (e *Exchange) Ledger() types.Ledger { return e.ledger }

// Position returns the current position, or nil if flat.
func (e *Exchange) Position() *types.Position { return e.position }

// Terminal reports the terminal stop reason, if any fired.
func (e *Exchange) Terminal() types.TerminalReason { return e.terminal }

// MarkPrice returns the last mark price observed via ApplyBar.
func (e *Exchange) MarkPrice() decimal.Decimal { return e.markPrice }

// LastPrice returns the last traded/walked price observed via ApplyBar.
func (e *Exchange) LastPrice() decimal.Decimal { return e.lastPrice }

// Submit validates and queues an order intent (spec.md §4.9 submit).
// Market orders fill on the next ApplyBar at that bar's open.
func (e *Exchange) Submit(intent types.Order, nowMs int64) (int64, error) {
	if intent.QtyQuote.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("exchange: order quantity must be positive")
	}
	if err := e.validateReduceOnly(intent); err != nil {
		return 0, err
	}
	if !intent.ReduceOnly {
		if !e.position.IsFlat() {
			return 0, fmt.Errorf("exchange: a position is already open; close it before opening another")
		}
		if e.risk.MinTradeNotional.IsPositive() && intent.QtyQuote.LessThan(e.risk.MinTradeNotional) {
			return 0, fmt.Errorf("exchange: notional %s below min_trade_notional %s", intent.QtyQuote, e.risk.MinTradeNotional)
		}
		if err := e.checkFreeMargin(intent.QtyQuote); err != nil {
			return 0, err
		}
	}

	intent.ClientID = e.nextClientID
	e.nextClientID++
	intent.Status = types.OrderStatusPending
	intent.CreatedAtMs = nowMs

	order := intent
	e.openOrders[order.ClientID] = &order
	e.orderSeq = append(e.orderSeq, order.ClientID)
	e.logger.Debug("order submitted", zap.Int64("client_id", order.ClientID), zap.String("side", string(order.Side)), zap.String("kind", string(order.Kind)))
	return order.ClientID, nil
}

// Cancel removes a pending order. Idempotent: cancelling an order that is
// already gone is not an error.
func (e *Exchange) Cancel(clientID int64) {
	if _, ok := e.openOrders[clientID]; !ok {
		return
	}
	delete(e.openOrders, clientID)
	for i, id := range e.orderSeq {
		if id == clientID {
			e.orderSeq = append(e.orderSeq[:i], e.orderSeq[i+1:]...)
			break
		}
	}
}

// ClosePosition queues a reduce-only market exit for the entire open
// position, filled at the next 1m open (spec.md §4.9 close_position).
func (e *Exchange) ClosePosition(nowMs int64) (int64, error) {
	if e.position.IsFlat() {
		return 0, fmt.Errorf("exchange: no open position to close")
	}
	side := types.OrderSideSell
	if e.position.Side == types.PositionSideShort {
		side = types.OrderSideBuy
	}
	return e.Submit(types.Order{Symbol: e.symbol, Side: side, Kind: types.OrderKindMarket, QtyQuote: e.position.QtyQuote, ReduceOnly: true}, nowMs)
}

func (e *Exchange) validateReduceOnly(intent types.Order) error {
	if !intent.ReduceOnly {
		return nil
	}
	if e.position.IsFlat() {
		return fmt.Errorf("exchange: reduce_only order with no open position")
	}
	closingSide := types.OrderSideSell
	if e.position.Side == types.PositionSideShort {
		closingSide = types.OrderSideBuy
	}
	if intent.Side != closingSide {
		return fmt.Errorf("exchange: reduce_only order side %s does not reduce a %s position", intent.Side, e.position.Side)
	}
	if intent.QtyQuote.GreaterThan(e.position.QtyQuote) {
		return fmt.Errorf("exchange: reduce_only order qty %s exceeds position qty %s", intent.QtyQuote, e.position.QtyQuote)
	}
	return nil
}

func (e *Exchange) checkFreeMargin(notional decimal.Decimal) error {
	leverage := e.risk.MaxLeverage
	if leverage.LessThanOrEqual(decimal.Zero) {
		leverage = one
	}
	required := notional.Div(leverage)
	free := e.ledger.Equity().Sub(e.ledger.MarginLocked)
	if required.GreaterThan(free) {
		return fmt.Errorf("exchange: insufficient free margin: need %s, have %s", required, free)
	}
	return nil
}

// ApplyBar advances the exchange by one closed 1m bar (spec.md §4.9
// apply_bar / §4.10 step 1): fills queued market orders at the open,
// walks the deterministic intrabar path to detect stop/TP/liquidation
// touches, accrues funding, and recomputes equity-based terminal stops.
func (e *Exchange) ApplyBar(b bar.Bar) (fills []types.Fill, trades []types.Trade, terminal types.TerminalReason) {
	if e.terminal != types.TerminalNone {
		return nil, nil, e.terminal
	}

	open := decimal.NewFromFloat(b.Open)
	e.markPrice = open
	e.lastPrice = open

	openFills, openTrades := e.fillMarketOrders(open, b.TimestampCloseMs)
	fills = append(fills, openFills...)
	trades = append(trades, openTrades...)

	for _, px := range e.intrabarPath(b) {
		e.markPrice = px
		e.lastPrice = px
		e.updateExcursion(px)
		fill, trade, closed := e.checkTouch(px, b.TimestampCloseMs)
		if fill != nil {
			fills = append(fills, *fill)
		}
		if trade != nil {
			trades = append(trades, *trade)
		}
		if closed {
			break
		}
	}

	e.accrueFunding(b.TimestampCloseMs)
	e.recalcPosition()
	e.checkTerminalStops()

	return fills, trades, e.terminal
}

// fillMarketOrders fills every pending market order at the bar's open,
// in submission order (spec.md §4.9 submit: "market orders fill at the
// next 1m open with slippage applied").
func (e *Exchange) fillMarketOrders(open decimal.Decimal, tsMs int64) ([]types.Fill, []types.Trade) {
	var fills []types.Fill
	var trades []types.Trade
	var remaining []int64
	for _, id := range e.orderSeq {
		order, ok := e.openOrders[id]
		if !ok || order.Kind != types.OrderKindMarket {
			remaining = append(remaining, id)
			continue
		}
		slip := e.risk.SlippageBps.Div(decimal.NewFromInt(10_000))
		fillPrice := open
		if order.Side == types.OrderSideBuy {
			fillPrice = open.Mul(one.Add(slip))
		} else {
			fillPrice = open.Mul(one.Sub(slip))
		}
		kind := types.FillKindEntry
		if order.ReduceOnly {
			kind = types.FillKindManualClose
		}
		fill, trade := e.execute(order, fillPrice, tsMs, true, kind)
		fills = append(fills, fill)
		if trade != nil {
			trades = append(trades, *trade)
		}
		delete(e.openOrders, id)
	}
	e.orderSeq = remaining
	return fills, trades
}

// execute realizes one order against the position/ledger and returns the
// resulting Fill (and, if it closed the position, the completed Trade).
// taker selects the fee rate; kind tags the fill/trade record's cause.
func (e *Exchange) execute(order *types.Order, price decimal.Decimal, tsMs int64, taker bool, kind types.FillKind) (types.Fill, *types.Trade) {
	fee := e.risk.Fees.Fee(order.QtyQuote, taker)
	e.ledger.WalletBalance = e.ledger.WalletBalance.Sub(fee)

	var trade *types.Trade
	if e.position.IsFlat() {
		e.openPosition(order, price, tsMs, fee)
	} else {
		// Submit already rejected any non-reduce-only order while a
		// position is open, so reaching here always means a close.
		e.closePosition(price, tsMs, fee, kind)
		trade = e.takePendingTrade()
	}

	return types.Fill{OrderID: order.ClientID, Side: order.Side, Price: price, QtyQuote: order.QtyQuote, Fee: fee, TsMs: tsMs, Kind: kind}, trade
}

func (e *Exchange) openPosition(order *types.Order, price decimal.Decimal, tsMs int64, fee decimal.Decimal) {
	side := types.PositionSideLong
	if order.Side == types.OrderSideSell {
		side = types.PositionSideShort
	}
	leverage := e.risk.MaxLeverage
	if leverage.LessThanOrEqual(decimal.Zero) {
		leverage = one
	}
	margin := order.QtyQuote.Div(leverage)
	e.position = &types.Position{
		Symbol:           e.symbol,
		Side:             side,
		QtyQuote:         order.QtyQuote,
		EntryPrice:       price,
		Leverage:         leverage,
		LiquidationPrice: liquidationPrice(side, price, leverage, e.risk.MaintenanceMarginPct),
		MarginLocked:     margin,
		OpenedAtMs:       tsMs,
	}
	e.ledger.MarginLocked = margin
	e.bracket = computeBracket(side, price, e.risk.StopLoss, e.risk.TakeProfit)
	e.trade = &openTrade{tradeID: e.nextTradeID, entryTsMs: tsMs, entryPrice: price, feesPaid: fee}
	e.nextTradeID++
}

// closePosition realizes the full close of the current position at price,
// appending fee to fees_paid and emitting the completed Trade.
func (e *Exchange) closePosition(price decimal.Decimal, tsMs int64, fee decimal.Decimal, kind types.FillKind) {
	pos := e.position
	pnl := unrealizedPnL(pos.Side, pos.EntryPrice, price, pos.QtyQuote, pos.Leverage)
	e.ledger.WalletBalance = e.ledger.WalletBalance.Add(pnl)
	e.ledger.MarginLocked = decimal.Zero

	if e.trade != nil {
		t := e.trade
		t.feesPaid = t.feesPaid.Add(fee)
		side := types.OrderSideBuy
		if pos.Side == types.PositionSideShort {
			side = types.OrderSideSell
		}
		trade := types.Trade{
			TradeID:     t.tradeID,
			Symbol:      e.symbol,
			Side:        side,
			EntryTsMs:   t.entryTsMs,
			EntryPrice:  t.entryPrice,
			ExitTsMs:    tsMs,
			ExitPrice:   price,
			SizeQuote:   pos.QtyQuote,
			Leverage:    pos.Leverage,
			RealizedPnL: pnl,
			FeesPaid:    t.feesPaid,
			NetPnL:      pnl.Sub(t.feesPaid),
			MAE:         t.mae,
			MFE:         t.mfe,
			ExitReason:  string(kind),
		}
		e.pendingTrade = &trade
		e.trade = nil
	}
	e.position = nil
	e.bracket = bracket{}
}

// checkTouch evaluates one intrabar path point against liquidation, the
// stop-loss bracket, and the take-profit bracket, in that priority order,
// and closes the position against the first one touched (spec.md §4.9 Intrabar path:
// "the first level touched wins").
func (e *Exchange) checkTouch(px decimal.Decimal, tsMs int64) (*types.Fill, *types.Trade, bool) {
	if e.position.IsFlat() {
		return nil, nil, false
	}
	pos := e.position
	long := pos.Side == types.PositionSideLong

	if touchesLiquidation(long, px, pos.LiquidationPrice) {
		e.ledger.WalletBalance = e.ledger.WalletBalance.Sub(pos.MarginLocked)
		e.ledger.MarginLocked = decimal.Zero
		if e.trade != nil {
			t := e.trade
			side := types.OrderSideSell
			if !long {
				side = types.OrderSideBuy
			}
			trade := types.Trade{
				TradeID: t.tradeID, Symbol: e.symbol, Side: side,
				EntryTsMs: t.entryTsMs, EntryPrice: t.entryPrice,
				ExitTsMs: tsMs, ExitPrice: pos.LiquidationPrice,
				SizeQuote: pos.QtyQuote, Leverage: pos.Leverage,
				RealizedPnL: pos.MarginLocked.Neg(), FeesPaid: t.feesPaid,
				NetPnL: pos.MarginLocked.Neg().Sub(t.feesPaid),
				MAE:    t.mae, MFE: t.mfe, ExitReason: string(types.FillKindLiquidation),
			}
			e.trade = nil
			e.position = nil
			e.bracket = bracket{}
			e.terminal = types.TerminalLiquidated
			fill := types.Fill{Side: sideFor(!long), Price: pos.LiquidationPrice, QtyQuote: pos.QtyQuote, TsMs: tsMs, Kind: types.FillKindLiquidation}
			e.logger.Warn("position liquidated", zap.String("symbol", e.symbol), zap.String("liq_price", pos.LiquidationPrice.String()))
			return &fill, &trade, true
		}
	}

	if e.bracket.stopPrice.IsPositive() && stopTouched(long, px, e.bracket.stopPrice) {
		fee := e.risk.Fees.Fee(pos.QtyQuote, true)
		e.ledger.WalletBalance = e.ledger.WalletBalance.Sub(fee)
		stopPrice := e.bracket.stopPrice
		e.closePosition(stopPrice, tsMs, fee, types.FillKindStopLoss)
		trade := e.takePendingTrade()
		fill := types.Fill{Side: sideFor(!long), Price: stopPrice, QtyQuote: pos.QtyQuote, Fee: fee, TsMs: tsMs, Kind: types.FillKindStopLoss}
		return &fill, trade, true
	}
	if e.bracket.tpPrice.IsPositive() && tpTouched(long, px, e.bracket.tpPrice) {
		fee := e.risk.Fees.Fee(pos.QtyQuote, false)
		e.ledger.WalletBalance = e.ledger.WalletBalance.Sub(fee)
		tpPrice := e.bracket.tpPrice
		e.closePosition(tpPrice, tsMs, fee, types.FillKindTakeProfit)
		trade := e.takePendingTrade()
		fill := types.Fill{Side: sideFor(!long), Price: tpPrice, QtyQuote: pos.QtyQuote, Fee: fee, TsMs: tsMs, Kind: types.FillKindTakeProfit}
		return &fill, trade, true
	}
	return nil, nil, false
}

func sideFor(buy bool) types.OrderSide {
	if buy {
		return types.OrderSideBuy
	}
	return types.OrderSideSell
}

func (e *Exchange) takePendingTrade() *types.Trade {
	t := e.pendingTrade
	e.pendingTrade = nil
	return t
}

func (e *Exchange) updateExcursion(px decimal.Decimal) {
	if e.trade == nil || e.position.IsFlat() {
		return
	}
	pnl := unrealizedPnL(e.position.Side, e.trade.entryPrice, px, e.position.QtyQuote, e.position.Leverage)
	if pnl.LessThan(e.trade.mae) {
		e.trade.mae = pnl
	}
	if pnl.GreaterThan(e.trade.mfe) {
		e.trade.mfe = pnl
	}
}

// intrabarPath returns the ordered (low, high) or (high, low) sequence to
// walk after the open, followed by the bar's close, per spec.md §4.9:
// low-first when the bar closed up
// or flat (reflecting a pessimistic worst-case-first convention), high-first
// when it closed down.
func (e *Exchange) intrabarPath(b bar.Bar) []decimal.Decimal {
	low := decimal.NewFromFloat(b.Low)
	high := decimal.NewFromFloat(b.High)
	barClose := decimal.NewFromFloat(b.Close)
	if b.Close >= b.Open {
		return []decimal.Decimal{low, high, barClose}
	}
	return []decimal.Decimal{high, low, barClose}
}

func touchesLiquidation(long bool, px, liq decimal.Decimal) bool {
	if liq.IsZero() {
		return false
	}
	if long {
		return px.LessThanOrEqual(liq)
	}
	return px.GreaterThanOrEqual(liq)
}

// stopTouched/tpTouched report whether px has crossed the stop-loss or
// take-profit bracket level, which sit on opposite sides of entry for a
// given position direction.
func stopTouched(long bool, px, level decimal.Decimal) bool {
	if long {
		return px.LessThanOrEqual(level)
	}
	return px.GreaterThanOrEqual(level)
}

func tpTouched(long bool, px, level decimal.Decimal) bool {
	if long {
		return px.GreaterThanOrEqual(level)
	}
	return px.LessThanOrEqual(level)
}

func (e *Exchange) accrueFunding(tsMs int64) {
	if !e.risk.FundingEnabled || e.position.IsFlat() {
		return
	}
	intervalMs := int64(e.risk.FundingIntervalHrs) * 3_600_000
	if intervalMs <= 0 {
		return
	}
	if !e.fundingPrimed {
		e.nextFundingTsMs = tsMs + intervalMs
		e.fundingPrimed = true
		return
	}
	for tsMs >= e.nextFundingTsMs {
		notional := e.position.QtyQuote
		payment := notional.Mul(e.risk.DefaultFundingRate)
		if e.position.Side == types.PositionSideLong {
			e.ledger.WalletBalance = e.ledger.WalletBalance.Sub(payment)
		} else {
			e.ledger.WalletBalance = e.ledger.WalletBalance.Add(payment)
		}
		e.nextFundingTsMs += intervalMs
	}
}

func (e *Exchange) recalcPosition() {
	if e.position.IsFlat() {
		e.ledger.UnrealizedPnL = decimal.Zero
		return
	}
	pnl := unrealizedPnL(e.position.Side, e.position.EntryPrice, e.markPrice, e.position.QtyQuote, e.position.Leverage)
	e.position.UnrealizedPnL = pnl
	e.ledger.UnrealizedPnL = pnl
}

func (e *Exchange) checkTerminalStops() {
	if e.terminal != types.TerminalNone {
		return
	}
	equity := e.ledger.Equity()
	if equity.GreaterThan(e.peakEquity) {
		e.peakEquity = equity
	}
	if e.risk.MaxDrawdownStopPct.IsPositive() && e.peakEquity.IsPositive() {
		drawdown := e.peakEquity.Sub(equity).Div(e.peakEquity).Mul(hundred)
		if drawdown.GreaterThanOrEqual(e.risk.MaxDrawdownStopPct) {
			e.terminal = types.TerminalMaxDrawdown
			e.logger.Warn("max drawdown stop", zap.String("drawdown_pct", drawdown.String()))
		}
	}
	if e.risk.EquityFloor.IsPositive() && equity.LessThanOrEqual(e.risk.EquityFloor) {
		e.terminal = types.TerminalEquityFloor
		e.logger.Warn("equity floor stop", zap.String("equity", equity.String()))
	}
}

// unrealizedPnL computes PnL for a position: the fractional move in the
// underlying applied to the position's notional. QtyQuote is already the
// leveraged notional, so leverage is not applied a second time.
func unrealizedPnL(side types.PositionSide, entry, mark, qtyQuote, leverage decimal.Decimal) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	moveFrac := mark.Sub(entry).Div(entry)
	if side == types.PositionSideShort {
		moveFrac = moveFrac.Neg()
	}
	return moveFrac.Mul(qtyQuote)
}

// liquidationPrice implements spec.md §4.9's isolated-margin formula:
// entry*(1 - 1/leverage + maintenance_margin_rate) for longs, symmetric
// for shorts.
func liquidationPrice(side types.PositionSide, entry, leverage, maintenanceMarginPct decimal.Decimal) decimal.Decimal {
	if leverage.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	mmr := maintenanceMarginPct.Div(hundred)
	if side == types.PositionSideLong {
		return entry.Mul(one.Sub(one.Div(leverage)).Add(mmr))
	}
	return entry.Mul(one.Add(one.Div(leverage)).Sub(mmr))
}

func computeBracket(side types.PositionSide, entry decimal.Decimal, sl, tp types.StopRule) bracket {
	var b bracket
	if sl.Enabled {
		dist := entry.Mul(sl.Pct).Div(hundred)
		if side == types.PositionSideLong {
			b.stopPrice = entry.Sub(dist)
		} else {
			b.stopPrice = entry.Add(dist)
		}
	}
	if tp.Enabled {
		dist := entry.Mul(tp.Pct).Div(hundred)
		if side == types.PositionSideLong {
			b.tpPrice = entry.Add(dist)
		} else {
			b.tpPrice = entry.Sub(dist)
		}
	}
	return b
}
