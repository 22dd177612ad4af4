// Package engine implements the exec-bar hot loop (spec.md §4.10): drive
// an Exchange through closed 1m bars, roll them up through a Play's
// MultiTFState, freeze a SnapshotView at every exec-role close, evaluate
// the compiled rule actions, and translate fired signals into sized
// order intents. Grounded on donor's internal/backtester/engine.go's
// Engine (running/cancelled atomics, a progress channel, an
// events-processed counter, accumulated trades/equity-curve slices,
// Run/Cancel/GetProgress shape), reworked from a generic pulled-event
// queue dispatching to five event kinds into the single deterministic
// 1m-subloop spec.md §4.10 names — this engine has exactly one event
// kind (a closed 1m bar) and no queue, so no analogue of the donor's
// EventQueue/processEvent type switch is needed.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-quant/tradecore/internal/barsource"
	"github.com/atlas-quant/tradecore/internal/exchange"
	"github.com/atlas-quant/tradecore/internal/play"
	"github.com/atlas-quant/tradecore/internal/snapshot"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// Progress is pushed on the engine's progress channel as bars are
// consumed (spec.md §5 progress reporting), mirroring the donor's
// BacktestProgress shape.
type Progress struct {
	BarsProcessed uint64
	ExecBars      int
	TradesClosed  int
	CurrentEquity decimal.Decimal
}

// Result is everything the artifact layer needs once a run finishes
// (spec.md §4.11).
type Result struct {
	Trades        []types.Trade
	Equity        []types.EquityPoint
	Fills         []types.Fill
	BarsProcessed uint64
	ExecBars      int
	Terminal      types.TerminalReason
}

// Engine drives one (Play, symbol) run end to end.
type Engine struct {
	logger *zap.Logger
	loaded *play.Loaded
	ex     *exchange.Exchange
	symbol string

	execBarIndex int
	rollup       snapshot.RollupBucket

	trades []types.Trade
	equity []types.EquityPoint
	fills  []types.Fill

	barsProcessed atomic.Uint64
	cancelled     atomic.Bool
	progressChan  chan Progress
}

// New constructs an Engine for one loaded Play/symbol/Exchange triple.
func New(loaded *play.Loaded, ex *exchange.Exchange, symbol string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:       logger.Named("engine").With(zap.String("symbol", symbol), zap.String("play_id", loaded.Play.ID)),
		loaded:       loaded,
		ex:           ex,
		symbol:       symbol,
		rollup:       snapshot.RollupBucket{High: math.Inf(-1), Low: math.Inf(1)},
		progressChan: make(chan Progress, 64),
	}
}

// Cancel requests the current Run to stop at the next 1m bar boundary.
func (e *Engine) Cancel() { e.cancelled.Store(true) }

// ProgressChan exposes progress updates; the caller must drain it to
// avoid blocking Run once the channel's buffer fills.
func (e *Engine) ProgressChan() <-chan Progress { return e.progressChan }

// Run fetches [fromMs, toMs] of 1m bars from src and drives the hot loop
// (spec.md §4.10) over every one, including any warmup bars the caller
// prepended — the run naturally starts trading once every feature/
// structure the rule tree references is past its own warmup, since NaN
// comparisons in internal/rules always evaluate false.
func (e *Engine) Run(ctx context.Context, src barsource.BarSource, fromMs, toMs int64) (*Result, error) {
	bars, err := src.Fetch(ctx, e.symbol, bar.TF1m, fromMs, toMs+1)
	if err != nil {
		return nil, fmt.Errorf("engine: fetch 1m bars: %w", err)
	}

	for _, b1m := range bars {
		select {
		case <-ctx.Done():
			return e.result(), ctx.Err()
		default:
		}
		if e.cancelled.Load() {
			e.logger.Info("run cancelled", zap.Int64("at_ts_ms", b1m.TimestampCloseMs))
			return e.result(), nil
		}

		if terminal := e.ex.Terminal(); terminal != types.TerminalNone {
			break
		}

		fills, trades, terminal := e.ex.ApplyBar(b1m)
		e.fills = append(e.fills, fills...)
		e.trades = append(e.trades, trades...)
		e.accumulateRollup(b1m)

		execClosed, execBar := e.loaded.MultiTF.OnMinuteBar(b1m.TimestampCloseMs, b1m)

		e.barsProcessed.Add(1)
		if terminal != types.TerminalNone {
			e.recordEquity(b1m.TimestampCloseMs)
			e.pushProgress()
			break
		}

		if execClosed {
			e.execBarIndex++
			e.onExecClose(execBar)
			e.recordEquity(execBar.TimestampCloseMs)
			e.resetRollup()
		}
		e.pushProgress()
	}

	return e.result(), nil
}

// onExecClose is spec.md §4.10 steps 4-6: freeze the snapshot, evaluate
// every compiled action, translate fired signals into sized order
// intents, and submit them to the exchange. Fills happen on the next 1m
// open, inside the next call's step 1.
func (e *Engine) onExecClose(execBar bar.Bar) {
	view := snapshot.New(e.execBarIndex, e.loaded.Play.ExecRole, e.loaded.MultiTF.RoleStates(), e.rollup,
		e.ex.Position(), e.ex.Ledger(), e.ex.MarkPrice(), e.ex.LastPrice())

	// Collect every fired action before submitting anything. e.ex.Position()
	// only changes on a fill, which happens at the next bar's open (step 1
	// of the next call), so two actions firing on the same exec bar would
	// otherwise each see the same stale position state and both get
	// submitted. spec.md §4.6 collapses multiple exits on one bar to a
	// single exit, and honors at most one entry signal per bar; since this
	// engine holds one position per symbol, a same-bar exit takes priority
	// over a same-bar entry rather than racing two Submit calls.
	var exitFired, entryFired *types.Signal
	for _, tag := range e.loaded.ActionOrder {
		compiled := e.loaded.Actions[tag]
		signal, fired := compiled.Evaluate(view)
		if !fired {
			continue
		}
		if signal.Direction == types.DirectionExit {
			if exitFired == nil {
				exitFired = &signal
			}
			continue
		}
		if entryFired == nil {
			entryFired = &signal
		}
	}

	switch {
	case exitFired != nil:
		if err := e.submitForSignal(*exitFired, execBar.TimestampCloseMs); err != nil {
			e.logger.Warn("signal did not translate to an order", zap.String("tag", exitFired.Tag), zap.Error(err))
		}
	case entryFired != nil:
		if err := e.submitForSignal(*entryFired, execBar.TimestampCloseMs); err != nil {
			e.logger.Warn("signal did not translate to an order", zap.String("tag", entryFired.Tag), zap.Error(err))
		}
	}
}

// submitForSignal sizes and submits one fired signal (spec.md §4.10 step
// 6 / §4.9 Sizing), or synthesizes a close for an exit signal.
func (e *Engine) submitForSignal(signal types.Signal, nowMs int64) error {
	risk := e.loaded.Play.Risk

	if signal.Direction == types.DirectionExit {
		if e.ex.Position().IsFlat() {
			return nil
		}
		_, err := e.ex.ClosePosition(nowMs)
		return err
	}

	if !e.ex.Position().IsFlat() {
		return nil // one position per symbol; ignore entries while one is open
	}

	var notional decimal.Decimal
	if signal.SizingOverride != nil {
		notional = *signal.SizingOverride
	} else {
		var err error
		notional, err = exchange.SizeEntry(risk, e.ex.Ledger().Equity(), risk.StopLoss.Pct)
		if err != nil {
			return err
		}
	}
	return e.submitEntry(signal.Direction, notional, nowMs)
}

func (e *Engine) submitEntry(direction types.Direction, notional decimal.Decimal, nowMs int64) error {
	side := types.OrderSideBuy
	if direction == types.DirectionShort {
		side = types.OrderSideSell
	}
	_, err := e.ex.Submit(types.Order{Symbol: e.symbol, Side: side, Kind: types.OrderKindMarket, QtyQuote: notional}, nowMs)
	return err
}

func (e *Engine) recordEquity(tsMs int64) {
	l := e.ex.Ledger()
	e.equity = append(e.equity, types.EquityPoint{TsCloseMs: tsMs, WalletBalance: l.WalletBalance, UnrealizedPnL: l.UnrealizedPnL, Equity: l.Equity()})
}

func (e *Engine) pushProgress() {
	select {
	case e.progressChan <- Progress{BarsProcessed: e.barsProcessed.Load(), ExecBars: e.execBarIndex, TradesClosed: len(e.trades), CurrentEquity: e.ex.Ledger().Equity()}:
	default:
	}
}

func (e *Engine) result() *Result {
	return &Result{
		Trades:        e.trades,
		Equity:        e.equity,
		Fills:         e.fills,
		BarsProcessed: e.barsProcessed.Load(),
		ExecBars:      e.execBarIndex,
		Terminal:      e.ex.Terminal(),
	}
}
