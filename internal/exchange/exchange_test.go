package exchange_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/internal/exchange"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func sampleRisk() types.RiskModel {
	return types.RiskModel{
		Sizing:               types.SizingRule{Model: types.SizingPercentEquity, Value: decimal.NewFromFloat(0.5)},
		StopLoss:             types.StopRule{Enabled: true, Pct: decimal.NewFromInt(2)},
		TakeProfit:           types.StopRule{Enabled: true, Pct: decimal.NewFromInt(4)},
		MaxLeverage:          decimal.NewFromInt(10),
		InitialEquity:        decimal.NewFromInt(10_000),
		Fees:                 types.FeeModel{TakerBps: decimal.NewFromInt(5), MakerBps: decimal.NewFromInt(2)},
		MaintenanceMarginPct: decimal.NewFromFloat(0.5),
		MinTradeNotional:     decimal.NewFromInt(10),
	}
}

func flatBar(tsMs int64, o, h, l, c float64) bar.Bar {
	return bar.Bar{TimestampCloseMs: tsMs, Open: o, High: h, Low: l, Close: c, Volume: 1}
}

func TestSubmitEntryFillsAtNextOpenWithSlippage(t *testing.T) {
	risk := sampleRisk()
	risk.SlippageBps = decimal.NewFromInt(10) // 0.1%
	ex := exchange.New("BTCUSDT", risk, nil)

	if _, err := ex.Submit(types.Order{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Kind: types.OrderKindMarket, QtyQuote: decimal.NewFromInt(1000)}, 0); err != nil {
		t.Fatal(err)
	}

	fills, trades, terminal := ex.ApplyBar(flatBar(60_000, 100, 101, 99, 100.5))
	if terminal != types.TerminalNone {
		t.Fatalf("unexpected terminal: %v", terminal)
	}
	if len(trades) != 0 {
		t.Fatalf("expected no closed trades on entry, got %d", len(trades))
	}
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	wantPrice := decimal.NewFromInt(100).Mul(decimal.NewFromFloat(1.001))
	if !fills[0].Price.Equal(wantPrice) {
		t.Fatalf("expected slippage-adjusted fill price %s, got %s", wantPrice, fills[0].Price)
	}
	pos := ex.Position()
	if pos == nil || pos.Side != types.PositionSideLong {
		t.Fatalf("expected an open long position, got %+v", pos)
	}
}

func TestStopLossTouchedBeforeTakeProfitOnBearishBar(t *testing.T) {
	risk := sampleRisk()
	ex := exchange.New("BTCUSDT", risk, nil)
	ex.Submit(types.Order{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Kind: types.OrderKindMarket, QtyQuote: decimal.NewFromInt(1000)}, 0)
	ex.ApplyBar(flatBar(60_000, 100, 100, 100, 100)) // entry fills at open=100

	// Bearish bar (close < open): intrabar path is high-first then low.
	// Stop at 98 (2% below 100), TP at 104. The high (101) never reaches
	// TP, so the walk proceeds to the low (97), which crosses the stop.
	fills, trades, terminal := ex.ApplyBar(flatBar(120_000, 100, 101, 97, 98))
	if terminal != types.TerminalNone {
		t.Fatalf("unexpected terminal: %v", terminal)
	}
	if len(trades) != 1 {
		t.Fatalf("expected exactly one closed trade, got %d", len(trades))
	}
	if trades[0].ExitReason != string(types.FillKindStopLoss) {
		t.Fatalf("expected stop-loss exit, got %s", trades[0].ExitReason)
	}
	found := false
	for _, f := range fills {
		if f.Kind == types.FillKindStopLoss {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a stop-loss fill event")
	}
	if ex.Position() != nil {
		t.Fatal("expected position to be flat after stop-loss")
	}
}

func TestLiquidationForceClosesAndMarksTerminal(t *testing.T) {
	risk := sampleRisk()
	risk.StopLoss.Enabled = false
	risk.TakeProfit.Enabled = false
	risk.MaxLeverage = decimal.NewFromInt(20) // liq close to entry for a visible test
	ex := exchange.New("BTCUSDT", risk, nil)
	ex.Submit(types.Order{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Kind: types.OrderKindMarket, QtyQuote: decimal.NewFromInt(1000)}, 0)
	ex.ApplyBar(flatBar(60_000, 100, 100, 100, 100))

	pos := ex.Position()
	if pos == nil {
		t.Fatal("expected open position")
	}
	liq, _ := pos.LiquidationPrice.Float64()

	_, trades, terminal := ex.ApplyBar(flatBar(120_000, 100, 100, liq-1, 90))
	if terminal != types.TerminalLiquidated {
		t.Fatalf("expected liquidated terminal reason, got %v", terminal)
	}
	if len(trades) != 1 || trades[0].ExitReason != string(types.FillKindLiquidation) {
		t.Fatalf("expected a liquidation trade, got %+v", trades)
	}
	if ex.Ledger().MarginLocked.Sign() != 0 {
		t.Fatal("expected margin to be released after liquidation")
	}

	// Further bars must be no-ops once terminal.
	_, _, terminal2 := ex.ApplyBar(flatBar(180_000, 90, 91, 89, 90))
	if terminal2 != types.TerminalLiquidated {
		t.Fatal("expected terminal reason to persist")
	}
}

func TestReduceOnlyRejectedWithoutOpenPosition(t *testing.T) {
	ex := exchange.New("BTCUSDT", sampleRisk(), nil)
	if _, err := ex.Submit(types.Order{Symbol: "BTCUSDT", Side: types.OrderSideSell, Kind: types.OrderKindMarket, QtyQuote: decimal.NewFromInt(100), ReduceOnly: true}, 0); err == nil {
		t.Fatal("expected error submitting reduce_only order against a flat position")
	}
}

func TestSizeEntryPercentEquity(t *testing.T) {
	risk := sampleRisk()
	notional, err := exchange.SizeEntry(risk, decimal.NewFromInt(10_000), decimal.NewFromInt(2))
	if err != nil {
		t.Fatal(err)
	}
	if !notional.Equal(decimal.NewFromInt(5_000)) {
		t.Fatalf("expected 5000 (50%% of 10000 equity), got %s", notional)
	}
}

func TestSizeEntryRiskBasedUsesStopDistance(t *testing.T) {
	risk := sampleRisk()
	risk.Sizing = types.SizingRule{Model: types.SizingRiskBased, Value: decimal.NewFromFloat(0.01)} // 1% risk
	notional, err := exchange.SizeEntry(risk, decimal.NewFromInt(10_000), decimal.NewFromInt(2))     // 2% stop distance
	if err != nil {
		t.Fatal(err)
	}
	// riskAmount=100, /0.02 = 5000, *leverage(10) = 50000, capped at equity*leverage=100000 so stays 50000
	if !notional.Equal(decimal.NewFromInt(50_000)) {
		t.Fatalf("expected 50000, got %s", notional)
	}
}

func TestSizeEntryRejectsBelowMinNotional(t *testing.T) {
	risk := sampleRisk()
	risk.Sizing = types.SizingRule{Model: types.SizingFixedNotional, Value: decimal.NewFromInt(1)}
	if _, err := exchange.SizeEntry(risk, decimal.NewFromInt(10_000), decimal.Zero); err == nil {
		t.Fatal("expected error for notional below min_trade_notional")
	}
}
