package engine_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/internal/barsource"
	"github.com/atlas-quant/tradecore/internal/engine"
	"github.com/atlas-quant/tradecore/internal/exchange"
	"github.com/atlas-quant/tradecore/internal/play"
	"github.com/atlas-quant/tradecore/internal/rules"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func alwaysTrue(tag string, dir types.Direction) types.RuleNode {
	return types.RuleNode{
		Tag:       tag,
		Direction: dir,
		Op:        rules.OpGT,
		Left:      types.FieldRef{IsConst: true, Const: 1},
		Right:     types.FieldRef{IsConst: true, Const: 0},
	}
}

func buildPlay(t *testing.T) types.Play {
	t.Helper()
	tfMapping := types.TFMapping{LowTF: bar.TF1m, MedTF: bar.TF5m, HighTF: bar.TF15m}
	raw := types.Play{
		ID:             "engine-smoke",
		SymbolUniverse: []string{"BTCUSDT"},
		TFMapping:      tfMapping,
		ExecRole:       types.RoleLow,
		Actions: map[string]types.RuleNode{
			"long_entry": alwaysTrue("long_entry", types.DirectionLong),
		},
		Risk: types.RiskModel{
			Sizing:               types.SizingRule{Model: types.SizingPercentEquity, Value: decimal.NewFromFloat(0.5)},
			StopLoss:             types.StopRule{Enabled: true, Pct: decimal.NewFromInt(2)},
			TakeProfit:           types.StopRule{Enabled: true, Pct: decimal.NewFromInt(4)},
			MaxLeverage:          decimal.NewFromInt(5),
			InitialEquity:        decimal.NewFromInt(10_000),
			Fees:                 types.FeeModel{TakerBps: decimal.NewFromInt(5), MakerBps: decimal.NewFromInt(2)},
			MaintenanceMarginPct: decimal.NewFromFloat(0.5),
			MinTradeNotional:     decimal.NewFromInt(10),
		},
	}
	return raw
}

func genBars(n int, startMs int64, startPrice float64) []bar.Bar {
	bars := make([]bar.Bar, 0, n)
	px := startPrice
	ts := startMs
	for i := 0; i < n; i++ {
		o := px
		c := px + 0.01
		h := o + 0.05
		l := o - 0.05
		bars = append(bars, bar.Bar{TimestampCloseMs: ts, Open: o, High: h, Low: l, Close: c, Volume: 10})
		px = c
		ts += bar.DurationMs(bar.TF1m)
	}
	return bars
}

func TestEngineRunEntersOnFirstExecCloseAndRecordsEquity(t *testing.T) {
	raw := buildPlay(t)
	loaded, err := play.Load(raw, nil)
	if err != nil {
		t.Fatalf("play.Load: %v", err)
	}

	ex := exchange.New("BTCUSDT", raw.Risk, nil)
	e := engine.New(loaded, ex, "BTCUSDT", nil)

	src := barsource.NewMemoryBarSource(nil)
	bars := genBars(5, 60_000, 100)
	if err := src.Seed("BTCUSDT", bar.TF1m, bars); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := e.Run(context.Background(), src, bars[0].TimestampCloseMs, bars[len(bars)-1].TimestampCloseMs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.BarsProcessed != uint64(len(bars)) {
		t.Fatalf("expected %d bars processed, got %d", len(bars), result.BarsProcessed)
	}
	if len(result.Equity) == 0 {
		t.Fatal("expected at least one equity point recorded")
	}
	if ex.Position() == nil {
		t.Fatal("expected the always-true long action to have opened a position")
	}
}

func TestEngineStopsOnCancel(t *testing.T) {
	raw := buildPlay(t)
	loaded, err := play.Load(raw, nil)
	if err != nil {
		t.Fatalf("play.Load: %v", err)
	}
	ex := exchange.New("BTCUSDT", raw.Risk, nil)
	e := engine.New(loaded, ex, "BTCUSDT", nil)
	e.Cancel()

	src := barsource.NewMemoryBarSource(nil)
	bars := genBars(3, 60_000, 100)
	if err := src.Seed("BTCUSDT", bar.TF1m, bars); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := e.Run(context.Background(), src, bars[0].TimestampCloseMs, bars[len(bars)-1].TimestampCloseMs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.BarsProcessed != 0 {
		t.Fatalf("expected a pre-cancelled run to process zero bars, got %d", result.BarsProcessed)
	}
}
