package validation_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/internal/barsource"
	"github.com/atlas-quant/tradecore/internal/play"
	"github.com/atlas-quant/tradecore/internal/rules"
	"github.com/atlas-quant/tradecore/internal/validation"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func alwaysTrueRule(tag string, dir types.Direction) types.RuleNode {
	return types.RuleNode{
		Tag:       tag,
		Direction: dir,
		Op:        rules.OpGT,
		Left:      types.FieldRef{IsConst: true, Const: 1},
		Right:     types.FieldRef{IsConst: true, Const: 0},
	}
}

func walkForwardPlay() types.Play {
	return types.Play{
		ID:             "walkforward-smoke",
		SymbolUniverse: []string{"BTCUSDT"},
		TFMapping:      types.TFMapping{LowTF: bar.TF1m, MedTF: bar.TF5m, HighTF: bar.TF15m},
		ExecRole:       types.RoleLow,
		Actions: map[string]types.RuleNode{
			"long_entry": alwaysTrueRule("long_entry", types.DirectionLong),
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
}

func walkForwardBars(n int, startMs int64, startPrice float64) []bar.Bar {
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

func TestRunWalkForwardProducesWindows(t *testing.T) {
	raw := walkForwardPlay()
	loaded, err := play.Load(raw, nil)
	if err != nil {
		t.Fatalf("play.Load: %v", err)
	}

	src := barsource.NewMemoryBarSource(nil)
	bars := walkForwardBars(100, 60_000, 100)
	if err := src.Seed("BTCUSDT", bar.TF1m, bars); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := validation.DefaultWalkForwardConfig(20*bar.DurationMs(bar.TF1m), 20*bar.DurationMs(bar.TF1m))
	result, err := validation.RunWalkForward(context.Background(), loaded, src, "BTCUSDT", bars[0].TimestampCloseMs, bars[len(bars)-1].TimestampCloseMs, cfg)
	if err != nil {
		t.Fatalf("RunWalkForward: %v", err)
	}
	if len(result.Windows) == 0 {
		t.Fatal("expected at least one walk-forward window")
	}
	if result.Robustness.LessThan(decimal.Zero) {
		t.Fatalf("robustness should never be negative, got %s", result.Robustness)
	}
}

func TestRunWalkForwardRejectsNonPositiveWindow(t *testing.T) {
	raw := walkForwardPlay()
	loaded, err := play.Load(raw, nil)
	if err != nil {
		t.Fatalf("play.Load: %v", err)
	}
	src := barsource.NewMemoryBarSource(nil)

	_, err = validation.RunWalkForward(context.Background(), loaded, src, "BTCUSDT", 0, 1000, validation.WalkForwardConfig{})
	if err == nil {
		t.Fatal("expected an error for zero WindowMs/StepMs")
	}
}
