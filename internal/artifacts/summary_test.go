package artifacts_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/internal/artifacts"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func TestSummarizeWinLossCounts(t *testing.T) {
	trades := []types.Trade{
		{NetPnL: decimal.NewFromInt(100), ExitReason: "take_profit"},
		{NetPnL: decimal.NewFromInt(-50), ExitReason: "stop_loss"},
		{NetPnL: decimal.Zero, ExitReason: "manual_stop"},
	}
	equity := []types.EquityPoint{
		{TsCloseMs: 0, Equity: decimal.NewFromInt(10_000)},
		{TsCloseMs: 60_000, Equity: decimal.NewFromInt(10_050)},
		{TsCloseMs: 120_000, Equity: decimal.NewFromInt(9_900)},
	}

	s := artifacts.Summarize(trades, equity, decimal.NewFromInt(10_000), 0)

	if s.TotalTrades != 3 {
		t.Fatalf("expected 3 total trades, got %d", s.TotalTrades)
	}
	if s.WinningTrades != 1 {
		t.Fatalf("expected 1 winning trade, got %d", s.WinningTrades)
	}
	if s.LosingTrades != 1 {
		t.Fatalf("expected 1 losing trade, got %d", s.LosingTrades)
	}
	if s.TotalReturn.LessThanOrEqual(decimal.NewFromInt(-1)) {
		t.Fatalf("expected a sane total return, got %s", s.TotalReturn)
	}
}

func TestSummarizeEmptyRun(t *testing.T) {
	s := artifacts.Summarize(nil, nil, decimal.NewFromInt(10_000), 0)
	if s.TotalTrades != 0 {
		t.Fatalf("expected zero trades, got %d", s.TotalTrades)
	}
	if !s.TotalReturn.IsZero() {
		t.Fatalf("expected zero total return for an empty run, got %s", s.TotalReturn)
	}
}
