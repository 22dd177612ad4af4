package validation_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/internal/validation"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func sampleTrades() []types.Trade {
	pnls := []int64{120, -80, 45, -30, 200, -150, 60, -20}
	trades := make([]types.Trade, len(pnls))
	for i, p := range pnls {
		trades[i] = types.Trade{NetPnL: decimal.NewFromInt(p)}
	}
	return trades
}

func TestRunMonteCarloDeterministicForSameSeed(t *testing.T) {
	trades := sampleTrades()
	cfg := validation.DefaultMonteCarloConfig(1234)
	cfg.Iterations = 200

	r1 := validation.RunMonteCarlo(trades, decimal.NewFromInt(10_000), cfg)
	r2 := validation.RunMonteCarlo(trades, decimal.NewFromInt(10_000), cfg)

	if !r1.MedianReturn.Equal(r2.MedianReturn) {
		t.Fatalf("median return differs across identical seeds: %s vs %s", r1.MedianReturn, r2.MedianReturn)
	}
	if !r1.ProbabilityRuin.Equal(r2.ProbabilityRuin) {
		t.Fatalf("ruin probability differs across identical seeds: %s vs %s", r1.ProbabilityRuin, r2.ProbabilityRuin)
	}
}

func TestRunMonteCarloEmptyTrades(t *testing.T) {
	r := validation.RunMonteCarlo(nil, decimal.NewFromInt(10_000), validation.DefaultMonteCarloConfig(1))
	if r.Iterations != 0 {
		t.Fatalf("expected zero iterations for empty trade set, got %d", r.Iterations)
	}
}
