package validation_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/internal/validation"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func TestRunSuiteMathParityAndStructureSmoke(t *testing.T) {
	cfg := validation.Config{
		FeatureSpecs: []types.FeatureSpec{
			{ID: "sma_fast", Kind: types.KindSMA, Params: map[string]float64{"length": 10}},
		},
		MonteCarlo: &validation.MonteCarloInput{
			Trades:           sampleTrades(),
			InitialEquity:    decimal.NewFromInt(10_000),
			MonteCarloConfig: validation.DefaultMonteCarloConfig(99),
		},
	}

	rep, err := validation.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.MathParity == nil || !rep.MathParity.Pass {
		t.Fatalf("expected math parity to pass, got %+v", rep.MathParity)
	}
	if rep.StructureSmoke == nil || !rep.StructureSmoke.Pass {
		t.Fatalf("expected structure smoke to pass, got %+v", rep.StructureSmoke)
	}
	if rep.MonteCarlo == nil {
		t.Fatal("expected monte carlo result to be populated")
	}
	if !rep.Pass {
		t.Fatal("expected overall Pass to be true")
	}
}

func TestRunSuiteAggregatesMultipleAuditErrors(t *testing.T) {
	cfg := validation.Config{
		FeatureSpecs: []types.FeatureSpec{
			{ID: "bad_sma", Kind: types.KindSMA, Params: map[string]float64{}}, // missing required "length"
		},
		StructureCases: []validation.StructureSmokeCase{
			{Spec: types.StructureSpec{ID: "bad_structure", Kind: types.StructureKind("not_a_real_kind")}},
		},
	}

	rep, err := validation.Run(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected an aggregated error from both failing audits, got nil")
	}
	if rep == nil || rep.Pass {
		t.Fatalf("expected rep.Pass = false, got %+v", rep)
	}
	msg := err.Error()
	if !strings.Contains(msg, "math parity") || !strings.Contains(msg, "structure smoke") {
		t.Fatalf("expected error to mention both failing audits, got: %s", msg)
	}
}
