package validation_test

import (
	"testing"

	"github.com/atlas-quant/tradecore/internal/validation"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func TestRunMathParitySMAPasses(t *testing.T) {
	bars := validation.SyntheticSeries(200, 7, 100, 2, 0, 60_000)
	specs := []types.FeatureSpec{
		{ID: "sma_fast", Kind: types.KindSMA, Params: map[string]float64{"length": 14}},
	}

	rep, err := validation.RunMathParity(specs, bars)
	if err != nil {
		t.Fatalf("RunMathParity: %v", err)
	}
	if !rep.Pass {
		t.Fatalf("expected pass, got mismatches: %+v", rep.Mismatches)
	}
	if rep.BarsChecked != len(bars) {
		t.Fatalf("BarsChecked = %d, want %d", rep.BarsChecked, len(bars))
	}
}

func TestSyntheticSeriesDeterministic(t *testing.T) {
	a := validation.SyntheticSeries(50, 42, 100, 1, 0, 60_000)
	b := validation.SyntheticSeries(50, 42, 100, 1, 0, 60_000)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs across identical seeds: %+v vs %+v", i, a[i], b[i])
		}
	}
}
