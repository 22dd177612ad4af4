package feature_test

import (
	"math"
	"testing"

	"github.com/atlas-quant/tradecore/internal/feature"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func closeBar(ts int64, close float64) bar.Bar {
	return bar.Bar{TimestampCloseMs: ts, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func feedCloses(t *testing.T, ind feature.Indicator, closes []float64) {
	t.Helper()
	for i, c := range closes {
		ind.Update(closeBar(int64(i+1)*60_000, c))
	}
}

func TestSMAMatchesManualAverage(t *testing.T) {
	ind, err := feature.New(types.FeatureSpec{Kind: types.KindSMA, Params: map[string]float64{"length": 3}})
	if err != nil {
		t.Fatal(err)
	}
	closes := []float64{1, 2, 3, 4, 5}
	feedCloses(t, ind, closes)
	v := ind.Values()[""]
	want := (3.0 + 4.0 + 5.0) / 3
	if math.Abs(v-want) > 1e-9 {
		t.Fatalf("got %v want %v", v, want)
	}
}

func TestSMAWarmupEmitsNaN(t *testing.T) {
	ind, err := feature.New(types.FeatureSpec{Kind: types.KindSMA, Params: map[string]float64{"length": 5}})
	if err != nil {
		t.Fatal(err)
	}
	feedCloses(t, ind, []float64{1, 2, 3})
	v := ind.Values()[""]
	if !math.IsNaN(v) {
		t.Fatalf("expected NaN during warmup, got %v", v)
	}
}

func TestEMAWarmupIsTripleLength(t *testing.T) {
	ind, err := feature.New(types.FeatureSpec{Kind: types.KindEMA, Params: map[string]float64{"length": 9}})
	if err != nil {
		t.Fatal(err)
	}
	if ind.Warmup() != 27 {
		t.Fatalf("got warmup %d want 27", ind.Warmup())
	}
}

func TestEMAConvergesTowardConstantInput(t *testing.T) {
	ind, err := feature.New(types.FeatureSpec{Kind: types.KindEMA, Params: map[string]float64{"length": 5}})
	if err != nil {
		t.Fatal(err)
	}
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	feedCloses(t, ind, closes)
	v := ind.Values()[""]
	if math.Abs(v-100) > 1e-6 {
		t.Fatalf("expected convergence to 100, got %v", v)
	}
}

func TestRSIAllGainsSaturatesAt100(t *testing.T) {
	ind, err := feature.New(types.FeatureSpec{Kind: types.KindRSI, Params: map[string]float64{"length": 14}})
	if err != nil {
		t.Fatal(err)
	}
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(i)
	}
	feedCloses(t, ind, closes)
	v := ind.Values()[""]
	if v != 100 {
		t.Fatalf("expected 100 for monotonically increasing input, got %v", v)
	}
}

func TestMACDOutputKeys(t *testing.T) {
	keys := feature.OutputKeys("macd1", types.KindMACD)
	want := []string{"macd1.macd", "macd1.signal", "macd1.hist"}
	if len(keys) != len(want) {
		t.Fatalf("got %v want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("got %v want %v", keys, want)
		}
	}
}

func TestUnregisteredKindFailsLoad(t *testing.T) {
	_, err := feature.New(types.FeatureSpec{Kind: types.IndicatorKind("not_a_kind")})
	if err == nil {
		t.Fatal("expected an error for an unregistered indicator kind")
	}
}

func TestMissingRequiredParamFailsLoad(t *testing.T) {
	_, err := feature.New(types.FeatureSpec{Kind: types.KindSMA, Params: map[string]float64{}})
	if err == nil {
		t.Fatal("expected an error for a missing length param")
	}
}
