package rules_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/internal/featurestate"
	"github.com/atlas-quant/tradecore/internal/rules"
	"github.com/atlas-quant/tradecore/internal/snapshot"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func mustTFState(t *testing.T, role types.Role, tf bar.Timeframe) *featurestate.TFState {
	t.Helper()
	st, err := featurestate.BuildTFState(role, tf, []types.FeatureSpec{
		{ID: "sma0", Kind: types.KindSMA, Params: map[string]float64{"length": 2}},
		{ID: "sma1", Kind: types.KindSMA, Params: map[string]float64{"length": 3}},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func closeBar(i int, c float64) bar.Bar {
	return bar.Bar{TimestampCloseMs: int64(i) * 60_000, Open: c, High: c, Low: c, Close: c, Volume: 1}
}

func newView(st *featurestate.TFState) *snapshot.SnapshotView {
	roles := map[types.Role]*featurestate.TFState{types.RoleLow: st}
	return snapshot.New(st.BarIndex(), types.RoleLow, roles, snapshot.RollupBucket{}, nil, types.Ledger{
		WalletBalance: decimal.NewFromInt(1000),
	}, decimal.Zero, decimal.Zero)
}

func TestCompareOperatorFiresAboveThreshold(t *testing.T) {
	st := mustTFState(t, types.RoleLow, bar.TF1m)
	for i, c := range []float64{1, 2, 3, 10} {
		st.Update(closeBar(i, c))
	}
	mapping := types.TFMapping{LowTF: bar.TF1m, MedTF: bar.TF15m, HighTF: bar.TF1h}
	compiler := rules.NewCompiler(mapping, types.RoleLow, newView(st))
	cr, err := compiler.Compile("long_entry", types.RuleNode{
		Tag:       "long_entry",
		Direction: types.DirectionLong,
		Op:        rules.OpGT,
		Left:      types.FieldRef{Path: "sma0"},
		Right:     types.FieldRef{IsConst: true, Const: 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	sig, fired := cr.Evaluate(newView(st))
	if !fired {
		t.Fatal("expected rule to fire: sma0 (avg of last 2: (3+10)/2=6.5) > 5")
	}
	if sig.Tag != "long_entry" || sig.Direction != types.DirectionLong {
		t.Fatalf("unexpected signal: %+v", sig)
	}
}

func TestUndefinedFieldFailsCompile(t *testing.T) {
	st := mustTFState(t, types.RoleLow, bar.TF1m)
	mapping := types.TFMapping{LowTF: bar.TF1m, MedTF: bar.TF15m, HighTF: bar.TF1h}
	compiler := rules.NewCompiler(mapping, types.RoleLow, newView(st))
	_, err := compiler.Compile("bad", types.RuleNode{
		Op:    rules.OpGT,
		Left:  types.FieldRef{Path: "does_not_exist"},
		Right: types.FieldRef{IsConst: true, Const: 1},
	})
	if err == nil {
		t.Fatal("expected UndefinedField compile error")
	}
}

func TestCrossAboveRequiresPriorBar(t *testing.T) {
	st := mustTFState(t, types.RoleLow, bar.TF1m)
	mapping := types.TFMapping{LowTF: bar.TF1m, MedTF: bar.TF15m, HighTF: bar.TF1h}
	compiler := rules.NewCompiler(mapping, types.RoleLow, newView(st))
	cr, err := compiler.Compile("cross", types.RuleNode{
		Op:    rules.OpCrossAbove,
		Left:  types.FieldRef{Path: "sma0"},
		Right: types.FieldRef{Path: "sma1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	closes := []float64{5, 5, 5, 1, 20}
	var lastFired bool
	for i, c := range closes {
		st.Update(closeBar(i, c))
		_, lastFired = cr.Evaluate(newView(st))
	}
	if !lastFired {
		t.Fatal("expected sma0 (fast) to cross above sma1 (slow) on the final bar's sharp rally")
	}
}

func TestHoldsForRequiresConsecutiveTrueBars(t *testing.T) {
	st := mustTFState(t, types.RoleLow, bar.TF1m)
	mapping := types.TFMapping{LowTF: bar.TF1m, MedTF: bar.TF15m, HighTF: bar.TF1h}
	compiler := rules.NewCompiler(mapping, types.RoleLow, newView(st))
	cr, err := compiler.Compile("holds", types.RuleNode{
		Temporal: rules.TemporalHoldsFor,
		N:        3,
		Inner: &types.RuleNode{
			Op:    rules.OpGT,
			Left:  types.FieldRef{Path: "sma0"},
			Right: types.FieldRef{IsConst: true, Const: 0},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	var fired bool
	for i := 0; i < 5; i++ {
		st.Update(closeBar(i, 100))
		_, fired = cr.Evaluate(newView(st))
	}
	if !fired {
		t.Fatal("expected holds_for(sma0 > 0, 3) to fire after 5 consistently-positive bars")
	}
}
