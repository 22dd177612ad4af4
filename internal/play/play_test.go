package play_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/internal/play"
	"github.com/atlas-quant/tradecore/internal/rules"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func samplePlay() types.Play {
	return types.Play{
		ID:             "sample",
		SymbolUniverse: []string{"BTCUSDT"},
		TFMapping:      types.TFMapping{LowTF: bar.TF1m, MedTF: bar.TF15m, HighTF: bar.TF1h},
		ExecRole:       types.RoleLow,
		Features: types.RoleFeatures{
			types.RoleLow: {{ID: "rsi0", Kind: types.KindRSI, Params: map[string]float64{"length": 14}}},
		},
		Actions: map[string]types.RuleNode{
			"long_entry": {
				Tag:       "long_entry",
				Direction: types.DirectionLong,
				Op:        rules.OpLT,
				Left:      types.FieldRef{Path: "rsi0"},
				Right:     types.FieldRef{IsConst: true, Const: 30},
			},
		},
		Risk: types.RiskModel{
			Sizing:        types.SizingRule{Model: types.SizingPercentEquity, Value: decimal.NewFromFloat(0.1)},
			MaxLeverage:   decimal.NewFromInt(5),
			InitialEquity: decimal.NewFromInt(10_000),
		},
	}
}

func TestLoadComputesWarmupFromRSI(t *testing.T) {
	loaded, err := play.Load(samplePlay(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Play.WarmupBarsByRole[types.RoleLow] != 15 {
		t.Fatalf("expected rsi(14) warmup of 15 (length+1), got %d", loaded.Play.WarmupBarsByRole[types.RoleLow])
	}
	if _, ok := loaded.Actions["long_entry"]; !ok {
		t.Fatal("expected long_entry action to be compiled")
	}
}

func TestLoadFailsOnUnresolvedExecRole(t *testing.T) {
	p := samplePlay()
	p.ExecRole = types.Role("bogus")
	if _, err := play.Load(p, nil); err == nil {
		t.Fatal("expected load failure for unresolved exec_role")
	}
}

func TestLoadFailsOnUndefinedRuleField(t *testing.T) {
	p := samplePlay()
	p.Actions["long_entry"] = types.RuleNode{
		Op:    rules.OpLT,
		Left:  types.FieldRef{Path: "not_a_real_feature"},
		Right: types.FieldRef{IsConst: true, Const: 30},
	}
	if _, err := play.Load(p, nil); err == nil {
		t.Fatal("expected load failure for undefined rule field")
	}
}
