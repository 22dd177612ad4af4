package preflight_test

import (
	"context"
	"testing"

	"github.com/atlas-quant/tradecore/internal/barsource"
	"github.com/atlas-quant/tradecore/internal/preflight"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func seedMinutes(t *testing.T, src *barsource.MemoryBarSource, symbol string, fromMs, toMs int64) {
	t.Helper()
	var bars []bar.Bar
	for ts := fromMs; ts < toMs; ts += 60_000 {
		bars = append(bars, bar.Bar{TimestampCloseMs: ts, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1})
	}
	if err := src.Seed(symbol, bar.TF1m, bars); err != nil {
		t.Fatal(err)
	}
}

func samplePlay() types.Play {
	return types.Play{
		ID:       "sample",
		ExecRole: types.RoleLow,
		TFMapping: types.TFMapping{
			LowTF: bar.TF1m, MedTF: bar.TF15m, HighTF: bar.TF1h,
		},
		WarmupBarsByRole: map[types.Role]int{types.RoleLow: 5, types.RoleMed: 5, types.RoleHigh: 5},
		DelayBarsByRole:  map[types.Role]int{types.RoleLow: 0, types.RoleMed: 0, types.RoleHigh: 0},
	}
}

func TestRunPassesWithFullCoverage(t *testing.T) {
	src := barsource.NewMemoryBarSource(nil)
	windowStart := int64(600_000_000)
	windowEnd := windowStart + 60_000*120
	seedMinutes(t, src, "BTCUSDT", windowStart-60_000*10_000, windowEnd+60_000)

	rep, err := preflight.Run(context.Background(), src, samplePlay(), "BTCUSDT", windowStart, windowEnd, preflight.DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Pass {
		t.Fatalf("expected pass, got failure: %+v", rep.Failure)
	}
	if !rep.ExecTo1mMappingFeasible {
		t.Fatal("expected exec->1m mapping to be feasible when exec_role IS 1m")
	}
}

func TestRunFailsOnMissingData(t *testing.T) {
	src := barsource.NewMemoryBarSource(nil)
	windowStart := int64(600_000_000)
	windowEnd := windowStart + 60_000*120
	// Seed far too little history to cover any role's warmup.
	seedMinutes(t, src, "BTCUSDT", windowStart, windowEnd+60_000)

	rep, err := preflight.Run(context.Background(), src, samplePlay(), "BTCUSDT", windowStart, windowEnd, preflight.DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Pass {
		t.Fatal("expected failure due to insufficient warmup coverage")
	}
	if rep.Failure.Kind != preflight.FailureMissingData {
		t.Fatalf("expected MissingData, got %v", rep.Failure.Kind)
	}
}
