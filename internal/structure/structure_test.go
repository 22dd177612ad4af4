package structure_test

import (
	"math"
	"testing"

	"github.com/atlas-quant/tradecore/internal/structure"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func mustSwing(t *testing.T, left, right int) *structure.Swing {
	t.Helper()
	s, err := structure.New(types.StructureSpec{
		Kind:   types.StructureSwing,
		Params: map[string]float64{"left": float64(left), "right": float64(right)},
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s.(*structure.Swing)
}

func TestSwingConfirmsPivotAfterRightBars(t *testing.T) {
	sw := mustSwing(t, 1, 1)
	closes := []float64{10, 10, 20, 10, 10}
	for i, c := range closes {
		sw.Update(i, bar.Bar{TimestampCloseMs: int64(i), Open: c, High: c, Low: c, Close: c})
	}
	if sw.HighIdx != 2 {
		t.Fatalf("expected confirmed high pivot at idx 2, got %d", sw.HighIdx)
	}
}

func TestRollingWindowMax(t *testing.T) {
	s, err := structure.New(types.StructureSpec{
		Kind:      types.StructureRollingWindow,
		Params:    map[string]float64{"size": 3},
		StrParams: map[string]string{"mode": "max", "source": "close"},
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	rw := s.(*structure.RollingWindow)
	closes := []float64{1, 5, 2, 2, 1}
	for i, c := range closes {
		rw.Update(i, bar.Bar{TimestampCloseMs: int64(i), Open: c, High: c, Low: c, Close: c})
	}
	v := rw.Fields()["value"].(float64)
	if v != 2 {
		t.Fatalf("got %v want 2 (max of last 3: 2,2,1)", v)
	}
}

func TestSwingWarmupNaNBeforeConfirmation(t *testing.T) {
	sw := mustSwing(t, 2, 2)
	if !math.IsNaN(sw.Fields()["high_level"].(float64)) {
		t.Fatal("expected NaN high_level before any pivot is confirmed")
	}
}

func mustZone(t *testing.T, sw *structure.Swing, zoneType string, widthATR, atr float64) *structure.Zone {
	t.Helper()
	s, err := structure.New(types.StructureSpec{
		Kind:      types.StructureZone,
		DependsOn: []string{"swing0"},
		Params:    map[string]float64{"width_atr": widthATR},
		StrParams: map[string]string{"zone_type": zoneType},
	}, map[string]structure.Structure{"swing0": sw}, func() float64 { return atr })
	if err != nil {
		t.Fatal(err)
	}
	return s.(*structure.Zone)
}

// TestZoneTouchedRequiresReachingFarEdge confirms a demand zone enters
// Touched only once a bar's low reaches the zone's lower bound (spec.md
// §4.3), not merely on any intrabar overlap with the zone's range.
func TestZoneTouchedRequiresReachingFarEdge(t *testing.T) {
	sw := mustSwing(t, 1, 1)
	z := mustZone(t, sw, "demand", 1, 1)

	closes := []float64{10, 10, 5, 10, 10}
	for i, c := range closes {
		b := bar.Bar{TimestampCloseMs: int64(i), Open: c, High: c, Low: c, Close: c}
		sw.Update(i, b)
		z.Update(i, b)
	}
	// swing low confirms at idx 2 (level 5); zone spans [4, 5] (width_atr=1, atr=1).
	if z.State != structure.ZoneActive {
		t.Fatalf("expected zone Active after forming, got %v (lower=%v upper=%v)", z.State, z.Lower, z.Upper)
	}

	// A bar overlapping the zone's range without reaching its lower bound
	// (low=4.5, inside [4,5]) must NOT touch under the literal spec rule.
	z.Update(5, bar.Bar{TimestampCloseMs: 5, Open: 6, High: 6, Low: 4.5, Close: 6})
	if z.State == structure.ZoneTouched {
		t.Fatal("zone touched on overlap without reaching the lower bound")
	}

	// A bar whose low reaches the lower bound touches.
	z.Update(6, bar.Bar{TimestampCloseMs: 6, Open: 6, High: 6, Low: 4, Close: 6})
	if z.State != structure.ZoneTouched {
		t.Fatalf("expected Touched once low reaches the lower bound, got %v", z.State)
	}
}

func TestTrendUndefinedBeforeTwoOfEachPivot(t *testing.T) {
	sw := mustSwing(t, 1, 1)
	trendStruct, err := structure.New(types.StructureSpec{
		Kind:      types.StructureTrend,
		DependsOn: []string{"swing0"},
	}, map[string]structure.Structure{"swing0": sw}, nil)
	if err != nil {
		t.Fatal(err)
	}
	trend := trendStruct.(*structure.Trend)
	closes := []float64{10, 10, 20, 10, 10}
	for i, c := range closes {
		b := bar.Bar{TimestampCloseMs: int64(i), Open: c, High: c, Low: c, Close: c}
		sw.Update(i, b)
		trend.Update(i, b)
	}
	if trend.Direction != structure.TrendUndefined {
		t.Fatalf("expected Undefined with only one high pivot so far, got %v", trend.Direction)
	}
}
