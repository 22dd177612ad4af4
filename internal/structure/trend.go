package structure

import "github.com/atlas-quant/tradecore/pkg/bar"

// TrendDirection is the Trend detector's state (spec.md §4.3 Trend).
type TrendDirection string

const (
	TrendUndefined TrendDirection = "Undefined"
	TrendUp        TrendDirection = "Up"
	TrendDown      TrendDirection = "Down"
	TrendRange     TrendDirection = "Range"
)

// Trend derives a regime classification from its swing dependency's two
// most recent pivot classifications (spec.md §4.3 Trend; folds in the
// donor's internal/regime/detector.go regime-state-machine idiom).
type Trend struct {
	swing *Swing

	Direction      TrendDirection
	BarsInTrend    int
	ConsecutiveHH  int
	ConsecutiveLL  int

	lastVersion int
	lastIdx     int
}

func newTrend(swing *Swing) *Trend {
	return &Trend{swing: swing, Direction: TrendUndefined, lastVersion: -1}
}

func (t *Trend) Warmup() int { return t.swing.Warmup() }

func (t *Trend) Update(idx int, b bar.Bar) {
	t.BarsInTrend++
	if t.swing.Version == t.lastVersion {
		return
	}
	t.lastVersion = t.swing.Version

	prev := t.Direction
	if !t.swing.HasTwoOfEachType() {
		t.Direction = TrendUndefined
	} else {
		switch {
		case t.swing.LastHighClass() == ClassHigherHigh && t.swing.LastLowClass() == ClassHigherLow:
			t.Direction = TrendUp
		case t.swing.LastHighClass() == ClassLowerHigh && t.swing.LastLowClass() == ClassLowerLow:
			t.Direction = TrendDown
		default:
			t.Direction = TrendRange
		}
	}
	if t.Direction != prev {
		t.BarsInTrend = 0
	}
	t.ConsecutiveHH = t.swing.ConsecutiveHH
	t.ConsecutiveLL = t.swing.ConsecutiveLL
}

func (t *Trend) Fields() map[string]any {
	return map[string]any{
		"direction":       string(t.Direction),
		"bars_in_trend":   t.BarsInTrend,
		"consecutive_hh":  t.ConsecutiveHH,
		"consecutive_ll":  t.ConsecutiveLL,
	}
}
