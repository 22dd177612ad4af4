package structure

import (
	"strconv"
	"strings"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

// FibMode is retracement or extension (spec.md §4.3 Fibonacci).
type FibMode string

const (
	FibRetracement FibMode = "retracement"
	FibExtension   FibMode = "extension"
)

// Fibonacci recomputes its configured levels off the most recent
// high/low pair from its swing dependency whenever the swing's version
// changes (spec.md §4.3 Fibonacci). Levels are supplied as a
// comma-separated list in StrParams["levels"] (e.g. "0.382,0.5,0.618"),
// since StructureSpec carries no native list-valued parameter type.
type Fibonacci struct {
	mode   FibMode
	levels []float64
	swing  *Swing

	values      map[string]float64
	lastVersion int
}

func newFibonacci(strParams map[string]string, swing *Swing) (*Fibonacci, error) {
	mode := FibMode(strParams["mode"])
	if mode != FibRetracement && mode != FibExtension {
		return nil, errMissingParam("mode (retracement|extension)")
	}
	levels, err := parseLevels(strParams["levels"])
	if err != nil {
		return nil, err
	}
	return &Fibonacci{
		mode: mode, levels: levels, swing: swing,
		values: make(map[string]float64, len(levels)), lastVersion: -1,
	}, nil
}

func parseLevels(csv string) ([]float64, error) {
	if csv == "" {
		return nil, errMissingParam("levels (comma-separated floats)")
	}
	parts := strings.Split(csv, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *Fibonacci) Warmup() int { return f.swing.Warmup() }

func (f *Fibonacci) Update(idx int, b bar.Bar) {
	if f.swing.Version == f.lastVersion {
		return
	}
	f.lastVersion = f.swing.Version
	high, low := f.swing.HighLevel, f.swing.LowLevel
	diff := high - low
	for _, level := range f.levels {
		key := levelKey(level)
		if f.mode == FibRetracement {
			f.values[key] = high - diff*level
		} else {
			f.values[key] = high + diff*level
		}
	}
}

func levelKey(level float64) string {
	return "level_" + strconv.FormatFloat(level, 'f', -1, 64)
}

func (f *Fibonacci) Fields() map[string]any {
	out := make(map[string]any, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}
