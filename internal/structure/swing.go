package structure

import "github.com/atlas-quant/tradecore/pkg/bar"

type windowBar struct {
	idx  int
	high float64
	low  float64
}

// Swing implements spec.md §4.3's swing-pivot detector: a bar is a swing
// high/low iff it strictly exceeds every high/low in the left/right
// bars around it. Confirmation lags by `right` bars.
type Swing struct {
	left, right int
	window      []windowBar // oldest-first, capped at left+right+1

	HighLevel float64
	HighIdx   int
	LowLevel  float64
	LowIdx    int
	Version   int

	History []Pivot

	lastHighClass  PivotClass
	lastLowClass   PivotClass
	ConsecutiveHH  int
	ConsecutiveLL  int
	highPivotCount int
	lowPivotCount  int
	prevHighLevel  float64
	prevLowLevel   float64
}

func newSwing(params map[string]float64) (*Swing, error) {
	left, err := requireIntParam(params, "left")
	if err != nil {
		return nil, err
	}
	right, err := requireIntParam(params, "right")
	if err != nil {
		return nil, err
	}
	return &Swing{
		left:      left,
		right:     right,
		HighLevel: nanSentinel(),
		LowLevel:  nanSentinel(),
		HighIdx:   -1,
		LowIdx:    -1,
	}, nil
}

func requireIntParam(params map[string]float64, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, errMissingParam(key)
	}
	return int(v), nil
}

func errMissingParam(key string) error {
	return &missingParamError{key: key}
}

type missingParamError struct{ key string }

func (e *missingParamError) Error() string {
	return "structure: missing required param \"" + e.key + "\""
}

func (s *Swing) Warmup() int { return s.left + s.right + 1 }

func (s *Swing) Update(idx int, b bar.Bar) {
	cap := s.left + s.right + 1
	s.window = append(s.window, windowBar{idx: idx, high: b.High, low: b.Low})
	if len(s.window) > cap {
		s.window = s.window[1:]
	}
	if len(s.window) < cap {
		return
	}

	center := s.window[s.left]
	isHigh, isLow := true, true
	for i, w := range s.window {
		if i == s.left {
			continue
		}
		if w.high >= center.high {
			isHigh = false
		}
		if w.low <= center.low {
			isLow = false
		}
	}

	if isHigh {
		s.confirmHigh(center)
	}
	if isLow {
		s.confirmLow(center)
	}
}

func (s *Swing) confirmHigh(w windowBar) {
	s.HighLevel = w.high
	s.HighIdx = w.idx
	s.highPivotCount++

	class := ClassNone
	if s.highPivotCount > 1 {
		if w.high > s.prevHighLevel {
			class = ClassHigherHigh
			s.ConsecutiveHH++
		} else {
			class = ClassLowerHigh
			s.ConsecutiveHH = 0
		}
	}
	s.prevHighLevel = w.high
	s.lastHighClass = class
	s.appendPivot(Pivot{Idx: w.idx, Level: w.high, Kind: PivotHigh, Class: class})
	s.Version++
}

func (s *Swing) confirmLow(w windowBar) {
	s.LowLevel = w.low
	s.LowIdx = w.idx
	s.lowPivotCount++

	class := ClassNone
	if s.lowPivotCount > 1 {
		if w.low < s.prevLowLevel {
			class = ClassLowerLow
			s.ConsecutiveLL++
		} else {
			class = ClassHigherLow
			s.ConsecutiveLL = 0
		}
	}
	s.prevLowLevel = w.low
	s.lastLowClass = class
	s.appendPivot(Pivot{Idx: w.idx, Level: w.low, Kind: PivotLow, Class: class})
	s.Version++
}

func (s *Swing) appendPivot(p Pivot) {
	s.History = append(s.History, p)
	if len(s.History) > pivotHistoryCap {
		s.History = s.History[1:]
	}
}

// LastHighClass/LastLowClass/HasTwoOfEachType support Trend's transition
// rule (spec.md §4.3 Trend).
func (s *Swing) LastHighClass() PivotClass { return s.lastHighClass }
func (s *Swing) LastLowClass() PivotClass  { return s.lastLowClass }
func (s *Swing) HasTwoOfEachType() bool {
	return s.highPivotCount >= 2 && s.lowPivotCount >= 2
}

func (s *Swing) Fields() map[string]any {
	return map[string]any{
		"high_level": s.HighLevel,
		"high_idx":   s.HighIdx,
		"low_level":  s.LowLevel,
		"low_idx":    s.LowIdx,
		"version":    s.Version,
	}
}
