package structure

import "github.com/atlas-quant/tradecore/pkg/bar"

// RollingWindow maintains the running min or max of one OHLCV field over
// a fixed-size trailing window via a monotonic deque, O(1) amortized per
// bar (spec.md §4.3 Rolling window).
type RollingWindow struct {
	size   int
	source bar.PriceField
	mode   string // "min" | "max"

	idxDeque   []int
	valDeque   []float64
	nextIdx    int
	count      int
}

func newRollingWindow(params map[string]float64, strParams map[string]string) (*RollingWindow, error) {
	size, err := requireIntParam(params, "size")
	if err != nil {
		return nil, err
	}
	mode := strParams["mode"]
	if mode != "min" && mode != "max" {
		return nil, errMissingParam("mode (min|max)")
	}
	source := bar.PriceField(strParams["source"])
	switch source {
	case bar.FieldOpen, bar.FieldHigh, bar.FieldLow, bar.FieldClose, bar.FieldVolume:
	default:
		return nil, errMissingParam("source (open|high|low|close|volume)")
	}
	return &RollingWindow{size: size, source: source, mode: mode}, nil
}

func (r *RollingWindow) Warmup() int { return r.size }

func (r *RollingWindow) worse(a, b float64) bool {
	if r.mode == "min" {
		return a >= b
	}
	return a <= b
}

func (r *RollingWindow) Update(idx int, b bar.Bar) {
	v := b.Value(r.source)
	for len(r.valDeque) > 0 && r.worse(r.valDeque[len(r.valDeque)-1], v) {
		r.valDeque = r.valDeque[:len(r.valDeque)-1]
		r.idxDeque = r.idxDeque[:len(r.idxDeque)-1]
	}
	r.valDeque = append(r.valDeque, v)
	r.idxDeque = append(r.idxDeque, r.nextIdx)

	for len(r.idxDeque) > 0 && r.nextIdx-r.idxDeque[0] >= r.size {
		r.valDeque = r.valDeque[1:]
		r.idxDeque = r.idxDeque[1:]
	}
	r.nextIdx++
	if r.count < r.size {
		r.count++
	}
}

func (r *RollingWindow) Fields() map[string]any {
	if r.count < r.size || len(r.valDeque) == 0 {
		return map[string]any{"value": nanSentinel()}
	}
	return map[string]any{"value": r.valDeque[0]}
}
