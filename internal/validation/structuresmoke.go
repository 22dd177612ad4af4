// Structure smoke audit (spec.md §4.12): confirms detectors produce the
// expected pivots/zones on canned inputs. Grounded on
// internal/structure/structure_test.go's swing/zone fixtures,
// generalized into a reusable audit over any structure spec plus a
// caller-supplied expectation function, since structure.Structure's
// Fields() output shape differs per kind and can't be compared
// generically the way a single float64 indicator value can.
package validation

import (
	"fmt"

	"github.com/atlas-quant/tradecore/internal/structure"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// StructureSmokeCase is one canned scenario: a structure spec (plus any
// dependency it needs, pre-built by the caller since New's dependency
// resolution isn't generic), a bar sequence, and an expectation over the
// resulting Fields().
type StructureSmokeCase struct {
	Name   string
	Spec   types.StructureSpec
	Deps   map[string]structure.Structure
	Bars   []bar.Bar
	Expect func(fields map[string]any) error
}

// StructureSmokeFailure is one case that failed its expectation.
type StructureSmokeFailure struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// StructureSmokeReport is one audit's outcome over a set of cases.
type StructureSmokeReport struct {
	CasesRun int                      `json:"cases_run"`
	Failures []StructureSmokeFailure `json:"failures"`
	Pass     bool                     `json:"pass"`
}

// RunStructureSmoke constructs and drives each case's Structure over its
// bar sequence, then applies Expect to the final Fields().
func RunStructureSmoke(cases []StructureSmokeCase) (*StructureSmokeReport, error) {
	rep := &StructureSmokeReport{CasesRun: len(cases), Pass: true}

	for _, c := range cases {
		s, err := structure.New(c.Spec, c.Deps, nil)
		if err != nil {
			return nil, fmt.Errorf("validation: structure smoke: build %q: %w", c.Name, err)
		}
		for i, b := range c.Bars {
			s.Update(i, b)
		}
		if err := c.Expect(s.Fields()); err != nil {
			rep.Pass = false
			rep.Failures = append(rep.Failures, StructureSmokeFailure{Name: c.Name, Message: err.Error()})
		}
	}

	return rep, nil
}

// DefaultSwingCase builds the canonical swing-pivot smoke case (spec.md
// §4.3): a zigzag series must confirm at least one high and one low
// pivot once enough right-side confirmation bars have elapsed.
func DefaultSwingCase() StructureSmokeCase {
	left, right := 2, 2
	bars := ZigZagSeries(4, 5, 100, 10, 0, bar.DurationMs(bar.TF1m))
	return StructureSmokeCase{
		Name: "swing_zigzag_confirms_both_pivot_kinds",
		Spec: types.StructureSpec{ID: "swing_smoke", Kind: types.StructureSwing,
			Params: map[string]float64{"left": float64(left), "right": float64(right)}},
		Bars: bars,
		Expect: func(fields map[string]any) error {
			highIdx, _ := fields["high_idx"].(int)
			lowIdx, _ := fields["low_idx"].(int)
			if highIdx < 0 {
				return fmt.Errorf("expected a confirmed swing high, got high_idx=%d", highIdx)
			}
			if lowIdx < 0 {
				return fmt.Errorf("expected a confirmed swing low, got low_idx=%d", lowIdx)
			}
			return nil
		},
	}
}
