package structure

import "github.com/atlas-quant/tradecore/pkg/bar"

// ZoneType is demand (below price, from a swing low) or supply (above
// price, from a swing high).
type ZoneType string

const (
	ZoneDemand ZoneType = "demand"
	ZoneSupply ZoneType = "supply"
)

// ZoneState is the zone's lifecycle state (spec.md §4.3 Zone); Broken is
// terminal.
type ZoneState string

const (
	ZoneActive  ZoneState = "Active"
	ZoneTouched ZoneState = "Touched"
	ZoneBroken  ZoneState = "Broken"
)

// Zone tracks the single most-recently-created demand/supply zone off a
// swing dependency, sized by a named ATR feature (spec.md §4.3 Zone).
type Zone struct {
	zoneType  ZoneType
	widthATR  float64
	swing     *Swing
	atr       ScalarSource

	Lower     float64
	Upper     float64
	State     ZoneState
	AnchorIdx int

	lastAnchorIdx int
}

func newZone(params map[string]float64, strParams map[string]string, swing *Swing, atr ScalarSource) (*Zone, error) {
	widthATR, ok := params["width_atr"]
	if !ok || widthATR <= 0 {
		return nil, errMissingParam("width_atr")
	}
	zt := ZoneType(strParams["zone_type"])
	if zt != ZoneDemand && zt != ZoneSupply {
		return nil, errMissingParam("zone_type (demand|supply)")
	}
	return &Zone{
		zoneType: zt, widthATR: widthATR, swing: swing, atr: atr,
		Lower: nanSentinel(), Upper: nanSentinel(), State: ZoneState(""),
		AnchorIdx: -1, lastAnchorIdx: -1,
	}, nil
}

func (z *Zone) Warmup() int { return z.swing.Warmup() }

func (z *Zone) Update(idx int, b bar.Bar) {
	z.maybeCreate()

	if z.State == "" || z.State == ZoneBroken {
		return
	}
	switch z.zoneType {
	case ZoneDemand:
		if b.Low <= z.Lower {
			z.State = ZoneTouched
		}
		if b.Close < z.Lower {
			z.State = ZoneBroken
		}
	case ZoneSupply:
		if b.High >= z.Upper {
			z.State = ZoneTouched
		}
		if b.Close > z.Upper {
			z.State = ZoneBroken
		}
	}
}

func (z *Zone) maybeCreate() {
	var anchorIdx int
	var level float64
	switch z.zoneType {
	case ZoneDemand:
		anchorIdx, level = z.swing.LowIdx, z.swing.LowLevel
	case ZoneSupply:
		anchorIdx, level = z.swing.HighIdx, z.swing.HighLevel
	}
	if anchorIdx < 0 || anchorIdx == z.lastAnchorIdx {
		return
	}
	z.lastAnchorIdx = anchorIdx
	z.AnchorIdx = anchorIdx
	width := z.widthATR * z.atr()
	switch z.zoneType {
	case ZoneDemand:
		z.Lower = level - width
		z.Upper = level
	case ZoneSupply:
		z.Lower = level
		z.Upper = level + width
	}
	z.State = ZoneActive
}

func (z *Zone) Fields() map[string]any {
	return map[string]any{
		"lower":      z.Lower,
		"upper":      z.Upper,
		"state":      string(z.State),
		"anchor_idx": z.AnchorIdx,
	}
}
