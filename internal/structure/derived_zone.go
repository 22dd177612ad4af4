package structure

import (
	"golang.org/x/exp/slices"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

// derivedZoneSlot is one K-slot entry (spec.md §4.3 Derived zones).
type derivedZoneSlot struct {
	lower, upper   float64
	state          ZoneState
	anchorIdx      int
	instanceID     int
	touchCount     int
	touchedThisBar bool
	inside         bool
}

func emptyDerivedSlot() derivedZoneSlot {
	return derivedZoneSlot{
		lower: nanSentinel(), upper: nanSentinel(), state: ZoneState("NONE"),
		anchorIdx: -1, instanceID: -1,
	}
}

// DerivedZone regenerates up to maxActive zones from the swing
// dependency's pivot history on every version change, slotted
// newest-first (spec.md §4.3 Derived zones, K-slot). Levels are widths
// expressed as a fraction of the anchor price, supplied as a
// comma-separated list in StrParams["levels"] (mirroring Fibonacci); only
// the first level is used as the zone's symmetric half-width, since the
// spec leaves the exact multi-level geometry unspecified — see
// DESIGN.md's Open Question resolution for this detector.
type DerivedZone struct {
	swing        *Swing
	priceSource  PivotKind
	halfWidthPct float64
	maxActive    int

	slots       []derivedZoneSlot
	lastVersion int
	nextInstID  int
	curIdx      int
}

func newDerivedZone(params map[string]float64, strParams map[string]string, swing *Swing) (*DerivedZone, error) {
	maxActive, err := requireIntParam(params, "max_active")
	if err != nil {
		return nil, err
	}
	levels, err := parseLevels(strParams["levels"])
	if err != nil {
		return nil, err
	}
	source := PivotKind(strParams["price_source"])
	if source != PivotHigh && source != PivotLow {
		return nil, errMissingParam("price_source (high|low)")
	}
	dz := &DerivedZone{
		swing: swing, priceSource: source, halfWidthPct: levels[0], maxActive: maxActive,
		lastVersion: -1,
	}
	dz.slots = make([]derivedZoneSlot, maxActive)
	for i := range dz.slots {
		dz.slots[i] = emptyDerivedSlot()
	}
	return dz, nil
}

func (d *DerivedZone) Warmup() int { return d.swing.Warmup() }

func (d *DerivedZone) Update(idx int, b bar.Bar) {
	d.curIdx = idx
	if d.swing.Version != d.lastVersion {
		d.lastVersion = d.swing.Version
		d.regenerate()
	}
	for i := range d.slots {
		s := &d.slots[i]
		s.touchedThisBar = false
		s.inside = false
		if s.state == ZoneState("NONE") || s.state == ZoneBroken {
			continue
		}
		s.inside = b.Close >= s.lower && b.Close <= s.upper
		if b.Low <= s.upper && b.High >= s.lower {
			s.touchedThisBar = true
			s.touchCount++
			if s.state == ZoneActive {
				s.state = ZoneTouched
			}
		}
		broken := (d.priceSource == PivotLow && b.Close < s.lower) ||
			(d.priceSource == PivotHigh && b.Close > s.upper)
		if broken {
			s.state = ZoneBroken
		}
	}
}

func (d *DerivedZone) regenerate() {
	var pivots []Pivot
	for i := len(d.swing.History) - 1; i >= 0 && len(pivots) < d.maxActive; i-- {
		p := d.swing.History[i]
		if p.Kind == d.priceSource {
			pivots = append(pivots, p)
		}
	}
	newSlots := make([]derivedZoneSlot, d.maxActive)
	for i := range newSlots {
		newSlots[i] = emptyDerivedSlot()
	}
	for i, p := range pivots {
		width := p.Level * d.halfWidthPct
		newSlots[i] = derivedZoneSlot{
			lower: p.Level - width, upper: p.Level + width,
			state: ZoneActive, anchorIdx: p.Idx, instanceID: d.nextInstID,
		}
		d.nextInstID++
	}
	d.slots = newSlots
}

func (d *DerivedZone) Fields() map[string]any {
	out := map[string]any{
		"source_version": d.swing.Version,
		"active_count":   0,
		"any_active":     false,
		"any_touched":    false,
		"any_inside":     false,
		"closest_active_lower": nanSentinel(),
		"closest_active_upper": nanSentinel(),
		"closest_active_idx":   -1,
		"newest_active_idx":    -1,
	}
	activeCount := 0
	anyTouched := false
	anyInside := false
	for i, s := range d.slots {
		prefix := "zone" + itoa(i) + "_"
		out[prefix+"lower"] = s.lower
		out[prefix+"upper"] = s.upper
		out[prefix+"state"] = string(s.state)
		out[prefix+"anchor_idx"] = s.anchorIdx
		out[prefix+"age_bars"] = ageBars(d.curIdx, s.anchorIdx)
		out[prefix+"inside"] = s.inside
		out[prefix+"touched_this_bar"] = s.touchedThisBar
		out[prefix+"touch_count"] = s.touchCount
		out[prefix+"instance_id"] = s.instanceID

		if isActiveSlot(s) {
			activeCount++
			if s.touchedThisBar {
				anyTouched = true
			}
			if s.inside {
				anyInside = true
			}
		}
	}
	// Slots are ordered newest-first (regenerate prepends the most recent
	// pivot), so the first active slot is both the newest and the closest.
	closestIdx := slices.IndexFunc(d.slots, isActiveSlot)
	out["active_count"] = activeCount
	out["any_active"] = activeCount > 0
	out["any_touched"] = anyTouched
	out["any_inside"] = anyInside
	out["newest_active_idx"] = closestIdx
	out["closest_active_idx"] = closestIdx
	if closestIdx >= 0 {
		out["closest_active_lower"] = d.slots[closestIdx].lower
		out["closest_active_upper"] = d.slots[closestIdx].upper
	}
	return out
}

func isActiveSlot(s derivedZoneSlot) bool {
	return s.state != ZoneState("NONE") && s.state != ZoneBroken
}

func ageBars(curIdx, anchorIdx int) int {
	if anchorIdx < 0 {
		return -1
	}
	return curIdx - anchorIdx
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	n := i
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
