package structure

import "github.com/atlas-quant/tradecore/pkg/bar"

// StructureEvent is a BOS/CHoCH classification for the most recent
// transition (spec.md §4.3 Market structure).
type StructureEvent string

const (
	EventNone  StructureEvent = "NONE"
	EventBOS   StructureEvent = "BOS"   // break of structure: trend continuation
	EventCHoCH StructureEvent = "CHoCH" // change of character: trend reversal
)

// MarketStructure wraps swing + trend (+ optional zone) and classifies
// each new pivot as a break-of-structure or change-of-character event
// using the pivot history for context, never just the latest pivot
// (spec.md §4.3 Market structure). Folds in the donor's
// internal/regime/detector.go regime-transition idiom.
type MarketStructure struct {
	swing *Swing
	trend *Trend
	zone  *Zone

	LastEvent   StructureEvent
	EventIdx    int
	lastVersion int
	priorDir    TrendDirection
}

func newMarketStructure(swing *Swing, trend *Trend, zone *Zone) *MarketStructure {
	return &MarketStructure{
		swing: swing, trend: trend, zone: zone,
		LastEvent: EventNone, EventIdx: -1, lastVersion: -1,
	}
}

func (m *MarketStructure) Warmup() int { return m.swing.Warmup() }

func (m *MarketStructure) Update(idx int, b bar.Bar) {
	if m.swing.Version == m.lastVersion {
		return
	}
	m.lastVersion = m.swing.Version

	if m.trend == nil || !m.swing.HasTwoOfEachType() {
		return
	}
	dir := m.trend.Direction
	switch {
	case m.priorDir == TrendUndefined:
		// first classification; no transition to report yet.
	case dir == m.priorDir && (dir == TrendUp || dir == TrendDown):
		m.LastEvent = EventBOS
		m.EventIdx = idx
	case dir != m.priorDir && (dir == TrendUp || dir == TrendDown) &&
		(m.priorDir == TrendUp || m.priorDir == TrendDown):
		m.LastEvent = EventCHoCH
		m.EventIdx = idx
	}
	m.priorDir = dir
}

func (m *MarketStructure) Fields() map[string]any {
	return map[string]any{
		"last_event": string(m.LastEvent),
		"event_idx":  m.EventIdx,
	}
}
